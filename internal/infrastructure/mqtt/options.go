package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second
	keepAlive      = 60 * time.Second

	// quiesceMillis is how long Disconnect lets in-flight work drain.
	quiesceMillis = 1000

	maxQoS = 2

	// maxPayloadSize caps a single message at 1MB.
	maxPayloadSize = 1 << 20
)

// resolveClientID appends a random suffix to ids ending in "-" so several
// simulation processes can share one broker.
func resolveClientID(id string) string {
	if id == "" || strings.HasSuffix(id, "-") {
		return id + uuid.NewString()[:8]
	}
	return id
}

func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// newClientOptions builds paho options for a clean, auto-reconnecting
// session. When statusTopic is set the broker is handed a retained offline
// presence as the will.
func newClientOptions(cfg config.MQTTConfig, clientID, statusTopic string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if statusTopic != "" {
		opts.SetBinaryWill(statusTopic, presence(PresenceOffline, clientID, ReasonLost), 1, true)
	}
	return opts
}
