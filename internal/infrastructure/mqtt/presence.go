package mqtt

import (
	"time"

	"github.com/goccy/go-json"
)

// Presence states published on the simulation status topic.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Reasons attached to an offline presence.
const (
	ReasonShutdown = "graceful_shutdown"
	ReasonLost     = "unexpected_disconnect"
)

// Presence is the retained message that tells viewers whether the
// simulation is running. The broker publishes the ReasonLost variant as the
// client's will.
type Presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func presence(status, clientID, reason string) []byte {
	data, err := json.Marshal(Presence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		// Presence holds only strings.
		panic(err)
	}
	return data
}
