package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the runtime configuration of the simulation, read from YAML
// with SHOPFLOOR_* environment overrides.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
}

// SimulationConfig contains the timing and topic settings shared by all scenarios.
type SimulationConfig struct {
	// RootTopic is the prefix of every topic published or consumed.
	RootTopic string `yaml:"root_topic"`

	// ManagerID identifies the scenario manager entity (scenario_manager/<id>).
	ManagerID string `yaml:"manager_id"`

	// ScenarioFile is the path to the scenario layout file.
	ScenarioFile string `yaml:"scenario_file"`

	// Channel selects the message channel: "mqtt" or "memory".
	Channel string `yaml:"channel"`

	// SelectedFlexibility is the scenario variant selected at startup.
	SelectedFlexibility int `yaml:"selected_flexibility"`

	// StateSleepMS is the simulated work delay inside state bodies.
	StateSleepMS int `yaml:"state_sleep_ms"`

	// ResetSleepMS is the delay after resetting the shopfloor.
	ResetSleepMS int `yaml:"reset_sleep_ms"`

	// SyncIntervalMS is the cadence of the synchronization task.
	SyncIntervalMS int `yaml:"sync_interval_ms"`

	// MovementStep is the per-tick distance travelled on each axis.
	MovementStep float64 `yaml:"movement_step"`

	// MovementSleepMS is the delay between motion ticks.
	MovementSleepMS int `yaml:"movement_sleep_ms"`

	// TooltipRequestTopic and TooltipResponseTopic form the inspection side channel.
	TooltipRequestTopic  string `yaml:"tooltip_request_topic"`
	TooltipResponseTopic string `yaml:"tooltip_response_topic"`
}

// DatabaseConfig contains SQLite database settings for the control event log.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig selects the broker the MQTT message channel connects to.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig is the broker address. An empty ClientID, or one ending
// in a dash, gets a random suffix.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds optional broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the automatic reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for simulation telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects the slog handler. Format is json or text; Output
// is stdout or stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// APIConfig contains the admin HTTP server settings. The server exposes
// health, status, control events, Prometheus metrics, and the live feed.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// PanelDir serves the dashboard from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains live feed settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// Load builds a Config from defaults, the YAML file at path, and then
// SHOPFLOOR_* environment variables, in that order of precedence. The result
// is validated before it is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides.
// It is used when no configuration file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig mirrors the settings the shopfloor was first deployed with.
func defaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			RootTopic:            "freeaimTwin/StateMachine",
			ManagerID:            "DTV-000",
			ScenarioFile:         "configs/scenario.yaml",
			Channel:              "mqtt",
			StateSleepMS:         2000,
			ResetSleepMS:         5000,
			SyncIntervalMS:       10,
			MovementStep:         10,
			MovementSleepMS:      100,
			TooltipRequestTopic:  "/VR/viewer_info/tooltip_request",
			TooltipResponseTopic: "/VR/viewer_info/tooltip_response",
		},
		Database: DatabaseConfig{Enabled: true, Path: "./data/shopfloor.db", WALMode: true, BusyTimeout: 5},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "Shopfloor-Simulation-"},
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		InfluxDB: InfluxDBConfig{BatchSize: 100, FlushInterval: 10},
		Logging:  LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     9102,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
	}
}

// envOverride binds one environment variable to a Config field.
type envOverride struct {
	name string
	set  func(c *Config, v string)
}

func setInt(dst *int) func(string) {
	return func(v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// envOverrides lists every SHOPFLOOR_* variable Load honours. Integer
// variables that do not parse are ignored.
var envOverrides = []envOverride{
	{"SHOPFLOOR_ROOT_TOPIC", func(c *Config, v string) { c.Simulation.RootTopic = v }},
	{"SHOPFLOOR_MANAGER_ID", func(c *Config, v string) { c.Simulation.ManagerID = v }},
	{"SHOPFLOOR_SCENARIO_FILE", func(c *Config, v string) { c.Simulation.ScenarioFile = v }},
	{"SHOPFLOOR_CHANNEL", func(c *Config, v string) { c.Simulation.Channel = v }},
	{"SHOPFLOOR_SELECTED_FLEXIBILITY", func(c *Config, v string) { setInt(&c.Simulation.SelectedFlexibility)(v) }},
	{"SHOPFLOOR_DATABASE_PATH", func(c *Config, v string) { c.Database.Path = v }},
	{"SHOPFLOOR_MQTT_HOST", func(c *Config, v string) { c.MQTT.Broker.Host = v }},
	{"SHOPFLOOR_MQTT_PORT", func(c *Config, v string) { setInt(&c.MQTT.Broker.Port)(v) }},
	{"SHOPFLOOR_MQTT_USERNAME", func(c *Config, v string) { c.MQTT.Auth.Username = v }},
	{"SHOPFLOOR_MQTT_PASSWORD", func(c *Config, v string) { c.MQTT.Auth.Password = v }},
	{"SHOPFLOOR_INFLUXDB_TOKEN", func(c *Config, v string) { c.InfluxDB.Token = v }},
	{"SHOPFLOOR_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = strings.ToLower(v) }},
	{"SHOPFLOOR_API_PORT", func(c *Config, v string) { setInt(&c.API.Port)(v) }},
}

func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			o.set(cfg, v)
		}
	}
}

// problems collects validation failures so they are reported together.
type problems []string

func (p *problems) require(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(p, "; "))
}

func validPort(n int) bool { return n >= 1 && n <= 65535 }

// Validate reports every invalid setting in one ErrInvalidConfig.
func (c *Config) Validate() error {
	var p problems

	sim := c.Simulation
	p.require(strings.TrimSpace(sim.RootTopic) != "", "simulation.root_topic is required")
	p.require(!strings.ContainsAny(sim.RootTopic, "+#"), "simulation.root_topic must not contain wildcards")
	p.require(sim.ManagerID != "", "simulation.manager_id is required")
	p.require(sim.Channel == "mqtt" || sim.Channel == "memory", "simulation.channel %q must be mqtt or memory", sim.Channel)
	p.require(sim.MovementStep > 0, "simulation.movement_step must be positive")
	p.require(min(sim.StateSleepMS, sim.ResetSleepMS, sim.MovementSleepMS) >= 0, "simulation delays must not be negative")
	p.require(sim.SyncIntervalMS > 0, "simulation.sync_interval_ms must be positive")

	p.require(!c.Database.Enabled || c.Database.Path != "", "database.path is required when the database is enabled")

	p.require(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1 or 2")
	p.require(sim.Channel != "mqtt" || validPort(c.MQTT.Broker.Port), "mqtt.broker.port %d out of range", c.MQTT.Broker.Port)

	p.require(!c.InfluxDB.Enabled || (c.InfluxDB.URL != "" && c.InfluxDB.Bucket != ""),
		"influxdb.url and influxdb.bucket are required when influxdb is enabled")

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		p.require(false, "logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	if c.API.Enabled {
		p.require(validPort(c.API.Port), "api.port %d out of range", c.API.Port)
		p.require(c.WebSocket.PingInterval > 0 && c.WebSocket.PongTimeout > 0,
			"websocket.ping_interval and websocket.pong_timeout must be positive")
	}

	return p.err()
}

// StateSleep returns the simulated work delay as a Duration.
func (s SimulationConfig) StateSleep() time.Duration {
	return time.Duration(s.StateSleepMS) * time.Millisecond
}

// ResetSleep returns the post-reset delay as a Duration.
func (s SimulationConfig) ResetSleep() time.Duration {
	return time.Duration(s.ResetSleepMS) * time.Millisecond
}

// SyncInterval returns the synchronization cadence as a Duration.
func (s SimulationConfig) SyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalMS) * time.Millisecond
}

// MovementSleep returns the delay between motion ticks as a Duration.
func (s SimulationConfig) MovementSleep() time.Duration {
	return time.Duration(s.MovementSleepMS) * time.Millisecond
}
