// Command shopfloor-sim runs the shopfloor digital twin coordination core.
//
// It loads the runtime configuration and the scenario layouts, opens the
// optional control event log, telemetry sink and admin API, and runs the
// scenario chosen by the scenario manager until it receives SIGINT or
// SIGTERM or the manager is disabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/Fabulani/shopfloor-simulation/internal/api"
	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/database"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/influxdb"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/logging"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/mqtt"
	"github.com/Fabulani/shopfloor-simulation/internal/scenario"
	"github.com/Fabulani/shopfloor-simulation/migrations"
)

// Build metadata, overridden with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shopfloor-sim:", err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. Without a subcommand it runs the simulation.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "shopfloor-sim",
		Usage:   "Run the shopfloor digital twin simulation",
		Version: version + " (" + commit + ", " + date + ")",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the runtime configuration file",
				Value:   defaultConfigPath,
				Sources: cli.EnvVars("SHOPFLOOR_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Override the message channel (mqtt or memory)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, options{configPath: cmd.String("config"), channel: cmd.String("channel")})
		},
		Commands: []*cli.Command{
			newMigrateCommand(),
			newEventsCommand(),
		},
	}
}

// options carries command-line overrides into run.
type options struct {
	configPath string
	channel    string
}

// app holds what run has opened so far. Resources are released in reverse
// order of acquisition.
type app struct {
	cfg *config.Config
	log *logging.Logger

	checks    map[string]api.HealthCheck
	telemetry scenario.MultiTelemetry
	events    controllog.Repository

	closers []func()
}

func (a *app) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() {
		a.log.Info("closing " + name)
		if err := fn(); err != nil {
			a.log.Error("error closing "+name, "error", err)
		}
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// run wires the simulation and blocks until it stops. A clean shutdown
// returns nil.
func run(ctx context.Context, opts options) error {
	boot := logging.Default()
	boot.Info("starting shopfloor simulation", "version", version, "commit", commit, "build_date", date)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	a := &app{
		cfg:    cfg,
		log:    logging.New(cfg.Logging, version),
		checks: make(map[string]api.HealthCheck),
	}
	defer a.close()
	a.log.Info("configuration loaded", "path", opts.configPath, "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	scenarios, err := config.LoadScenarios(cfg.Simulation.ScenarioFile)
	if err != nil {
		return fmt.Errorf("loading scenarios: %w", err)
	}
	names := scenario.Names(scenarios)
	a.log.Info("scenarios loaded", "path", cfg.Simulation.ScenarioFile, "scenarios", names)

	topics := channel.Topics{Root: cfg.Simulation.RootTopic}
	manager := scenario.NewManager(cfg.Simulation.ManagerID, cfg.Simulation.SelectedFlexibility, names)
	inbox := scenario.NewInbox(topics, cfg.Simulation.ManagerID, manager)
	inbox.SetLogger(a.log.Component("inbox"))

	if err := a.openEventLog(ctx, inbox); err != nil {
		return err
	}
	ch, err := a.openChannel(topics)
	if err != nil {
		return err
	}
	if err := a.openTelemetry(ctx); err != nil {
		return err
	}
	if err := a.startAPI(ctx, manager, ch, topics); err != nil {
		return err
	}

	if err := inbox.Subscribe(ch, cfg.Simulation.TooltipRequestTopic); err != nil {
		return fmt.Errorf("subscribing control topics: %w", err)
	}

	selector := scenario.NewSelector(scenario.Deps{
		Channel:              ch,
		Manager:              manager,
		Inbox:                inbox,
		Timing:               scenario.TimingFromConfig(cfg.Simulation),
		RootTopic:            cfg.Simulation.RootTopic,
		TooltipResponseTopic: cfg.Simulation.TooltipResponseTopic,
		Telemetry:            a.telemetry,
		Logger:               a.log.Component("scenario"),
	}, scenarios)

	a.log.Info("running scenarios", "selected_flexibility", manager.SelectedFlexibility())
	if err := selector.Run(ctx); err != nil {
		return fmt.Errorf("running scenarios: %w", err)
	}
	a.log.Info("shopfloor simulation stopped")
	return nil
}

// loadConfig reads the configuration file and applies command-line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.channel == "" {
		return cfg, nil
	}
	cfg.Simulation.Channel = opts.channel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openEventLog connects the inbox to the SQLite control event log when the
// database is enabled.
func (a *app) openEventLog(ctx context.Context, inbox *scenario.Inbox) error {
	if !a.cfg.Database.Enabled {
		a.log.Info("control event log disabled")
		return nil
	}
	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	a.onClose("database", db.Close)

	repo := controllog.NewSQLiteRepository(db.DB)
	inbox.SetRecorder(repo)
	a.events = repo
	a.checks["database"] = db.HealthCheck
	a.log.Info("database connected", "path", db.Path())
	return nil
}

// openDatabase opens the control event log and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrating %s: %w", cfg.Path, err)
	}
	return db, nil
}

// openChannel connects the configured message channel.
func (a *app) openChannel(topics channel.Topics) (channel.Channel, error) {
	if a.cfg.Simulation.Channel == "memory" {
		mem := channel.NewMemory(a.log.Component("channel").Watermill())
		a.onClose("memory channel", mem.Close)
		a.log.Info("using in-memory message channel")
		return mem, nil
	}

	broker := a.cfg.MQTT.Broker
	client, err := mqtt.Connect(a.cfg.MQTT, topics.SimulationStatus())
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	a.onClose("MQTT connection", client.Close)

	log := a.log.Component("mqtt")
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT session up") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT session lost", "error", err) })
	a.checks["mqtt"] = client.HealthCheck
	a.log.Info("MQTT connected",
		"broker", net.JoinHostPort(broker.Host, strconv.Itoa(broker.Port)),
		"client_id", client.ClientID(),
	)

	ch, err := mqtt.NewChannel(client, a.cfg.MQTT.QoS)
	if err != nil {
		return nil, fmt.Errorf("creating MQTT channel: %w", err)
	}
	return ch, nil
}

// openTelemetry adds the InfluxDB sink when it is enabled.
func (a *app) openTelemetry(ctx context.Context) error {
	c, err := influxdb.Connect(ctx, a.cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		a.log.Info("InfluxDB telemetry disabled")
		return nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	a.onClose("InfluxDB client", c.Close)

	c.SetOnError(func(err error) {
		a.log.Error("InfluxDB write failed", "error", err, "failures", c.Failures())
	})
	a.telemetry = append(a.telemetry, c)
	a.checks["influxdb"] = c.HealthCheck
	a.log.Info("InfluxDB connected", "url", a.cfg.InfluxDB.URL, "org", a.cfg.InfluxDB.Org, "bucket", a.cfg.InfluxDB.Bucket)
	return nil
}

// startAPI serves the admin API and live feed when enabled. The feed hub
// joins the telemetry sinks.
func (a *app) startAPI(ctx context.Context, manager *scenario.Manager, ch channel.Channel, topics channel.Topics) error {
	if !a.cfg.API.Enabled {
		return nil
	}
	srv, err := api.New(api.Deps{
		Config:    a.cfg.API,
		WS:        a.cfg.WebSocket,
		Logger:    a.log.Component("api"),
		Manager:   manager,
		Channel:   ch,
		Topics:    topics,
		ManagerID: a.cfg.Simulation.ManagerID,
		Events:    a.events,
		Checks:    a.checks,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	a.onClose("API server", srv.Close)
	a.telemetry = append(a.telemetry, srv.Hub())
	return nil
}
