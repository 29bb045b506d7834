package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"

	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/database"
	"github.com/Fabulani/shopfloor-simulation/migrations"
)

// newMigrateCommand applies pending migrations of the control event log and
// reports the schema state.
func newMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply control event log migrations and print their status",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadDatabaseConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			states, err := db.Migrations(ctx, migrations.FS)
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}
			out := cmd.Root().Writer
			for _, s := range states {
				if s.Pending() {
					fmt.Fprintf(out, "pending  %04d %s\n", s.Seq, s.Name)
					continue
				}
				fmt.Fprintf(out, "applied  %04d %s %s\n", s.Seq, s.Name, s.AppliedAt.Format(time.DateTime))
			}
			return nil
		},
	}
}

// newEventsCommand prints recorded control events as JSON lines, newest first.
func newEventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List recorded control messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show events of this kind (job_status, selected_flexibility, is_enabled, tooltip_request)",
			},
			&cli.StringFlag{
				Name:  "scenario",
				Usage: "Only show events received while this scenario ran",
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Only show accepted or dropped messages",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of events",
				Value: 50,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadDatabaseConfig(cmd)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			result, err := controllog.NewSQLiteRepository(db.DB).List(ctx, controllog.Filter{
				Kind:     cmd.String("kind"),
				Scenario: cmd.String("scenario"),
				Outcome:  cmd.String("outcome"),
				Limit:    cmd.Int("limit"),
			})
			if err != nil {
				return fmt.Errorf("listing control events: %w", err)
			}

			enc := json.NewEncoder(cmd.Root().Writer)
			for i := range result.Events {
				if err := enc.Encode(&result.Events[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// loadDatabaseConfig reads the database section of the configuration named
// by the root --config flag.
func loadDatabaseConfig(cmd *cli.Command) (config.DatabaseConfig, error) {
	cfg, err := config.Load(cmd.Root().String("config"))
	if err != nil {
		return config.DatabaseConfig{}, fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Database.Enabled {
		return config.DatabaseConfig{}, fmt.Errorf("control event log is disabled in %s", cmd.Root().String("config"))
	}
	return cfg.Database, nil
}
