package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/api"
	"github.com/KAsare1/Kodefx-booking/cmd/utils"
	"github.com/KAsare1/Kodefx-booking/config"
	"github.com/KAsare1/Kodefx-booking/db"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "kodefx-booking",
		Short:        "Consultation booking and scheduling service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(clearDBCmd())
	rootCmd.AddCommand(reapCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, builds the logger and opens the database. The returned
// cleanup flushes Sentry and closes the pool.
func setup() (*config.Config, zerolog.Logger, *gorm.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, err
	}
	log := utils.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		return nil, log, nil, nil, err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			log.Warn().Err(err).Msg("sentry init failed")
		}
	}

	gdb, err := db.NewPSQLStorage(cfg, log)
	if err != nil {
		return nil, log, nil, nil, fmt.Errorf("database initialization error: %w", err)
	}
	log.Info().Msg("connected to the database")

	cleanup := func() {
		sentry.Flush(2 * time.Second)
		if err := db.Close(gdb); err != nil {
			log.Warn().Err(err).Msg("closing database")
			return
		}
		log.Info().Msg("database connection closed")
	}
	return cfg, log, gdb, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the expiry reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, gdb, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := api.NewAPIServer(ctx, cfg, gdb, log)
			if err != nil {
				return err
			}
			return server.Run(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the scheduling tables and the overlap constraint",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, gdb, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.Migrate(gdb, log); err != nil {
				return fmt.Errorf("migration error: %w", err)
			}
			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func clearDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-db",
		Short: "Drop scheduling tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			names, _ := cmd.Flags().GetString("tables")

			_, log, gdb, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if !yes {
				var confirmation string
				fmt.Print("Are you sure you want to clear the database? (yes/no): ")
				fmt.Scanln(&confirmation)
				if confirmation != "yes" {
					log.Info().Msg("database clearing cancelled")
					return nil
				}
			}

			var tables []interface{}
			for _, name := range strings.Split(names, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				table, ok := db.TableByName(name)
				if !ok {
					return fmt.Errorf("unknown table: %s", name)
				}
				tables = append(tables, table)
			}

			if err := db.DropAll(gdb, log, tables...); err != nil {
				return fmt.Errorf("error clearing database: %w", err)
			}
			log.Info().Msg("database cleared successfully")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
	cmd.Flags().String("tables", "", "Comma separated tables to drop (User, Consultant, Appointment, Review, Device, NotificationHistory); empty drops all")
	return cmd
}

func reapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one expiry pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, gdb, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			server, err := api.NewAPIServer(ctx, cfg, gdb, log)
			if err != nil {
				return err
			}
			n, err := server.Reaper().RunOnce(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("cancelled", n).Msg("expiry pass finished")
			return nil
		},
	}
}
