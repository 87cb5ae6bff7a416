package main

import (
	"context"
	"fmt"
	"os"

	"github.com/johann/primevista/internal/config"
	"github.com/johann/primevista/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	initDB     bool
)

var rootCmd = &cobra.Command{
	Use:   "primevista",
	Short: "PrimeVista landing page and admin panel",
	Long: `primevista serves the PrimeVista landing page and its content admin panel.

Run with --init-db once to create the database tables, then without flags
(or with 'serve') to start the web server.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initDB {
			return runInitDB(cmd, args)
		}
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is <user config dir>/primevista/server.json)")
	rootCmd.Flags().BoolVar(&initDB, "init-db", false, "Create the database tables and exit")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

// bootstrap loads and validates the configuration and builds the logger
// every component shares.
func bootstrap() (*config.ServerConfig, zerolog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config %s: %w", cfg.Path(), err)
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if err := initDatabase(cmd.Context(), cfg.DBPath, logger); err != nil {
		logger.Error().Err(err).Str("db_path", cfg.DBPath).Msg("database initialisation failed")
		return err
	}
	logger.Info().Str("db_path", cfg.DBPath).Msg("database initialised")
	return nil
}

// initDatabase creates any missing tables in the database at path.
func initDatabase(ctx context.Context, path string, logger zerolog.Logger) error {
	store, err := storage.Open(path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Initialize(ctx)
}
