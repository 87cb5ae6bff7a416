package main

import (
	"context"
	"fmt"

	"github.com/johann/primevista/internal/config"
	"github.com/johann/primevista/internal/server"
	"github.com/johann/primevista/internal/storage"
	"github.com/johann/primevista/internal/uploads"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  "Start the landing page and admin panel. Equivalent to running primevista without a subcommand.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	serveHost        string
	servePort        int
	serveMetricsPort int
)

// The listen flags live on the root command because bare primevista serves
// too.
func init() {
	rootCmd.PersistentFlags().StringVar(&serveHost, "host", "", "Listen host (default from config or 0.0.0.0)")
	rootCmd.PersistentFlags().IntVar(&servePort, "port", 0, "Listen port (default from config or 5000)")
	rootCmd.PersistentFlags().IntVar(&serveMetricsPort, "metrics-port", 0, "Port for Prometheus metrics (disabled if 0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	if err := applyServeFlags(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()

	store, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open database")
		return err
	}
	defer store.Close()

	if cfg.AutoInit {
		err = store.Initialize(ctx)
	} else {
		err = store.Ready(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.DBPath).Msg("database is not usable")
		return err
	}

	uploader, err := newUploader(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, store, uploader, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("db_path", cfg.DBPath).
		Str("static_dir", cfg.StaticDir).
		Msg("starting primevista")

	return srv.Run(ctx)
}

// applyServeFlags lets --host, --port and --metrics-port override the
// loaded configuration.
func applyServeFlags(cfg *config.ServerConfig) error {
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveMetricsPort != 0 {
		cfg.MetricsPort = serveMetricsPort
	}
	return cfg.Validate()
}

// newUploader stores admin uploads in S3 when a bucket is configured and
// under the static directory otherwise.
func newUploader(ctx context.Context, cfg *config.ServerConfig, logger zerolog.Logger) (*uploads.Uploader, error) {
	var store uploads.Store
	if cfg.S3.Enabled() {
		s3, err := uploads.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to configure S3 uploads: %w", err)
		}
		logger.Info().Str("bucket", cfg.S3.Bucket).Msg("uploads go to S3")
		store = s3
	} else {
		local, err := uploads.NewLocalStore(cfg.StaticDir)
		if err != nil {
			return nil, err
		}
		store = local
	}
	return uploads.New(store, cfg.MaxUploadBytes(), logger), nil
}
