package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/diewo77/invoice-tracker/internal/config"
	"github.com/diewo77/invoice-tracker/internal/db"
	"github.com/diewo77/invoice-tracker/internal/logger"
	"github.com/diewo77/invoice-tracker/internal/server"
	"github.com/diewo77/invoice-tracker/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:   "invoice-tracker",
		Short: "Invoice tracking backend for clients and their accountants",
	}
	root.AddCommand(serveCmd(), migrateCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() config.Config {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := setup()
			dbConn, err := db.Connect(cfg)
			if err != nil {
				return err
			}
			store := storage.NewDiskStore(cfg.UploadDir, cfg.BaseURL)

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           server.New(dbConn, store, cfg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			log.Info().Msg("shutdown signal received")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("error during shutdown")
				return err
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := setup()
			if _, err := db.Connect(cfg); err != nil {
				return err
			}
			log.Info().Msg("migrations completed")
			return nil
		},
	}
}
