package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/autocv/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :8000)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the autocv api", zap.String("version", version))

	d, err := buildDeps(config, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}

	if status := d.compiler.CheckToolchain(ctx); status.Installed {
		logger.Info("latex toolchain found", zap.Stringp("version", status.Version))
	} else {
		logger.Warn("latex toolchain not found, pdf rendering will fail", zap.String("binary", config.Latex.Binary))
	}

	srv, err := server.New(server.Options{
		Generator:      d.generator,
		Compiler:       d.compiler,
		Jobs:           d.scraper,
		Settings:       d.settings,
		Logger:         logger.Named("http"),
		CORSOrigins:    splitOrigins(config.CORSOrigins),
		RequestTimeout: config.RequestTimeout,
	})
	if err != nil {
		logger.Fatal("creating http server", zap.Error(err))
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Listen(config.Listen)
	}()

	select {
	case err := <-errs:
		if err != nil {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down", zap.String("reason", "signal received"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
