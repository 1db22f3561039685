package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/docfields/hybriddetect/internal/config"
	"github.com/docfields/hybriddetect/internal/pipeline"
	"github.com/docfields/hybriddetect/internal/storage"
	"github.com/docfields/hybriddetect/internal/store"
	"github.com/docfields/hybriddetect/internal/worker"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker's HTTP endpoint (POST /process, GET /healthz)",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "enable verbose logging")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || flagDebug

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	blobs, err := storage.NewLocalBlobs(cfg.StorageDir)
	if err != nil {
		return err
	}
	pl, err := pipeline.New(cfg, sugar)
	if err != nil {
		return err
	}
	defer pl.Close()

	w := worker.New(st, blobs, pl, sugar)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	w.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	return runWithGracefulShutdown(ctx, srv, sugar)
}

// runWithGracefulShutdown mirrors the teacher's signal-handling main loop:
// the server runs in a goroutine, and either a delivered signal or a
// server error triggers shutdown.
func runWithGracefulShutdown(ctx context.Context, srv *http.Server, log interface {
	Infow(string, ...interface{})
	Errorw(string, ...interface{})
}) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutting down", "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Errorw("server error", "error", err)
			return err
		}
		return nil
	}
}
