package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/cacao-scan/config"
	"github.com/nvr-ai/cacao-scan/detector"
	"github.com/nvr-ai/cacao-scan/logger"
	"github.com/nvr-ai/cacao-scan/metrics"
	"github.com/nvr-ai/cacao-scan/server"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Development); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log()

	if cfg.Workers > runtime.NumCPU() {
		log.Warn("workers exceed CPU cores, inference may slow down",
			zap.Int("workers", cfg.Workers),
			zap.Int("cpus", runtime.NumCPU()),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	det, err := detector.FromConfig(cfg, m, log)
	if err != nil {
		log.Fatal("failed to start detector", zap.Error(err))
	}
	defer det.Close()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := server.New(server.Config{
		Detector:       det,
		Metrics:        m,
		Logger:         log,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}

	if cfg.Monitor.Enabled {
		go m.StartProcessMonitor(ctx, cfg.Monitor.Interval, log)
	}

	httpServer := &http.Server{
		Addr:        cfg.Server.Listen,
		Handler:     srv.Handler(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
