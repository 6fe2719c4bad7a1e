package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forest/internal/api"
	"forest/internal/audit"
	"forest/internal/config"
	"forest/internal/coord"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadServerFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var sink coord.TxSink
	if cfg.DatabaseURL != "" {
		pool, err := audit.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		archiver := audit.New(pool, logger)
		if err := archiver.Start(ctx); err != nil {
			logger.Error("audit start failed", "err", err)
			os.Exit(1)
		}
		sink = archiver
		logger.Info("transaction archive enabled")
	} else {
		logger.Info("DATABASE_URL not set, transaction archive disabled")
	}

	coordinator := coord.New(logger, cfg.HistoryLimit, sink)
	go coordinator.Run(ctx)

	server := api.New(coordinator, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("forest server listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
