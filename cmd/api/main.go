package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nicetab/api/internal/app"
	"nicetab/api/internal/config"
	"nicetab/api/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("NICETAB_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	builder := logging.New().Level(cfg.LogLevel).MaxSize(cfg.LogMaxSizeMB).Pretty(cfg.LogPretty)
	if cfg.LogFile != "" {
		builder = builder.FromPath(cfg.LogFile)
	}
	logs, err := builder.Make()
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logs.Close()
	logger := logs.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("close")
		}
	}()

	go a.Scheduler.Run(ctx)

	httpServer := app.NewHTTPServer(a.Service, a.Hub, cfg.CORSOrigin, cfg.APIKeyHash, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("NiceTab API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
