package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"kisan-mitra/api/internal/config"
	"kisan-mitra/api/internal/engine"
	"kisan-mitra/api/internal/handle"
	"kisan-mitra/api/internal/httpserver"
	"kisan-mitra/api/internal/logger"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	relay, chatter, err := engine.FromConfig(cfg)
	if err != nil {
		log.Fatal("upstream", zap.Error(err))
	}

	h := handle.New(relay, chatter, cfg.UpstreamTimeout)
	router := httpserver.NewRouter(httpserver.Options{
		Handle:      h,
		PublicDir:   cfg.PublicDir,
		CORSOrigins: cfg.CORSOrigins,
		Banner:      "kisan-mitra relay",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	log.Info("relay starting",
		zap.String("addr", addr),
		zap.String("provider", cfg.Provider),
		zap.Bool("configured", relay.Configured()),
	)
	if err := httpserver.Run(ctx, addr, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server", zap.Error(err))
	}
	log.Info("relay stopped")
}
