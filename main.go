package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docs-editor/pkg/config"
	"docs-editor/pkg/handlers"
	"docs-editor/pkg/logging"
	"docs-editor/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "override file (.yaml, .toml or .json)")
	mode := flag.String("mode", "", "development or production")
	addr := flag.String("addr", "", "listen address")
	root := flag.String("root", "", "content root")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.Merge(&config.Override{Mode: nonEmpty(*mode), Addr: nonEmpty(*addr), ContentRoot: nonEmpty(*root)})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	logger := logging.Get("server")

	if cfg.ReadOnly() {
		gin.SetMode(gin.ReleaseMode)
	}

	svc := services.NewFromConfig(cfg)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.NewRouter(cfg, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("root", cfg.ContentRoot).Str("mode", cfg.Mode).
			Bool("tree_cache", cfg.TreeCache).Msg("editor listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
