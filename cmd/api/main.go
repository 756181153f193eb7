package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"processing-requests/internal/http/handlers"
	httpapi "processing-requests/internal/http/httpapi"
	"processing-requests/internal/infra"
	"processing-requests/internal/wiring"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := wiring.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise dependencies")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to release dependencies")
		}
	}()

	app := handlers.NewApp(components.Service, &logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		Logger:          logger,
	})

	logger.Info().
		Str("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Str("queue", cfg.QueueDriver).
		Msg("API listening")
	if err := infra.NewHTTPServer(cfg, router).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}
