package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"processing-requests/internal/infra"
	"processing-requests/internal/infra/credentials"
	"processing-requests/internal/wiring"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel).With().Str("cmd", "redispatch").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := wiring.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("redispatch: failed to initialise dependencies")
	}
	defer components.Close()

	token := cfg.RedispatchToken
	if token == "" && components.SQL != nil {
		stored, err := credentials.NewStore(components.SQL).RedispatchToken(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("redispatch: failed to load token from store")
		} else {
			token = stored
		}
	}
	if token == "" {
		logger.Warn().Msg("redispatch: no credential configured, workers will receive an empty token")
	}

	var limiter *rate.Limiter
	if cfg.RedispatchRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RedispatchRatePerSec), 1)
	}
	r := &redispatcher{
		source:      components.Service,
		logger:      logger,
		token:       token,
		caller:      serviceCaller(cfg.JWTSecret, token),
		grace:       cfg.RedispatchGrace,
		interval:    cfg.RedispatchInterval,
		concurrency: cfg.RedispatchConcurrency,
		limiter:     limiter,
	}

	if *once {
		if _, err := r.Pass(ctx); err != nil {
			logger.Fatal().Err(err).Msg("redispatch: pass failed")
		}
		return
	}
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("redispatch: stopped with error")
	}
	logger.Info().Msg("redispatch: stopped")
}
