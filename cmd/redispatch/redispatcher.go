package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
	"processing-requests/internal/middleware"
)

// pendingSource is the part of the orchestrator the re-dispatch loop needs.
type pendingSource interface {
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]domain.ProcessingRequest, error)
	Redispatch(ctx context.Context, id uuid.UUID, token string, caller domain.Caller) (*domain.ProcessingRequest, error)
}

type redispatcher struct {
	source      pendingSource
	logger      infra.Logger
	token       string
	caller      domain.Caller
	grace       time.Duration
	interval    time.Duration
	concurrency int
	limiter     *rate.Limiter
}

type passResult struct {
	found      int
	dispatched int
	failed     int
}

// Run repeats passes every interval until ctx is cancelled.
func (r *redispatcher) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Dur("grace", r.grace).Msg("redispatch: started")
	interval := r.interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Pass(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("redispatch: pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Pass republishes every pending request older than the grace period.
// Individual failures are logged and counted; only listing errors and
// cancellation abort the pass.
func (r *redispatcher) Pass(ctx context.Context) (passResult, error) {
	stale, err := r.source.ListStalePending(ctx, r.grace)
	if err != nil {
		return passResult{}, err
	}
	res := passResult{found: len(stale)}
	if len(stale) == 0 {
		return res, nil
	}

	results := make([]error, len(stale))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range stale {
		pr := stale[i]
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			_, err := r.source.Redispatch(gctx, pr.ID, r.token, r.caller)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn().
					Err(err).
					Str("processing_request_id", pr.ID.String()).
					Str("code", domain.ErrorCode(err)).
					Msg("redispatch: publish failed")
			}
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	for _, err := range results {
		if err != nil {
			res.failed++
		} else {
			res.dispatched++
		}
	}
	r.logger.Info().
		Int("found", res.found).
		Int("dispatched", res.dispatched).
		Int("failed", res.failed).
		Msg("redispatch: pass complete")
	return res, nil
}

// serviceCaller is the superuser identity the job acts as. When token is a JWT
// signed with secret, its subject becomes the caller id.
func serviceCaller(secret, token string) domain.Caller {
	caller := domain.Caller{IsSuperuser: true}
	if secret == "" || token == "" {
		return caller
	}
	claims, err := middleware.VerifyJWT(secret, token)
	if err != nil {
		return caller
	}
	if c, err := claims.Caller(); err == nil {
		caller.ID = c.ID
	}
	return caller
}
