package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"processing-requests/internal/domain"
	"processing-requests/internal/middleware"
)

type fakeSource struct {
	mu      sync.Mutex
	pending []domain.ProcessingRequest
	failFor map[uuid.UUID]bool
	seen    []uuid.UUID
	tokens  []string
	callers []domain.Caller
	grace   time.Duration
}

func (f *fakeSource) ListStalePending(_ context.Context, olderThan time.Duration) ([]domain.ProcessingRequest, error) {
	f.grace = olderThan
	return f.pending, nil
}

func (f *fakeSource) Redispatch(_ context.Context, id uuid.UUID, token string, caller domain.Caller) (*domain.ProcessingRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, caller)
	f.seen = append(f.seen, id)
	f.tokens = append(f.tokens, token)
	if f.failFor[id] {
		return nil, domain.ErrQueueNotAvailable
	}
	return &domain.ProcessingRequest{ID: id}, nil
}

func TestPassRedispatchesEveryStaleRequest(t *testing.T) {
	src := &fakeSource{failFor: map[uuid.UUID]bool{}}
	for i := 0; i < 5; i++ {
		src.pending = append(src.pending, domain.ProcessingRequest{ID: uuid.New(), Status: domain.ProcessingRequestStatusPending})
	}
	src.failFor[src.pending[2].ID] = true

	r := &redispatcher{
		source:      src,
		logger:      zerolog.Nop(),
		token:       "svc-token",
		grace:       time.Minute,
		concurrency: 2,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
	res, err := r.Pass(context.Background())
	if err != nil {
		t.Fatalf("Pass error: %v", err)
	}
	if res.found != 5 || res.dispatched != 4 || res.failed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(src.seen) != 5 {
		t.Fatalf("got %d redispatch calls want 5", len(src.seen))
	}
	for _, tok := range src.tokens {
		if tok != "svc-token" {
			t.Fatalf("got token %q", tok)
		}
	}
	if src.grace != time.Minute {
		t.Fatalf("got grace %v", src.grace)
	}
}

func TestPassStopsOnCancel(t *testing.T) {
	src := &fakeSource{pending: []domain.ProcessingRequest{{ID: uuid.New()}}}
	r := &redispatcher{
		source:      src,
		logger:      zerolog.Nop(),
		concurrency: 1,
		limiter:     rate.NewLimiter(rate.Every(time.Hour), 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Pass(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(src.seen) != 0 {
		t.Fatalf("expected no redispatch, got %d", len(src.seen))
	}
}

func TestPassActsAsConfiguredCaller(t *testing.T) {
	src := &fakeSource{pending: []domain.ProcessingRequest{{ID: uuid.New()}, {ID: uuid.New()}}}
	caller := domain.Caller{ID: uuid.New(), IsSuperuser: true}
	r := &redispatcher{
		source:      src,
		logger:      zerolog.Nop(),
		caller:      caller,
		concurrency: 1,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
	if _, err := r.Pass(context.Background()); err != nil {
		t.Fatalf("Pass error: %v", err)
	}
	if len(src.callers) != 2 {
		t.Fatalf("got %d callers want 2", len(src.callers))
	}
	for _, c := range src.callers {
		if c != caller {
			t.Fatalf("got caller %+v want %+v", c, caller)
		}
	}
}

func TestServiceCaller(t *testing.T) {
	sub := uuid.New()
	signed, err := middleware.SignJWT("secret", middleware.TokenClaims{Sub: sub.String(), Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	cases := []struct {
		name   string
		secret string
		token  string
		wantID uuid.UUID
	}{
		{"jwt subject", "secret", signed, sub},
		{"wrong secret", "other", signed, uuid.Nil},
		{"opaque token", "secret", "opaque", uuid.Nil},
		{"no secret", "", signed, uuid.Nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := serviceCaller(tc.secret, tc.token)
			if !got.IsSuperuser {
				t.Fatalf("expected superuser caller, got %+v", got)
			}
			if got.ID != tc.wantID {
				t.Fatalf("got id %s want %s", got.ID, tc.wantID)
			}
		})
	}
}

func TestRunWithZeroIntervalStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	r := &redispatcher{
		source:      src,
		logger:      zerolog.Nop(),
		concurrency: 1,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
