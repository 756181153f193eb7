package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisOptions configures the distributed locker.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
	Poll     time.Duration
	Logger   *infra.Logger
}

// Redis is a lease-based lock shared by every replica pointing at the same
// Redis instance.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	poll   time.Duration
	logger *infra.Logger
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedis(client, opts), nil
}

func newRedis(client *redis.Client, opts RedisOptions) *Redis {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	poll := opts.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "processing-requests:lock:"
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix, poll: poll, logger: opts.Logger}
}

// Lock acquires key with SET NX PX, polling until it succeeds or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: acquire lock: %w", domain.ErrDependencyUnavailable, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			if r.logger != nil {
				r.logger.Warn().Err(err).Str("lock", name).Msg("release lock")
			}
		}
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Locker = (*Redis)(nil)
