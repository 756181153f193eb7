package wiring

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"processing-requests/internal/adapter/repo"
	"processing-requests/internal/broker"
	"processing-requests/internal/domain"
	"processing-requests/internal/gateway"
	"processing-requests/internal/infra"
	"processing-requests/internal/lock"
	"processing-requests/internal/service"
)

// Components are the long-lived collaborators built from configuration.
type Components struct {
	Pool      *pgxpool.Pool
	SQL       infra.SQLExecutor
	Service   *service.ProcessingRequestService
	Publisher domain.Publisher

	closers []func() error
}

// Build connects every backend selected in cfg and assembles the
// orchestrator. On error everything opened so far is closed again.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Components, error) {
	c := &Components{}
	if err := c.build(ctx, cfg, logger); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) error {
	var store domain.ProcessingRequestRepository
	switch cfg.StoreDriver {
	case infra.StoreDriverMemory:
		store = repo.NewMemoryProcessingRequestRepository()
	default:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		c.Pool = pool
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		c.SQL = infra.NewSQLRunner(pool, *logger)
		store = repo.NewProcessingRequestRepository(c.SQL)
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	c.Publisher = publisher
	c.closers = append(c.closers, publisher.Close)

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		redisLock, err := lock.NewRedis(ctx, lock.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.LockTTL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		c.closers = append(c.closers, redisLock.Close)
		locker = redisLock
	} else {
		locker = lock.NewLocal()
	}

	gw := gateway.Options{Logger: logger, RequestTimeout: cfg.GatewayTimeout}
	gw.BaseURL = cfg.UserServiceURL
	users, err := gateway.NewUserClient(gw)
	if err != nil {
		return err
	}
	gw.BaseURL = cfg.ProjectServiceURL
	projects, err := gateway.NewProjectClient(gw)
	if err != nil {
		return err
	}
	gw.BaseURL = cfg.AssetServiceURL
	assets, err := gateway.NewAssetClient(gw)
	if err != nil {
		return err
	}

	svc, err := service.NewProcessingRequestService(service.Options{
		Repository: store,
		Users:      users,
		Projects:   projects,
		Assets:     assets,
		Publisher:  publisher,
		Locker:     locker,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	c.Service = svc
	return nil
}

func newPublisher(cfg *infra.Config, logger *infra.Logger) (domain.Publisher, error) {
	switch cfg.QueueDriver {
	case infra.QueueDriverKafka:
		return broker.NewKafkaPublisher(broker.KafkaOptions{
			Brokers:  cfg.KafkaBrokers,
			ClientID: cfg.KafkaClientID,
			Timeout:  cfg.KafkaTimeout,
			Logger:   logger,
		})
	case infra.QueueDriverNATS:
		return broker.NewNATSPublisher(broker.NATSOptions{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			FlushTimeout:  cfg.NATSFlushTimeout,
			Logger:        logger,
		})
	case infra.QueueDriverMemory:
		logger.Warn().Msg("using in-memory queue; work messages are not delivered anywhere")
		return broker.NewMemoryPublisher(), nil
	}
	return nil, fmt.Errorf("unsupported queue driver %q", cfg.QueueDriver)
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
