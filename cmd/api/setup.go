package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/smart-printer/internal/config"
	"github.com/yourusername/smart-printer/internal/jobs"
	"github.com/yourusername/smart-printer/internal/pagecount"
	"github.com/yourusername/smart-printer/internal/pdf"
	"github.com/yourusername/smart-printer/internal/printjob"
	"github.com/yourusername/smart-printer/internal/repository"
	"github.com/yourusername/smart-printer/internal/storage"
)

type dependencies struct {
	service *printjob.Service
	health  func(context.Context) error
	closers []func() error
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func setupDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	repo, health, err := setupRepository(ctx, cfg, logger, deps)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.health = health

	backend, err := setupBackend(ctx, cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}

	var exact pagecount.ExactCounter = pagecount.Unavailable{}
	if cfg.PDFExactCount {
		exact = pdf.NewPageCounter()
	}

	opts := printjob.Options{
		Rules: printjob.Rules{
			MaxFiles:    cfg.MaxFiles,
			MaxFileSize: cfg.MaxFileSize,
			Printers:    cfg.Printers,
		},
		Logger: logger,
	}
	if cfg.QueueRedisURL != "" {
		notifier, err := jobs.NewNotifier(cfg.QueueRedisURL, logger.Named("notifier"))
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, notifier.Close)
		opts.Notifier = notifier
	}

	deps.service = printjob.NewService(
		repo,
		storage.NewFileStore(backend, nil),
		pagecount.New(exact, logger.Named("pagecount")),
		opts,
	)
	return deps, nil
}

func setupRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger, deps *dependencies) (printjob.Repository, func(context.Context) error, error) {
	switch cfg.JobStore {
	case config.JobStoreRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		deps.closers = append(deps.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		health := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return jobs.NewStore(rdb, cfg.JobRetention()), health, nil
	case config.JobStoreSQL:
		store, err := repository.Open(ctx, repository.Config{
			Driver:          cfg.DBDriver,
			DSN:             cfg.DBURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
			DialTimeout:     cfg.DBDialTimeout,
		}, logger.Named("repository"))
		if err != nil {
			return nil, nil, err
		}
		deps.closers = append(deps.closers, func() error { store.Close(); return nil })
		health := func(ctx context.Context) error { return store.HealthCheck(ctx, 2*time.Second) }
		return store, health, nil
	default:
		return nil, nil, errors.New("unknown job store: " + cfg.JobStore)
	}
}

func setupBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		return storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Prefix:    cfg.MinIOPrefix,
		})
	default:
		return storage.NewLocal(cfg.UploadDir), nil
	}
}
