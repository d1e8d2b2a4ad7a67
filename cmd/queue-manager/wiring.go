// cmd/queue-manager/wiring.go
package main

import (
	"context"
	"fmt"
	"time"

	"exam-queue/internal/archive"
	"exam-queue/internal/common/cache"
	"exam-queue/internal/common/config"
	"exam-queue/internal/common/database"
	apphttp "exam-queue/internal/common/http"
	"exam-queue/internal/common/logger"
	"exam-queue/internal/common/observability"
	"exam-queue/internal/examapi"
	"exam-queue/internal/store"
	"exam-queue/internal/syncer"

	"github.com/prometheus/client_golang/prometheus"
)

// components is everything serve and import share.
type components struct {
	cfg     *config.Config
	store   *store.Store
	syncer  *syncer.Syncer
	archive *archive.Archive
	obs     *observability.Observability

	closers []func()
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// build wires the store and syncer. Redis and the remote API are optional:
// without them the syncer falls back further down the provider chain. The
// archive is required once enabled.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*components, error) {
	c := &components{cfg: cfg}

	c.obs = observability.New(cfg.App.Name, prometheus.DefaultRegisterer, log)
	c.closers = append(c.closers, c.obs.Shutdown)

	// Typed nils must not reach the syncer, so the optional dependencies
	// stay as interfaces until they are known to exist.
	var (
		persister store.Persister
		snapCache syncer.Cache
		remote    syncer.Remote
		arch      syncer.Archive
	)

	rdb, err := database.NewRedis(cfg.Cache.Redis)
	if err == nil {
		err = retryWithBackoff(func() error { return rdb.Ping(ctx) }, 3, time.Second, log, "Redis connection")
		if err != nil {
			_ = rdb.Close()
		}
	}
	if err != nil {
		log.Warn("Running without the local cache", map[string]interface{}{"error": err})
	} else {
		sc := cache.New(rdb.Client, cfg.Cache.KeyPrefix, cfg.Cache.Channel, log)
		persister, snapCache = sc, sc
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		log.Info("Redis connected successfully", map[string]interface{}{"address": cfg.Cache.Redis.Address})
	}

	if cfg.Remote.Enabled() {
		httpClient := apphttp.NewClient(config.GetDuration(cfg.Remote.Timeout), cfg.Remote.MaxRetries, log)
		remote = examapi.NewClient(cfg.Remote.BaseURL, httpClient, log)
		log.Info("Remote exam API configured", map[string]interface{}{"baseUrl": cfg.Remote.BaseURL})
	} else {
		log.Info("No remote exam API configured, running offline", nil)
	}

	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err := retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, log, "PostgreSQL connection")
		if err != nil {
			c.close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = pg.Close() })

		c.archive = archive.New(pg.DB, log)
		if err := c.archive.EnsureSchema(ctx); err != nil {
			c.close()
			return nil, err
		}
		arch = c.archive
		log.Info("PostgreSQL connected successfully", nil)
	}

	c.store = store.New(persister, log)
	c.syncer = syncer.New(syncer.Config{
		RefreshInterval: config.GetDuration(cfg.Sync.RefreshInterval),
		RequestTimeout:  config.GetDuration(cfg.Remote.Timeout),
	}, c.store, remote, snapCache, arch, c.obs, log)
	c.closers = append(c.closers, c.syncer.Close)

	return c, nil
}

// close releases resources in reverse order of acquisition.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
