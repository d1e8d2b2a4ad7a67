// internal/syncer/provider.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-queue/internal/common/observability"
	"exam-queue/internal/models"
	"exam-queue/internal/seed"

	"go.opentelemetry.io/otel/attribute"
)

const (
	SourceRemote = "remote"
	SourceCache  = "cache"
	SourceSeed   = "seed"
)

// ErrNoProvider is returned when every provider in the chain failed.
var ErrNoProvider = errors.New("no data provider succeeded")

// Provider is one step of the startup fallback chain. Fetch must return
// either all three collections or an error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (models.Dataset, error)
}

type remoteProvider struct{ remote Remote }

func (p remoteProvider) Name() string { return SourceRemote }

func (p remoteProvider) Fetch(ctx context.Context) (models.Dataset, error) {
	return p.remote.Dataset(ctx)
}

type cacheProvider struct{ cache Cache }

func (p cacheProvider) Name() string { return SourceCache }

func (p cacheProvider) Fetch(ctx context.Context) (models.Dataset, error) {
	return p.cache.LoadDataset(ctx)
}

type seedProvider struct{}

func (seedProvider) Name() string { return SourceSeed }

func (seedProvider) Fetch(context.Context) (models.Dataset, error) {
	return seed.Dataset(), nil
}

// Attempt records one provider call.
type Attempt struct {
	Provider string        `json:"provider"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Report describes how the store was populated at startup.
type Report struct {
	Source   string    `json:"source"`
	Version  uint64    `json:"version"`
	Attempts []Attempt `json:"attempts"`
}

// Resolve tries providers in order and returns the first dataset that
// loads. Later providers are not called.
func Resolve(ctx context.Context, providers []Provider, obs *observability.Observability) (_ models.Dataset, _ Report, err error) {
	ctx, span := obs.StartSpan(ctx, "sync.resolve")
	defer func() { observability.EndSpan(span, err) }()

	var report Report
	var errs []error
	for _, p := range providers {
		fetchCtx, fetchSpan := obs.StartSpan(ctx, "sync.fetch", attribute.String("provider", p.Name()))
		start := time.Now()
		ds, fetchErr := p.Fetch(fetchCtx)
		elapsed := time.Since(start)
		observability.EndSpan(fetchSpan, fetchErr)
		obs.RecordSyncAttempt(ctx, "bootstrap", p.Name(), elapsed, fetchErr)

		attempt := Attempt{Provider: p.Name(), Duration: elapsed}
		if fetchErr != nil {
			attempt.Error = fetchErr.Error()
			report.Attempts = append(report.Attempts, attempt)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), fetchErr))
			continue
		}
		report.Attempts = append(report.Attempts, attempt)
		report.Source = p.Name()
		return ds, report, nil
	}
	return models.Dataset{}, report, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
}
