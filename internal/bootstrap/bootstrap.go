// Package bootstrap wires a configured ingest.Runner for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LJTian/GovNewsHub/internal/collector"
	"github.com/LJTian/GovNewsHub/internal/config"
	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/ingest"
	"github.com/LJTian/GovNewsHub/internal/processor"
	"github.com/LJTian/GovNewsHub/internal/retry"
	"github.com/LJTian/GovNewsHub/internal/store"
	"github.com/LJTian/GovNewsHub/internal/store/gormstore"
	"github.com/LJTian/GovNewsHub/internal/store/sheetstore"
)

// brtOffset is used when the tz database is missing from the image.
const brtOffset = -3 * time.Hour

// NewStoreClient picks the store backend named by cfg.StoreBackend.
func NewStoreClient(ctx context.Context, cfg *config.Config) (store.Client, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendPostgres:
		c, err := gormstore.New(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendSheets:
		c, err := sheetstore.New(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
}

// NewRunner builds the runner and returns the source catalog it runs.
func NewRunner(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*ingest.Runner, []collector.SourceConfig, error) {
	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, nil, err
	}

	client, err := NewStoreClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	inv, err := retry.New(cfg.RetryMaxAttempts, cfg.RetryBaseDelay, cfg.RetryJitter, store.IsQuota, log.WithField("component", "retry"))
	if err != nil {
		return nil, nil, err
	}

	fetcher := collector.NewHTTPFetcher(collector.FetcherOptions{
		UserAgent:   cfg.FetchUserAgent,
		Timeout:     cfg.FetchTimeout,
		InsecureTLS: cfg.FetchInsecureTLS,
		RPS:         cfg.FetchRPS,
	})

	r := &ingest.Runner{
		Client:      client,
		StoreKey:    cfg.StoreKey,
		Invoker:     inv,
		Fetcher:     fetcher,
		Sources:     sources,
		Processor:   processor.NewSimpleProcessor(cfg.Placeholder),
		LedgerTable: cfg.LedgerTable,
		BatchSize:   cfg.BatchSize,
		Location:    dates.LoadLocation(cfg.Timezone, brtOffset),
		Log:         log,
	}
	return r, sources, nil
}
