package weather

import (
	"context"
	"fmt"

	"github.com/bbernstein/weatherdash/internal/cache"
	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/bbernstein/weatherdash/internal/openmeteo"
	"github.com/bbernstein/weatherdash/internal/store"
	"github.com/bbernstein/weatherdash/pkg/http/client"
	"github.com/rs/zerolog/log"
)

// ServiceFactory builds the orchestrator for an entry point
type ServiceFactory interface {
	NewService(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) (*Service, error)
}

type DefaultServiceFactory struct{}

// NewService wires the embedded store, the configured durable backend and the
// Open-Meteo client into a Service
func (f *DefaultServiceFactory) NewService(ctx context.Context, cfg *config.Config, cacheCfg *config.CacheConfig) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if cacheCfg == nil {
		cacheCfg = config.GetCacheConfig()
	}

	params := cfg.FetchParams()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	blobs, err := cache.NewBlobStore(ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("creating durable area: %w", err)
	}

	httpClient := client.New(client.Options{
		BaseURL:    cfg.OpenMeteoBaseURL,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
		Name:       "openmeteo",
	})

	var connectivity Connectivity
	if cfg.ForceOffline {
		log.Info().Msg("Network forced offline")
		connectivity = StaticConnectivity(false)
	} else {
		connectivity = NewDialConnectivity(cfg.ProbeAddress, cfg.ProbeTimeout)
	}

	return NewService(
		store.New(),
		blobs,
		openmeteo.NewClient(httpClient),
		connectivity,
		WithFetchTimeout(cfg.FetchTimeout),
		WithParams(params),
	), nil
}
