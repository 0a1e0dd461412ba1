package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/rs/zerolog/log"
)

// NewBlobStore builds the durable area backend named by cfg.Backend
func NewBlobStore(ctx context.Context, cfg *config.CacheConfig) (BlobStore, error) {
	if cfg == nil {
		cfg = config.GetCacheConfig()
	}

	log.Info().Str("backend", cfg.Backend).Msg("Initializing durable area")

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryBlobStore(), nil

	case config.BackendSQLite:
		return NewSQLiteBlobStore(cfg.SQLitePath), nil

	case config.BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, NewPersistenceError(config.BackendPostgres, "open", errors.New("DURABLE_POSTGRES_DSN is not set"))
		}
		return NewPostgresBlobStore(cfg.PostgresDSN), nil

	case config.BackendS3:
		if cfg.S3Bucket == "" {
			return nil, NewPersistenceError(config.BackendS3, "open", errors.New("DURABLE_S3_BUCKET is not set"))
		}
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, NewPersistenceError(config.BackendS3, "open", fmt.Errorf("creating S3 client: %w", err))
		}
		return NewS3BlobStore(client, cfg.S3Bucket), nil

	case config.BackendDynamoDB:
		client, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, NewPersistenceError(config.BackendDynamoDB, "open", fmt.Errorf("creating DynamoDB client: %w", err))
		}
		store := NewDynamoBlobStore(client, cfg.DynamoTable)
		if err := store.EnsureTable(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown durable backend %q", cfg.Backend)
	}
}
