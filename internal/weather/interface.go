package weather

import (
	"context"

	"github.com/bbernstein/weatherdash/internal/models"
)

// Store is the embedded relational store the orchestrator reads and writes through
type Store interface {
	Open(ctx context.Context, image []byte) error
	ScanAll(ctx context.Context) (*models.WeatherSnapshot, error)
	ReplaceSnapshot(ctx context.Context, snapshot models.WeatherSnapshot) error
	ExportImage(ctx context.Context) ([]byte, error)
	Close() error
}

// Source is the remote weather data source
type Source interface {
	FetchSnapshot(ctx context.Context, params models.FetchParams) (*models.WeatherSnapshot, error)
}

// Connectivity reports whether the remote source is reachable
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Loader is what the presentation layer needs from the orchestrator
type Loader interface {
	Load(ctx context.Context) (*Result, error)
	State() Result
}
