// Package weather decides, once per service lifetime, whether the dashboard is
// served from the local store or from a fresh fetch of the remote source.
package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bbernstein/weatherdash/internal/cache"
	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Result is what a load produced. Err is only set on results returned by State.
type Result struct {
	Snapshot *models.WeatherSnapshot
	Source   models.Source
	Status   Status
	LoadID   string
	Err      error
}

// call is one in-flight load shared by every concurrent Load caller
type call struct {
	id     string
	done   chan struct{}
	result *Result
	err    error
}

type Service struct {
	store        Store
	blobs        cache.BlobStore
	source       Source
	connectivity Connectivity
	observer     Observer
	fetchTimeout time.Duration
	params       models.FetchParams

	mu       sync.Mutex
	inflight *call
	served   *Result
	failed   *Result

	offlineHits     atomic.Uint64
	networkFetches  atomic.Uint64
	fetchFailures   atomic.Uint64
	persistFailures atomic.Uint64
}

type Option func(*Service)

func WithObserver(observer Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithFetchTimeout bounds the remote fetch. Zero means no bound.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.fetchTimeout = timeout
	}
}

func WithParams(params models.FetchParams) Option {
	return func(s *Service) {
		s.params = params
	}
}

func NewService(store Store, blobs cache.BlobStore, source Source, connectivity Connectivity, opts ...Option) *Service {
	s := &Service{
		store:        store,
		blobs:        blobs,
		source:       source,
		connectivity: connectivity,
		observer:     LogObserver{},
		params:       config.New().FetchParams(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load returns the current snapshot. The first call runs the load; callers
// arriving while it runs wait for the same execution. A successful result is
// kept for the lifetime of the service, a failed one is not.
func (s *Service) Load(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.served != nil {
		result := *s.served
		s.mu.Unlock()
		return &result, nil
	}

	c := s.inflight
	if c == nil {
		c = &call{
			id:   uuid.NewString(),
			done: make(chan struct{}),
		}
		s.inflight = c
		// the load outlives any single caller
		go s.execute(context.WithoutCancel(ctx), c)
	}
	s.mu.Unlock()

	select {
	case <-c.done:
		if c.err != nil {
			return nil, c.err
		}
		result := *c.result
		return &result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) execute(ctx context.Context, c *call) {
	start := time.Now()
	result, err := s.run(ctx, c.id)

	if err != nil {
		s.observe(Event{LoadID: c.id, Stage: StageFailed, Duration: time.Since(start), Err: err})
	} else {
		s.observe(Event{
			LoadID:   c.id,
			Stage:    StageServed,
			Duration: time.Since(start),
			Source:   result.Source,
			Hourly:   len(result.Snapshot.Hourly),
			Daily:    len(result.Snapshot.Daily),
		})
	}

	s.mu.Lock()
	s.inflight = nil
	if err != nil {
		s.failed = &Result{Status: StatusError, LoadID: c.id, Err: err}
	} else {
		s.served = result
		s.failed = nil
	}
	c.result, c.err = result, err
	s.mu.Unlock()

	close(c.done)
}

// State reports progress without blocking
func (s *Service) State() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.served != nil:
		return *s.served
	case s.inflight != nil:
		return Result{Status: StatusLoading, LoadID: s.inflight.id}
	case s.failed != nil:
		return *s.failed
	default:
		return Result{Status: StatusIdle}
	}
}

func (s *Service) run(ctx context.Context, loadID string) (*Result, error) {
	if err := s.openStore(ctx, loadID); err != nil {
		return nil, err
	}

	// Offline path: local rows win regardless of connectivity
	start := time.Now()
	local, err := s.store.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning local store: %w", err)
	}
	if local.Valid() {
		s.offlineHits.Add(1)
		s.observe(Event{
			LoadID:   loadID,
			Stage:    StageScan,
			Duration: time.Since(start),
			Source:   models.SourceOffline,
			Hourly:   len(local.Hourly),
			Daily:    len(local.Daily),
		})
		return &Result{Snapshot: local, Source: models.SourceOffline, Status: StatusReady, LoadID: loadID}, nil
	}
	s.observe(Event{LoadID: loadID, Stage: StageScan, Duration: time.Since(start)})

	start = time.Now()
	online := s.connectivity.Online(ctx)
	s.observe(Event{LoadID: loadID, Stage: StageConnectivity, Duration: time.Since(start), Online: online})
	if !online {
		return nil, &NoDataError{}
	}

	fetched, err := s.fetch(ctx, loadID)
	if err != nil {
		s.fetchFailures.Add(1)
		return nil, err
	}
	s.networkFetches.Add(1)

	s.writeThrough(ctx, loadID, fetched)

	return &Result{Snapshot: fetched, Source: models.SourceNetwork, Status: StatusReady, LoadID: loadID}, nil
}

// openStore restores the durable image into the store. A failed restore or
// an unreadable image leaves the store empty rather than failing the load.
func (s *Service) openStore(ctx context.Context, loadID string) error {
	start := time.Now()
	image, err := s.blobs.Restore(ctx)
	s.observe(Event{LoadID: loadID, Stage: StageRestore, Duration: time.Since(start), Bytes: len(image), Err: err})
	if err != nil {
		image = nil
	}

	start = time.Now()
	err = s.store.Open(ctx, image)
	if err != nil && image != nil {
		s.observe(Event{LoadID: loadID, Stage: StageOpen, Duration: time.Since(start), Bytes: len(image), Err: err})
		start = time.Now()
		err = s.store.Open(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	s.observe(Event{LoadID: loadID, Stage: StageOpen, Duration: time.Since(start)})
	return nil
}

func (s *Service) fetch(ctx context.Context, loadID string) (*models.WeatherSnapshot, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	snapshot, err := s.source.FetchSnapshot(ctx, s.params)
	if err == nil && !snapshot.Valid() {
		err = errors.New("remote source returned an empty series")
	}
	if err != nil {
		reason := ReasonFetch
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		fetchErr := NewFetchError(reason, err)
		s.observe(Event{LoadID: loadID, Stage: StageFetch, Duration: time.Since(start), Err: fetchErr})
		return nil, fetchErr
	}

	s.observe(Event{
		LoadID:   loadID,
		Stage:    StageFetch,
		Duration: time.Since(start),
		Source:   models.SourceNetwork,
		Hourly:   len(snapshot.Hourly),
		Daily:    len(snapshot.Daily),
	})
	return snapshot, nil
}

// writeThrough stores the fetched snapshot and mirrors the image durably.
// Failures are observed and counted, never returned.
func (s *Service) writeThrough(ctx context.Context, loadID string, snapshot *models.WeatherSnapshot) {
	start := time.Now()
	if err := s.store.ReplaceSnapshot(ctx, *snapshot); err != nil {
		s.persistFailures.Add(1)
		s.observe(Event{LoadID: loadID, Stage: StageWriteThrough, Duration: time.Since(start), Err: err})
		return
	}

	image, err := s.store.ExportImage(ctx)
	if err != nil {
		s.persistFailures.Add(1)
		s.observe(Event{LoadID: loadID, Stage: StageWriteThrough, Duration: time.Since(start), Err: err})
		return
	}
	s.observe(Event{
		LoadID:   loadID,
		Stage:    StageWriteThrough,
		Duration: time.Since(start),
		Hourly:   len(snapshot.Hourly),
		Daily:    len(snapshot.Daily),
		Bytes:    len(image),
	})

	start = time.Now()
	err = s.blobs.Persist(ctx, image)
	if err != nil {
		s.persistFailures.Add(1)
	}
	s.observe(Event{LoadID: loadID, Stage: StagePersist, Duration: time.Since(start), Bytes: len(image), Err: err})
}

func (s *Service) observe(e Event) {
	if s.observer != nil {
		s.observer.Observe(e)
	}
}

// Stats returns load counters
func (s *Service) Stats() map[string]uint64 {
	return map[string]uint64{
		"offline_hits":     s.offlineHits.Load(),
		"network_fetches":  s.networkFetches.Load(),
		"fetch_failures":   s.fetchFailures.Load(),
		"persist_failures": s.persistFailures.Load(),
	}
}

// Close waits for a running load, then frees the store handle. A later Load
// reopens it from the durable image.
func (s *Service) Close() error {
	s.mu.Lock()
	c := s.inflight
	s.mu.Unlock()
	if c != nil {
		<-c.done
	}

	s.mu.Lock()
	s.served = nil
	s.failed = nil
	s.mu.Unlock()

	log.Debug().Msg("Closing weather service")
	return s.store.Close()
}
