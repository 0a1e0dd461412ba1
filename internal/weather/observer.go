package weather

import (
	"time"

	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Stage string

const (
	StageRestore      Stage = "restore"
	StageOpen         Stage = "open"
	StageScan         Stage = "scan"
	StageConnectivity Stage = "connectivity"
	StageFetch        Stage = "fetch"
	StageWriteThrough Stage = "write_through"
	StagePersist      Stage = "persist"
	StageServed       Stage = "served"
	StageFailed       Stage = "failed"
)

// Event describes one step of a load
type Event struct {
	LoadID   string
	Stage    Stage
	Duration time.Duration
	Source   models.Source
	Hourly   int
	Daily    int
	Bytes    int
	Online   bool
	Err      error
}

// Observer receives load events. Observe is called from the loading goroutine
// and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// LogObserver writes events to the global zerolog logger
type LogObserver struct{}

func (LogObserver) Observe(e Event) {
	var ev *zerolog.Event
	switch {
	case e.Err != nil && e.Stage == StageFailed:
		ev = log.Error()
	case e.Err != nil:
		ev = log.Warn()
	case e.Stage == StageServed:
		ev = log.Info()
	default:
		ev = log.Debug()
	}

	ev = ev.Str("load_id", e.LoadID).
		Str("stage", string(e.Stage)).
		Dur("duration", e.Duration)

	if e.Source != "" {
		ev = ev.Str("source", string(e.Source))
	}
	if e.Hourly > 0 || e.Daily > 0 {
		ev = ev.Int("hourly", e.Hourly).Int("daily", e.Daily)
	}
	if e.Bytes > 0 {
		ev = ev.Int("bytes", e.Bytes)
	}
	if e.Stage == StageConnectivity {
		ev = ev.Bool("online", e.Online)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}

	ev.Msg("Weather load event")
}
