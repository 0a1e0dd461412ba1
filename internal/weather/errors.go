package weather

import (
	"errors"
	"fmt"
)

// User-visible failure reasons
const (
	ReasonNoData  = "no data, no network"
	ReasonFetch   = "fetch error"
	ReasonTimeout = "timeout"
)

// NoDataError is returned when the local store is empty and the network is unavailable
type NoDataError struct{}

func (e *NoDataError) Error() string {
	return ReasonNoData + ": local store is empty and the remote source is unreachable"
}

// FetchError wraps a failed or timed out remote fetch
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error
func NewFetchError(reason string, err error) *FetchError {
	return &FetchError{
		Reason: reason,
		Err:    err,
	}
}

// Reason maps a Load error to the short reason shown to users
func Reason(err error) string {
	var noData *NoDataError
	if errors.As(err, &noData) {
		return ReasonNoData
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason
	}
	return "internal error"
}
