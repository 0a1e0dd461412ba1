package openmeteo

import "fmt"

// NetworkError represents a failed request to the Open-Meteo API: transport
// failure, non-2xx status or an unusable body
type NetworkError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Open-Meteo API error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("Open-Meteo API error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new Open-Meteo API error
func NewNetworkError(message string, err error) *NetworkError {
	return &NetworkError{
		Message: message,
		Err:     err,
	}
}
