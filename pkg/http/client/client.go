package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker open")
	errRetryableStatus = errors.New("retryable status code")
)

type Response struct {
	StatusCode int
	Body       []byte
}

type Interface interface {
	Get(ctx context.Context, path string) (*Response, error)
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	breaker        *gobreaker.CircuitBreaker
	GetFunc        func(ctx context.Context, path string) (*Response, error)
}

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Name labels the circuit breaker in logs
	Name string
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}

	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 5 * time.Second
	}

	if opts.Name == "" {
		opts.Name = "http"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		breaker:        breaker,
	}
}

// Get issues a GET request, retrying transport failures, 429 and 5xx responses
// with exponential backoff. Any other status is returned to the caller as is.
// When retries run out on a retryable status the last response is returned.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	if c.GetFunc != nil {
		return c.GetFunc(ctx, path)
	}

	var fullURL string
	if c.baseURL == "" {
		fullURL = path // If no base URL, treat path as full URL
	} else {
		fullURL = c.baseURL + path // Otherwise combine them
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resp *Response
		_, err := c.breaker.Execute(func() (interface{}, error) {
			r, err := c.do(ctx, fullURL)
			if err != nil {
				return nil, err
			}
			resp = r
			if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: %d", errRetryableStatus, r.StatusCode)
			}
			return nil, nil
		})

		if err == nil {
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		if ctx.Err() != nil {
			return nil, err
		}

		if attempt >= c.maxRetries {
			if resp != nil {
				return resp, nil
			}
			return nil, err
		}

		delay := c.backoff(attempt)
		log.Debug().
			Err(err).
			Str("url", fullURL).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying request")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return c.maxBackoff
	}
	delay := c.initialBackoff << attempt
	if delay > c.maxBackoff || delay <= 0 {
		delay = c.maxBackoff
	}
	return delay
}

func (c *Client) do(ctx context.Context, fullURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error().Err(err).Str("url", fullURL).Msg("Error closing response body")
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}
