package config

import (
	"os"
	"strconv"
	"time"

	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Environment      string
	LogLevel         zerolog.Level
	HTTPTimeout      time.Duration
	FetchTimeout     time.Duration
	MaxRetries       int
	OpenMeteoBaseURL string
	Location         models.Location
	StartDate        string
	EndDate          string
	// ForceOffline skips the connectivity probe and reports no network
	ForceOffline bool
	ProbeAddress string
	ProbeTimeout time.Duration
	Port         string
}

type Option func(*Config)

// WithEnvironment allows setting the environment
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogLevel allows setting the log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		parsedLevel, err := zerolog.ParseLevel(level)
		if err != nil {
			parsedLevel = zerolog.InfoLevel
		}
		c.LogLevel = parsedLevel
	}
}

// WithHTTPTimeout allows setting the HTTP timeout
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HTTPTimeout = timeout
	}
}

// WithFetchTimeout bounds the whole remote fetch, retries included
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.FetchTimeout = timeout
	}
}

func WithLocation(lat, lon float64, timezone string) Option {
	return func(c *Config) {
		c.Location = models.Location{Latitude: lat, Longitude: lon, Timezone: timezone}
	}
}

func WithDateRange(start, end string) Option {
	return func(c *Config) {
		c.StartDate = start
		c.EndDate = end
	}
}

func WithForceOffline(offline bool) Option {
	return func(c *Config) {
		c.ForceOffline = offline
	}
}

// New creates a new configuration with default values
func New(opts ...Option) *Config {
	cfg := &Config{
		Environment:      "production",
		LogLevel:         zerolog.InfoLevel,
		HTTPTimeout:      10 * time.Second,
		FetchTimeout:     30 * time.Second,
		MaxRetries:       3,
		OpenMeteoBaseURL: "https://api.open-meteo.com",
		Location: models.Location{
			Latitude:  1.29,
			Longitude: 103.85,
			Timezone:  "Asia/Singapore",
		},
		StartDate:    "2024-11-01",
		EndDate:      "2024-11-10",
		ProbeAddress: "api.open-meteo.com:443",
		ProbeTimeout: 2 * time.Second,
		Port:         "8080",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// FetchParams returns the remote request described by this configuration
func (c *Config) FetchParams() models.FetchParams {
	return models.FetchParams{
		Location:  c.Location,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
	}
}

// InitializeLogging sets up logging based on the configuration
func (c *Config) InitializeLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(c.LogLevel)

	// Setup console logger for development environments
	if c.Environment == "local" || c.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
}

// LoadFromEnv loads configuration from environment variables, reading a
// .env file first when one is present
func LoadFromEnv() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	defaults := New()
	return New(
		WithEnvironment(getEnvOrDefault("ENV", defaults.Environment)),
		WithLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
		WithHTTPTimeout(getDurationEnvOrDefault("HTTP_TIMEOUT", defaults.HTTPTimeout)),
		WithFetchTimeout(getDurationEnvOrDefault("FETCH_TIMEOUT", defaults.FetchTimeout)),
		WithLocation(
			getFloatEnvOrDefault("WEATHER_LATITUDE", defaults.Location.Latitude),
			getFloatEnvOrDefault("WEATHER_LONGITUDE", defaults.Location.Longitude),
			getEnvOrDefault("WEATHER_TIMEZONE", defaults.Location.Timezone),
		),
		WithDateRange(
			getEnvOrDefault("WEATHER_START_DATE", defaults.StartDate),
			getEnvOrDefault("WEATHER_END_DATE", defaults.EndDate),
		),
		WithForceOffline(getEnvBool("FORCE_OFFLINE", false)),
		func(c *Config) {
			c.OpenMeteoBaseURL = getEnvOrDefault("OPEN_METEO_BASE_URL", defaults.OpenMeteoBaseURL)
			c.ProbeAddress = getEnvOrDefault("CONNECTIVITY_PROBE_ADDRESS", defaults.ProbeAddress)
			c.Port = getEnvOrDefault("PORT", defaults.Port)
		},
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Msg("Invalid float value in environment variable, using default")
	}
	return defaultValue
}
