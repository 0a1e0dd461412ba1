package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Durable area backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendDynamoDB = "dynamodb"
)

// CacheConfig holds the durable area and chart cache configuration
type CacheConfig struct {
	// Durable area settings
	Backend     string
	SQLitePath  string
	PostgresDSN string
	S3Bucket    string
	DynamoTable string
	AWSRegion   string
	AWSEndpoint string

	// Chart cache settings
	ChartLRUSize       int
	ChartLRUTTLMinutes int
	EnableChartCache   bool
}

const (
	// Default values
	defaultBackend            = BackendSQLite
	defaultSQLitePath         = "./data/weather_db.sqlite"
	defaultDynamoTable        = "weather_db"
	defaultAWSRegion          = "us-east-1"
	defaultChartLRUSize       = 64
	defaultChartLRUTTLMinutes = 60
)

// GetCacheConfig returns the cache configuration from environment variables or defaults
func GetCacheConfig() *CacheConfig {
	config := &CacheConfig{
		Backend:            getEnvOrDefault("DURABLE_BACKEND", defaultBackend),
		SQLitePath:         getEnvOrDefault("DURABLE_SQLITE_PATH", defaultSQLitePath),
		PostgresDSN:        os.Getenv("DURABLE_POSTGRES_DSN"),
		S3Bucket:           os.Getenv("DURABLE_S3_BUCKET"),
		DynamoTable:        getEnvOrDefault("DURABLE_DYNAMO_TABLE", defaultDynamoTable),
		AWSRegion:          getEnvOrDefault("AWS_REGION", defaultAWSRegion),
		AWSEndpoint:        os.Getenv("AWS_ENDPOINT_URL"),
		ChartLRUSize:       getEnvInt("CACHE_CHART_LRU_SIZE", defaultChartLRUSize),
		ChartLRUTTLMinutes: getEnvInt("CACHE_CHART_TTL_MINUTES", defaultChartLRUTTLMinutes),
		EnableChartCache:   getEnvBool("CACHE_ENABLE_CHART", true),
	}

	log.Debug().
		Str("Backend", config.Backend).
		Str("SQLitePath", config.SQLitePath).
		Str("S3Bucket", config.S3Bucket).
		Str("DynamoTable", config.DynamoTable).
		Str("AWSRegion", config.AWSRegion).
		Str("AWSEndpoint", config.AWSEndpoint).
		Int("ChartLRUSize", config.ChartLRUSize).
		Int("ChartLRUTTLMinutes", config.ChartLRUTTLMinutes).
		Bool("EnableChartCache", config.EnableChartCache).
		Msg("Cache configuration loaded")

	return config
}

func (c *CacheConfig) GetChartLRUTTL() time.Duration {
	return time.Duration(c.ChartLRUTTLMinutes) * time.Minute
}

// Helper functions to get environment variables with defaults
func getEnvInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Msg("Invalid integer value in environment variable, using default")
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
