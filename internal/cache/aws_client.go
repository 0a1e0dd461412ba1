package cache

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bbernstein/weatherdash/internal/config"
	"github.com/rs/zerolog/log"
)

// loadAWSConfig resolves the shared AWS configuration. A custom endpoint means a
// local emulator, which gets dummy static credentials.
func loadAWSConfig(ctx context.Context, cfg *config.CacheConfig) (aws.Config, error) {
	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSEndpoint != "" {
		log.Debug().Str("endpoint", cfg.AWSEndpoint).Msg("Using local AWS endpoint")
		options = append(options,
			awsconfig.WithClientLogMode(aws.LogRetries),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
		)
	}

	return awsconfig.LoadDefaultConfig(ctx, options...)
}

// NewS3Client creates a new S3 client based on the cache configuration
func NewS3Client(ctx context.Context, cfg *config.CacheConfig) (*s3.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewDynamoClient creates a new DynamoDB client based on the cache configuration
func NewDynamoClient(ctx context.Context, cfg *config.CacheConfig) (*dynamodb.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	}), nil
}
