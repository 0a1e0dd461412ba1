package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Client defines the interface for S3 operations we need
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const s3Backend = "s3"

// S3BlobStore keeps the image as a single object under weather_db/databases/weather
type S3BlobStore struct {
	client     S3Client
	bucketName string
	clock      clock
}

func NewS3BlobStore(client S3Client, bucketName string) *S3BlobStore {
	return &S3BlobStore{
		client:     client,
		bucketName: bucketName,
		clock:      systemClock{},
	}
}

func objectKey() string {
	return AreaName + "/" + StoreName + "/" + BlobKey
}

// Restore downloads the image. A missing object means nothing was persisted yet.
func (s *S3BlobStore) Restore(ctx context.Context) ([]byte, error) {
	if s.bucketName == "" {
		return nil, NewPersistenceError(s3Backend, "restore", errors.New("empty bucket name"))
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey()),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, NewPersistenceError(s3Backend, "restore", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing S3 object body")
		}
	}(result.Body)

	image, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, NewPersistenceError(s3Backend, "restore", fmt.Errorf("reading object body: %w", err))
	}
	if len(image) == 0 {
		return nil, nil
	}

	log.Debug().Int("bytes", len(image)).Str("bucket", s.bucketName).Msg("Restored weather image from S3")
	return image, nil
}

func (s *S3BlobStore) Persist(ctx context.Context, image []byte) error {
	if s.bucketName == "" {
		return NewPersistenceError(s3Backend, "persist", errors.New("empty bucket name"))
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey()),
		Body:        bytes.NewReader(image),
		ContentType: aws.String("application/vnd.sqlite3"),
		Metadata: map[string]string{
			"updated-at": strconv.FormatInt(s.clock.Now().Unix(), 10),
		},
	})
	if err != nil {
		return NewPersistenceError(s3Backend, "persist", err)
	}

	log.Debug().Int("bytes", len(image)).Str("bucket", s.bucketName).Msg("Persisted weather image to S3")
	return nil
}
