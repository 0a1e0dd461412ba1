package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDBClient defines the interface for DynamoDB operations we need
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

const (
	dynamoBackend      = "dynamodb"
	tableCreateTimeout = 2 * time.Minute
)

// blobRecord is the single item holding the image
type blobRecord struct {
	Store     string `dynamodbav:"store"`
	Key       string `dynamodbav:"key"`
	Image     []byte `dynamodbav:"image"`
	UpdatedAt int64  `dynamodbav:"updatedAt"`
}

// DynamoBlobStore keeps the image in one item keyed by (store, key)
type DynamoBlobStore struct {
	client    DynamoDBClient
	tableName string
	clock     clock

	mu         sync.Mutex
	tableReady bool
}

// NewDynamoBlobStore creates the table on the first Restore or Persist unless
// EnsureTable already did
func NewDynamoBlobStore(client DynamoDBClient, tableName string) *DynamoBlobStore {
	if tableName == "" {
		tableName = AreaName
	}
	return &DynamoBlobStore{
		client:    client,
		tableName: tableName,
		clock:     systemClock{},
	}
}

// EnsureTable creates the table when it does not exist and waits until it is
// active. Once it succeeded later calls return immediately.
func (d *DynamoBlobStore) EnsureTable(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tableReady {
		return nil
	}
	if err := d.ensureTable(ctx); err != nil {
		return err
	}
	d.tableReady = true
	return nil
}

func (d *DynamoBlobStore) ensureTable(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return NewPersistenceError(dynamoBackend, "open", fmt.Errorf("describing table: %w", err))
	}

	log.Info().Str("table", d.tableName).Msg("Creating DynamoDB table for weather image")
	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("store"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("key"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("store"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("key"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return NewPersistenceError(dynamoBackend, "open", fmt.Errorf("creating table: %w", err))
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)}, tableCreateTimeout); err != nil {
		return NewPersistenceError(dynamoBackend, "open", fmt.Errorf("waiting for table: %w", err))
	}
	return nil
}

func (d *DynamoBlobStore) itemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"store": &types.AttributeValueMemberS{Value: StoreName},
		"key":   &types.AttributeValueMemberS{Value: BlobKey},
	}
}

func (d *DynamoBlobStore) Restore(ctx context.Context) ([]byte, error) {
	if err := d.EnsureTable(ctx); err != nil {
		return nil, err
	}

	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.itemKey(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, NewPersistenceError(dynamoBackend, "restore", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var record blobRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, NewPersistenceError(dynamoBackend, "restore", fmt.Errorf("unmarshaling blob record: %w", err))
	}
	if len(record.Image) == 0 {
		return nil, nil
	}

	log.Debug().
		Int("bytes", len(record.Image)).
		Int64("updated_at", record.UpdatedAt).
		Msg("Restored weather image from DynamoDB")
	return record.Image, nil
}

func (d *DynamoBlobStore) Persist(ctx context.Context, image []byte) error {
	if err := d.EnsureTable(ctx); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(blobRecord{
		Store:     StoreName,
		Key:       BlobKey,
		Image:     image,
		UpdatedAt: d.clock.Now().Unix(),
	})
	if err != nil {
		return NewPersistenceError(dynamoBackend, "persist", fmt.Errorf("marshaling blob record: %w", err))
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		return NewPersistenceError(dynamoBackend, "persist", err)
	}

	log.Debug().Int("bytes", len(image)).Str("table", d.tableName).Msg("Persisted weather image to DynamoDB")
	return nil
}
