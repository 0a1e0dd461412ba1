package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDynamoStore(client *mockDynamoDBClient) *DynamoBlobStore {
	store := NewDynamoBlobStore(client, "")
	store.clock = &mockClock{now: time.Date(2024, 11, 10, 12, 0, 0, 0, time.UTC)}
	return store
}

func activeTable() *dynamodb.DescribeTableOutput {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   aws.String("weather_db"),
			TableStatus: types.TableStatusActive,
		},
	}
}

func TestDynamoBlobStore_RoundTrip(t *testing.T) {
	var stored map[string]types.AttributeValue
	client := &mockDynamoDBClient{
		getItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			assert.Equal(t, "weather_db", *params.TableName)
			assert.True(t, *params.ConsistentRead)
			assert.Equal(t, &types.AttributeValueMemberS{Value: "databases"}, params.Key["store"])
			assert.Equal(t, &types.AttributeValueMemberS{Value: "weather"}, params.Key["key"])
			return &dynamodb.GetItemOutput{Item: stored}, nil
		},
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			stored = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	store := createTestDynamoStore(client)
	ctx := context.Background()

	got, err := store.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Persist(ctx, []byte{0x53, 0x51, 0x4c, 0x00, 0xff}))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1731240000"}, stored["updatedAt"])

	got, err = store.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x53, 0x51, 0x4c, 0x00, 0xff}, got)
}

func TestDynamoBlobStore_RestoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{
			name:    "missing table reads as never persisted",
			err:     &types.ResourceNotFoundException{Message: aws.String("no table")},
			wantErr: false,
		},
		{
			name:    "throttled",
			err:     &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockDynamoDBClient{
				getItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
					return nil, tt.err
				},
			}
			store := createTestDynamoStore(client)

			got, err := store.Restore(context.Background())
			assert.Nil(t, got)
			if tt.wantErr {
				var perr *PersistenceError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "dynamodb", perr.Backend)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDynamoBlobStore_PersistFailure(t *testing.T) {
	client := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("item too large")
		},
	}
	store := createTestDynamoStore(client)

	err := store.Persist(context.Background(), []byte("image"))
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "persist", perr.Op)
}

func TestDynamoBlobStore_EnsureTable(t *testing.T) {
	tests := []struct {
		name       string
		createErr  error
		exists     bool
		wantCreate bool
		wantErr    bool
	}{
		{
			name:       "table already exists",
			exists:     true,
			wantCreate: false,
		},
		{
			name:       "table created",
			wantCreate: true,
		},
		{
			name:       "concurrent creator",
			createErr:  &types.ResourceInUseException{Message: aws.String("being created")},
			wantCreate: true,
		},
		{
			name:       "create denied",
			createErr:  errors.New("access denied"),
			wantCreate: true,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			client := &mockDynamoDBClient{
				describeTableFunc: func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
					if tt.exists || created {
						return activeTable(), nil
					}
					return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
				},
				createTableFunc: func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
					created = true
					assert.Equal(t, "weather_db", *params.TableName)
					assert.Equal(t, types.BillingModePayPerRequest, params.BillingMode)
					require.Len(t, params.KeySchema, 2)
					assert.Equal(t, "store", *params.KeySchema[0].AttributeName)
					assert.Equal(t, "key", *params.KeySchema[1].AttributeName)
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &dynamodb.CreateTableOutput{}, nil
				},
			}
			store := createTestDynamoStore(client)

			err := store.EnsureTable(context.Background())
			assert.Equal(t, tt.wantCreate, created)
			if tt.wantErr {
				var perr *PersistenceError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "open", perr.Op)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDynamoBlobStore_EnsureTableDescribeFailure(t *testing.T) {
	client := &mockDynamoDBClient{
		describeTableFunc: func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, errors.New("network unreachable")
		},
	}
	store := createTestDynamoStore(client)

	err := store.EnsureTable(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "describing table")
}

func TestDynamoBlobStore_CreatesTableOnFirstUse(t *testing.T) {
	var describes, creates int
	var stored map[string]types.AttributeValue
	client := &mockDynamoDBClient{
		describeTableFunc: func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			describes++
			if creates > 0 {
				return activeTable(), nil
			}
			return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
		},
		createTableFunc: func(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
			creates++
			return &dynamodb.CreateTableOutput{}, nil
		},
		getItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			if creates == 0 {
				return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
			}
			return &dynamodb.GetItemOutput{Item: stored}, nil
		},
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			if creates == 0 {
				return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
			}
			stored = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	store := createTestDynamoStore(client)
	ctx := context.Background()

	require.NoError(t, store.Persist(ctx, []byte("image")))
	assert.Equal(t, 1, creates)

	seen := describes
	got, err := store.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), got)
	assert.Equal(t, seen, describes, "table is checked once")
	assert.Equal(t, 1, creates)
}

func TestDynamoBlobStore_TableCheckRetriedAfterFailure(t *testing.T) {
	fail := true
	describes := 0
	client := &mockDynamoDBClient{
		describeTableFunc: func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			describes++
			if fail {
				return nil, errors.New("network unreachable")
			}
			return activeTable(), nil
		},
	}
	store := createTestDynamoStore(client)
	ctx := context.Background()

	_, err := store.Restore(ctx)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "open", perr.Op)

	fail = false
	require.NoError(t, store.Persist(ctx, []byte("image")))
	require.NoError(t, store.Persist(ctx, []byte("image")))
	assert.Equal(t, 2, describes)
}
