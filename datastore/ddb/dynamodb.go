/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/joho/godotenv"
	"github.com/suparena/kindstore/datastore"
	"go.uber.org/zap"
)

// Client is the subset of the DynamoDB API the store uses. *dynamodb.Client
// satisfies it.
type Client interface {
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *sdk.TransactWriteItemsInput, optFns ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error)
	BatchGetItem(ctx context.Context, params *sdk.BatchGetItemInput, optFns ...func(*sdk.Options)) (*sdk.BatchGetItemOutput, error)
	UpdateItem(ctx context.Context, params *sdk.UpdateItemInput, optFns ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error)
	CreateTable(ctx context.Context, params *sdk.CreateTableInput, optFns ...func(*sdk.Options)) (*sdk.CreateTableOutput, error)
}

var _ Client = (*sdk.Client)(nil)

var _ datastore.Executor = (*Store)(nil)

const (
	// DefaultMaxSkip is the number of rows one RunQuery call skips at most.
	DefaultMaxSkip = 1000
	// DefaultPageSize is the number of items read per DynamoDB Query call.
	DefaultPageSize = 100
	// DefaultBatchSize is the number of results one RunQuery call returns at most.
	DefaultBatchSize = 300

	// transactWriteLimit is the most items one TransactWriteItems call accepts.
	transactWriteLimit = 100
	// batchGetLimit is the most keys one BatchGetItem call accepts.
	batchGetLimit = 100
)

// Config holds the connection settings of a Store.
type Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Table     string
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string
	// Project is reported as the project of every key read from the table.
	Project string
}

// ConfigFromEnv reads the store settings from the environment after loading
// the given .env files. Missing files are ignored.
func ConfigFromEnv(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	cfg := Config{
		AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Region:    os.Getenv("AWS_REGION"),
		Table:     os.Getenv("KINDSTORE_DDB_TABLE"),
		Endpoint:  os.Getenv("KINDSTORE_DDB_ENDPOINT"),
		Project:   os.Getenv("KINDSTORE_PROJECT"),
	}
	if cfg.Table == "" {
		return Config{}, fmt.Errorf("KINDSTORE_DDB_TABLE is not set")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return cfg, nil
}

// NewClient initializes a DynamoDB client. Static credentials are used when
// both keys are set, else the default credential chain.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	if logger != nil {
		logger.Info("DynamoDB client initialized",
			zap.String("table", cfg.Table),
			zap.String("region", cfg.Region))
	}
	return client, nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithProject sets the project reported in keys read from the table.
func WithProject(project string) Option {
	return func(s *Store) { s.project = project }
}

// WithMaxSkip sets how many rows one RunQuery call skips at most.
func WithMaxSkip(n int32) Option {
	return func(s *Store) { s.maxSkip = n }
}

// WithPageSize sets how many items are read per DynamoDB Query call.
func WithPageSize(n int32) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithBatchSize sets how many results one RunQuery call returns at most.
func WithBatchSize(n int) Option {
	return func(s *Store) { s.batchSize = n }
}

// WithRetry sets how often throttled calls are retried and the base backoff.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = maxRetries
		s.retryBackoff = backoff
	}
}

// Store implements datastore.Executor on a single DynamoDB table. Each
// entity is one item: the partition key holds the namespace and kind, the
// sort key the encoded key path, so key order is sort key order.
type Store struct {
	client       Client
	table        string
	project      string
	maxSkip      int32
	pageSize     int32
	batchSize    int
	maxRetries   int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// New creates a store on table.
func New(client Client, table string, opts ...Option) *Store {
	s := &Store{
		client:       client,
		table:        table,
		maxSkip:      DefaultMaxSkip,
		pageSize:     DefaultPageSize,
		batchSize:    DefaultBatchSize,
		maxRetries:   3,
		retryBackoff: 100 * time.Millisecond,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the table described by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := New(nil, cfg.Table, append([]Option{WithProject(cfg.Project)}, opts...)...)
	client, err := NewClient(ctx, cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
	}
	s.client = client
	return s, nil
}

// Table returns the table name.
func (s *Store) Table() string {
	return s.table
}

// CreateTable creates the store table with on-demand billing.
func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.client.CreateTable(ctx, &sdk.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	s.logger.Info("created table", zap.String("table", s.table))
	return nil
}
