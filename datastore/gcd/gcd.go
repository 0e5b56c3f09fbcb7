/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package gcd

import (
	"context"
	"fmt"
	"os"

	dsapi "cloud.google.com/go/datastore/apiv1"
	pb "cloud.google.com/go/datastore/apiv1/datastorepb"
	"github.com/googleapis/gax-go/v2"
	"github.com/joho/godotenv"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// rpcClient is the subset of the Datastore API the store uses. The apiv1
// client satisfies it.
type rpcClient interface {
	RunQuery(ctx context.Context, req *pb.RunQueryRequest, opts ...gax.CallOption) (*pb.RunQueryResponse, error)
	Commit(ctx context.Context, req *pb.CommitRequest, opts ...gax.CallOption) (*pb.CommitResponse, error)
	Lookup(ctx context.Context, req *pb.LookupRequest, opts ...gax.CallOption) (*pb.LookupResponse, error)
}

var _ rpcClient = (*dsapi.Client)(nil)

var _ datastore.Executor = (*Store)(nil)

// Config holds the connection settings of a Store.
type Config struct {
	Project  string
	Database string
	// CredentialsFile is a service account key file; empty uses the
	// application default credentials.
	CredentialsFile string
	// EmulatorHost connects to a local emulator without authentication.
	EmulatorHost string
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
		Project:         os.Getenv("DATASTORE_PROJECT_ID"),
		Database:        os.Getenv("KINDSTORE_DATABASE"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		EmulatorHost:    os.Getenv("DATASTORE_EMULATOR_HOST"),
	}
	if cfg.Project == "" {
		cfg.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if cfg.Project == "" {
		return Config{}, fmt.Errorf("DATASTORE_PROJECT_ID is not set")
	}
	return cfg, nil
}

// ClientOptions returns the API client options for cfg.
func (cfg Config) ClientOptions() []option.ClientOption {
	if cfg.EmulatorHost != "" {
		return []option.ClientOption{
			option.WithEndpoint(cfg.EmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	if cfg.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}
	return nil
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithDatabase selects a named database instead of the default one.
func WithDatabase(database string) Option {
	return func(s *Store) { s.database = database }
}

// WithCallOptions sets the gax call options (retry, timeout) of every RPC.
func WithCallOptions(opts ...gax.CallOption) Option {
	return func(s *Store) { s.callOpts = opts }
}

// Store implements datastore.Executor on Cloud Datastore.
type Store struct {
	client   rpcClient
	closer   func() error
	project  string
	database string
	callOpts []gax.CallOption
	logger   *zap.Logger
}

func newStore(client rpcClient, project string, opts ...Option) *Store {
	s := &Store{
		client:  client,
		project: project,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to Cloud Datastore, or to the emulator when configured.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	client, err := dsapi.NewClient(ctx, cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %w", err)
	}
	s := newStore(client, cfg.Project, append([]Option{WithDatabase(cfg.Database)}, opts...)...)
	s.closer = client.Close
	s.logger.Info("Datastore client initialized",
		zap.String("project", cfg.Project),
		zap.String("database", cfg.Database),
		zap.Bool("emulator", cfg.EmulatorHost != ""))
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Project returns the project the store writes to.
func (s *Store) Project() string {
	return s.project
}

func (s *Store) partition(p storagemodels.PartitionID) storagemodels.PartitionID {
	if p.ProjectID == "" {
		p.ProjectID = s.project
	}
	if p.DatabaseID == "" {
		p.DatabaseID = s.database
	}
	return p
}

// withPartition fills the store project and database into a key.
func (s *Store) withPartition(k *storagemodels.Key) *storagemodels.Key {
	if k == nil {
		return nil
	}
	return &storagemodels.Key{Partition: s.partition(k.Partition), Path: k.Path}
}

func (s *Store) readOptions(eventual bool) *pb.ReadOptions {
	if !eventual {
		return nil
	}
	return &pb.ReadOptions{ConsistencyType: &pb.ReadOptions_ReadConsistency_{
		ReadConsistency: pb.ReadOptions_EVENTUAL,
	}}
}

// RunQuery runs one page of a query.
func (s *Store) RunQuery(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error) {
	r := req.Clone()
	r.Query.Ancestor = s.withPartition(r.Query.Ancestor)
	q, err := queryToProto(r)
	if err != nil {
		return nil, errors.NewValidationError("query", err.Error())
	}
	resp, err := s.client.RunQuery(ctx, &pb.RunQueryRequest{
		ProjectId:   s.project,
		DatabaseId:  s.database,
		PartitionId: partitionToProto(s.partition(req.Partition)),
		ReadOptions: s.readOptions(req.Eventual),
		QueryType:   &pb.RunQueryRequest_Query{Query: q},
	}, s.callOpts...)
	if err != nil {
		return nil, fmt.Errorf("RunQuery failed: %w", err)
	}
	return batchFromProto(resp.GetBatch())
}

// Commit applies mutations non-transactionally. Keys the store completed are
// returned in the results; complete keys are echoed back.
func (s *Store) Commit(ctx context.Context, mutations []storagemodels.Mutation) ([]storagemodels.MutationResult, error) {
	pbMuts := make([]*pb.Mutation, len(mutations))
	for i, m := range mutations {
		if m.Entity != nil {
			e := *m.Entity
			e.Key = s.withPartition(e.Key)
			m.Entity = &e
		}
		m.Key = s.withPartition(m.Key)
		pm, err := mutationToProto(m)
		if err != nil {
			return nil, errors.NewValidationError("mutation", err.Error())
		}
		pbMuts[i] = pm
	}

	resp, err := s.client.Commit(ctx, &pb.CommitRequest{
		ProjectId:  s.project,
		DatabaseId: s.database,
		Mode:       pb.CommitRequest_NON_TRANSACTIONAL,
		Mutations:  pbMuts,
	}, s.callOpts...)
	if err != nil {
		return nil, commitError(err, mutations)
	}

	results := make([]storagemodels.MutationResult, len(mutations))
	for i, m := range mutations {
		key := m.Key
		if m.Op != storagemodels.Delete {
			key = m.Entity.Key
		}
		results[i].Key = key
		if i < len(resp.GetMutationResults()) {
			r := resp.GetMutationResults()[i]
			if r.GetKey() != nil {
				results[i].Key = keyFromProto(r.GetKey())
			}
			results[i].Version = r.GetVersion()
		}
	}
	s.logger.Debug("committed mutations", zap.Int("count", len(mutations)))
	return results, nil
}

// commitError maps the RPC status of a failed commit to the error package.
// The status does not say which mutation failed; the first mutation of the
// matching operation is reported.
func commitError(err error, mutations []storagemodels.Mutation) error {
	var op storagemodels.MutationOp
	switch status.Code(err) {
	case codes.AlreadyExists:
		op = storagemodels.Insert
	case codes.NotFound:
		op = storagemodels.Update
	default:
		return fmt.Errorf("Commit failed: %w", err)
	}
	for _, m := range mutations {
		if m.Op != op || m.Entity == nil {
			continue
		}
		key := m.Entity.Key
		return errors.NewWriteConflictError(op.String(), key.Kind(), key.String())
	}
	return fmt.Errorf("Commit failed: %w", err)
}

// Lookup fetches entities by key, following deferred keys until every key is
// resolved. Found entities are returned in the order of keys.
func (s *Store) Lookup(ctx context.Context, keys []*storagemodels.Key) ([]*storagemodels.Entity, []*storagemodels.Key, error) {
	pending := make([]*pb.Key, len(keys))
	for i, k := range keys {
		if k.Incomplete() {
			return nil, nil, errors.NewValidationError("key", fmt.Sprintf("lookup of incomplete key %s", k))
		}
		pending[i] = keyToProto(s.withPartition(k))
	}

	byKey := make(map[string]*storagemodels.Entity, len(keys))
	for len(pending) > 0 {
		resp, err := s.client.Lookup(ctx, &pb.LookupRequest{
			ProjectId:  s.project,
			DatabaseId: s.database,
			Keys:       pending,
		}, s.callOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("Lookup failed: %w", err)
		}
		for _, r := range resp.GetFound() {
			e, err := entityFromProto(r.GetEntity())
			if err != nil {
				return nil, nil, err
			}
			byKey[lookupID(e.Key)] = e
		}
		pending = resp.GetDeferred()
		if len(pending) > 0 {
			s.logger.Debug("lookup deferred keys", zap.Int("count", len(pending)))
		}
	}

	var (
		found   []*storagemodels.Entity
		missing []*storagemodels.Key
	)
	for _, k := range keys {
		if e, ok := byKey[lookupID(s.withPartition(k))]; ok {
			found = append(found, e)
		} else {
			missing = append(missing, k)
		}
	}
	return found, missing, nil
}

func lookupID(k *storagemodels.Key) string {
	return k.Partition.NamespaceID + "|" + k.String()
}
