/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package kindstore

import (
	"context"
	"fmt"

	"github.com/suparena/kindstore/codec"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
	"go.uber.org/zap"
)

// BatchCapacity is the number of mutations a Batch accepts.
const BatchCapacity = 500

// Option configures a Repository.
type Option func(*Repository)

// WithProject sets the project of keys and entities built by the repository.
func WithProject(project string) Option {
	return func(r *Repository) { r.project = project }
}

// WithNamespace sets the default namespace.
func WithNamespace(namespace string) Option {
	return func(r *Repository) { r.namespace = namespace }
}

// WithLogger sets the repository logger. It is also passed to iterators.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// Repository reads and writes registered Go structs through a store
// backend.
type Repository struct {
	exec      datastore.Executor
	codec     *codec.Codec
	project   string
	namespace string
	logger    *zap.Logger
}

// New creates a repository on exec, converting objects with c.
func New(exec datastore.Executor, c *codec.Codec, opts ...Option) *Repository {
	r := &Repository{
		exec:   exec,
		codec:  c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Codec returns the repository codec.
func (r *Repository) Codec() *codec.Codec {
	return r.codec
}

// Executor returns the store backend.
func (r *Repository) Executor() datastore.Executor {
	return r.exec
}

func (r *Repository) ns(namespace []string) string {
	if len(namespace) > 0 {
		return namespace[0]
	}
	return r.namespace
}

func (r *Repository) partition(namespace string) storagemodels.PartitionID {
	return storagemodels.PartitionID{ProjectID: r.project, NamespaceID: namespace}
}

// Key builds a key in the default namespace.
func (r *Repository) Key(path ...storagemodels.PathElement) *storagemodels.Key {
	return storagemodels.NewKey(r.partition(r.namespace), path...)
}

// KeyIn builds a key in namespace.
func (r *Repository) KeyIn(namespace string, path ...storagemodels.PathElement) *storagemodels.Key {
	return storagemodels.NewKey(r.partition(namespace), path...)
}

// Batch is a list of pending upserts and deletes, submitted together with
// SubmitBatch.
type Batch struct {
	repo      *Repository
	namespace string
	mutations []storagemodels.Mutation
	results   []storagemodels.MutationResult
}

// Batch starts a batch in the default namespace, or in the given one.
func (r *Repository) Batch(namespace ...string) *Batch {
	return &Batch{repo: r, namespace: r.ns(namespace)}
}

// HasPending reports whether the batch holds unsubmitted mutations.
func (b *Batch) HasPending() bool {
	return len(b.mutations) > 0
}

// HasCapacity reports whether n more mutations fit in the batch.
func (b *Batch) HasCapacity(n int) bool {
	return len(b.mutations)+n < BatchCapacity
}

// Clear drops the pending mutations. Results of the last submission are
// kept.
func (b *Batch) Clear() {
	b.mutations = nil
}

// AddItem adds an upsert of obj.
func (b *Batch) AddItem(obj any) error {
	e, err := b.repo.codec.Encode(obj, b.repo.project, b.namespace)
	if err != nil {
		return err
	}
	b.mutations = append(b.mutations, storagemodels.Mutation{Op: storagemodels.Upsert, Entity: e})
	return nil
}

// AddItems adds an upsert of each object, stopping at the first that fails
// to encode.
func (b *Batch) AddItems(objs ...any) error {
	for i, obj := range objs {
		if err := b.AddItem(obj); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// AddDelete adds a delete of key.
func (b *Batch) AddDelete(key *storagemodels.Key) {
	b.mutations = append(b.mutations, storagemodels.Mutation{Op: storagemodels.Delete, Key: key})
}

// Mutations returns the pending mutations.
func (b *Batch) Mutations() []storagemodels.Mutation {
	return b.mutations
}

// Results returns the results of the last submission.
func (b *Batch) Results() []storagemodels.MutationResult {
	return b.results
}

// SubmitBatch commits the pending mutations of b and records the results on
// it. The mutations stay pending until Clear.
func (r *Repository) SubmitBatch(ctx context.Context, b *Batch) ([]storagemodels.MutationResult, error) {
	r.logger.Info("submit batch", zap.Int("mutations", len(b.mutations)))
	results, err := r.exec.Commit(ctx, b.mutations)
	if err != nil {
		return nil, err
	}
	b.results = results
	return results, nil
}

func (r *Repository) encodeAll(objs []any, namespace string) ([]storagemodels.Mutation, error) {
	mutations := make([]storagemodels.Mutation, len(objs))
	for i, obj := range objs {
		e, err := r.codec.Encode(obj, r.project, namespace)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		mutations[i] = storagemodels.Mutation{Op: storagemodels.Upsert, Entity: e}
	}
	return mutations, nil
}

// Insert writes obj, replacing any entity with the same key.
func (r *Repository) Insert(ctx context.Context, obj any, namespace ...string) (storagemodels.MutationResult, error) {
	results, err := r.UpsertMulti(ctx, []any{obj}, namespace...)
	if err != nil {
		return storagemodels.MutationResult{}, err
	}
	return results[0], nil
}

// Create writes obj, failing with an AlreadyExists error when an entity with
// the same key exists.
func (r *Repository) Create(ctx context.Context, obj any, namespace ...string) (storagemodels.MutationResult, error) {
	e, err := r.codec.Encode(obj, r.project, r.ns(namespace))
	if err != nil {
		return storagemodels.MutationResult{}, err
	}
	results, err := r.exec.Commit(ctx, []storagemodels.Mutation{{Op: storagemodels.Insert, Entity: e}})
	if err != nil {
		return storagemodels.MutationResult{}, err
	}
	return results[0], nil
}

// UpsertMulti writes all objects in one commit.
func (r *Repository) UpsertMulti(ctx context.Context, objs []any, namespace ...string) ([]storagemodels.MutationResult, error) {
	mutations, err := r.encodeAll(objs, r.ns(namespace))
	if err != nil {
		return nil, err
	}
	return r.exec.Commit(ctx, mutations)
}

// DeleteMulti deletes the entities with the given keys in one commit.
func (r *Repository) DeleteMulti(ctx context.Context, keys []*storagemodels.Key) ([]storagemodels.MutationResult, error) {
	mutations := make([]storagemodels.Mutation, len(keys))
	for i, k := range keys {
		mutations[i] = storagemodels.Mutation{Op: storagemodels.Delete, Key: k}
	}
	return r.exec.Commit(ctx, mutations)
}

// Get fetches the entity with key and decodes it by kind. It returns nil and
// no error when there is no such entity.
func (r *Repository) Get(ctx context.Context, key *storagemodels.Key) (any, error) {
	e, err := r.lookup(ctx, key)
	if err != nil || e == nil {
		return nil, err
	}
	return r.codec.Decode(e, nil)
}

// GetInto fetches the entity with key into dst. It returns a NotFound error
// when there is no such entity.
func (r *Repository) GetInto(ctx context.Context, key *storagemodels.Key, dst any) error {
	e, err := r.lookup(ctx, key)
	if err != nil {
		return err
	}
	if e == nil {
		return errors.NewNotFoundError(key.Kind(), key.String())
	}
	return r.codec.DecodeInto(e, dst)
}

func (r *Repository) lookup(ctx context.Context, key *storagemodels.Key) (*storagemodels.Entity, error) {
	found, _, err := r.exec.Lookup(ctx, []*storagemodels.Key{key})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// QueryFiltered builds a kind query with property filters.
func (r *Repository) QueryFiltered(kind string, filters ...storagemodels.Filter) storagemodels.Query {
	return storagemodels.Query{Kind: kind, Filters: filters}
}

// QueryAncestor builds a kind query restricted to descendants of ancestor.
func (r *Repository) QueryAncestor(kind string, ancestor *storagemodels.Key) storagemodels.Query {
	return storagemodels.Query{Kind: kind, Ancestor: ancestor}
}

// RunQuery returns an iterator decoding the results of q. It runs in the
// default namespace unless a WithPartition option says otherwise.
func (r *Repository) RunQuery(q storagemodels.Query, opts ...datastore.IteratorOption) *datastore.Iterator {
	base := []datastore.IteratorOption{
		datastore.WithPartition(r.partition(r.namespace)),
		datastore.WithLogger(r.logger),
	}
	return datastore.NewIterator(r.exec, r.codec, q, append(base, opts...)...)
}

// RunQueryRaw returns an iterator yielding wire entities.
func (r *Repository) RunQueryRaw(q storagemodels.Query, opts ...datastore.IteratorOption) *datastore.Iterator {
	return r.RunQuery(q, append(opts, datastore.WithRaw())...)
}
