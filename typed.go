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
	"github.com/suparena/kindstore/registry"
	"github.com/suparena/kindstore/schema"
	"github.com/suparena/kindstore/storagemodels"
)

// Typed provides type-safe operations on the entities of one registered
// struct type T.
type Typed[T any] struct {
	repo  *Repository
	model *schema.Model
}

// NewTyped registers T with the repository codec, if it is not registered
// yet, and returns its typed view. T must have a key.
func NewTyped[T any](repo *Repository, cfg ...schema.Config) (*Typed[T], error) {
	m, err := registry.Register[T](repo.codec.Registry(), cfg...)
	if err != nil {
		return nil, err
	}
	if m.Key == nil {
		return nil, errors.NewValidationError("type", fmt.Sprintf("%s has no key", m.Name()))
	}
	return &Typed[T]{repo: repo, model: m}, nil
}

// Kind returns the kind tag of T.
func (t *Typed[T]) Kind() string {
	return t.model.Kind
}

// Model returns the schema of T.
func (t *Typed[T]) Model() *schema.Model {
	return t.model
}

// Key builds the key of obj in the repository's default namespace.
func (t *Typed[T]) Key(obj *T) (*storagemodels.Key, error) {
	return t.repo.codec.EncodeKey(obj, t.model.Key, t.repo.partition(t.repo.namespace))
}

// Get fetches the entity with key. It returns a NotFound error when there is
// no such entity.
func (t *Typed[T]) Get(ctx context.Context, key *storagemodels.Key) (*T, error) {
	out := new(T)
	if err := t.repo.GetInto(ctx, key, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Put upserts obj. Ids the store allocated for an incomplete key are written
// back into obj.
func (t *Typed[T]) Put(ctx context.Context, obj *T) (storagemodels.MutationResult, error) {
	results, err := t.PutMulti(ctx, []*T{obj})
	if err != nil {
		return storagemodels.MutationResult{}, err
	}
	return results[0], nil
}

// PutMulti upserts all objects in one commit, writing allocated ids back.
func (t *Typed[T]) PutMulti(ctx context.Context, objs []*T) ([]storagemodels.MutationResult, error) {
	mutations := make([]storagemodels.Mutation, len(objs))
	for i, obj := range objs {
		e, err := t.repo.codec.EncodeModel(obj, t.model, t.repo.project, t.repo.namespace)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		mutations[i] = storagemodels.Mutation{Op: storagemodels.Upsert, Entity: e}
	}
	results, err := t.repo.exec.Commit(ctx, mutations)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		if i >= len(objs) || r.Key == nil || !mutations[i].Entity.Key.Incomplete() {
			continue
		}
		if err := t.repo.codec.DecodeKey(r.Key, t.model.Key, objs[i]); err != nil {
			return results, err
		}
	}
	return results, nil
}

// Delete removes the entity of obj.
func (t *Typed[T]) Delete(ctx context.Context, obj *T) error {
	key, err := t.Key(obj)
	if err != nil {
		return err
	}
	if key.Incomplete() {
		return errors.NewValidationError("key", fmt.Sprintf("cannot delete incomplete key %s", key))
	}
	_, err = t.repo.DeleteMulti(ctx, []*storagemodels.Key{key})
	return err
}

// Query builds a query on the kind of T.
func (t *Typed[T]) Query(filters ...storagemodels.Filter) storagemodels.Query {
	return t.repo.QueryFiltered(t.model.Kind, filters...)
}

// Iterator runs q decoding every result as T.
func (t *Typed[T]) Iterator(q storagemodels.Query, opts ...datastore.IteratorOption) *datastore.Iterator {
	return t.repo.RunQuery(q, append([]datastore.IteratorOption{datastore.WithTarget(t.model.Type)}, opts...)...)
}

// All runs q to exhaustion. Results that did not decode as T are returned
// separately as wire entities.
func (t *Typed[T]) All(ctx context.Context, q storagemodels.Query, opts ...datastore.IteratorOption) ([]*T, []*storagemodels.Entity, error) {
	return datastore.Collect[T](ctx, t.Iterator(q, opts...))
}

// Stream runs q in the background and sends each result on the returned
// channel. Use datastore.Stream on Iterator to set a limit or cursors.
func (t *Typed[T]) Stream(ctx context.Context, q storagemodels.Query, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return datastore.Stream[T](ctx, t.Iterator(q), opts...)
}

// Decode converts a wire entity into T.
func (t *Typed[T]) Decode(e *storagemodels.Entity) (*T, error) {
	return codec.DecodeAs[T](t.repo.codec, e)
}
