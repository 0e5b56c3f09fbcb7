/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory implementation of the datastore
// executors for testing
package mock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
)

// DefaultMaxSkip is the number of rows one RunQuery call skips at most,
// matching the real store.
const DefaultMaxSkip = 1000

// Executor is an in-memory datastore.Executor for testing. Like the real
// store it skips a bounded number of rows per query call.
type Executor struct {
	mu           sync.RWMutex
	data         map[string]*storagemodels.Entity
	nextID       int64
	version      int64
	maxSkip      int32
	batchSize    int
	runQueryFunc func(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error)
	queryError   error
	commitError  error
	lookupError  error
	requests     []*storagemodels.QueryRequest
}

// New creates a new mock Executor
func New() *Executor {
	return &Executor{
		data:    make(map[string]*storagemodels.Entity),
		nextID:  1,
		maxSkip: DefaultMaxSkip,
	}
}

// WithMaxSkip sets how many rows one RunQuery call skips at most
func (m *Executor) WithMaxSkip(n int32) *Executor {
	m.maxSkip = n
	return m
}

// WithBatchSize caps the number of results per RunQuery call; 0 means no cap
func (m *Executor) WithBatchSize(n int) *Executor {
	m.batchSize = n
	return m
}

// WithRunQueryFunc replaces query evaluation with a scripted function.
// Requests are still recorded.
func (m *Executor) WithRunQueryFunc(f func(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error)) *Executor {
	m.runQueryFunc = f
	return m
}

// WithQueryError makes RunQuery return an error
func (m *Executor) WithQueryError(err error) *Executor {
	m.queryError = err
	return m
}

// WithCommitError makes Commit return an error
func (m *Executor) WithCommitError(err error) *Executor {
	m.commitError = err
	return m
}

// WithLookupError makes Lookup return an error
func (m *Executor) WithLookupError(err error) *Executor {
	m.lookupError = err
	return m
}

// RunQuery evaluates the query over the stored entities
func (m *Executor) RunQuery(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req.Clone())
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.queryError != nil {
		return nil, m.queryError
	}
	if m.runQueryFunc != nil {
		return m.runQueryFunc(ctx, req)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := m.match(req)

	pos, err := decodeCursor(req.StartCursor, 0)
	if err != nil {
		return nil, err
	}
	end, err := decodeCursor(req.EndCursor, len(matched))
	if err != nil {
		return nil, err
	}
	end = min(end, len(matched))
	pos = min(pos, end)

	batch := &storagemodels.ResultBatch{}

	skip := min(int(req.Offset), int(m.maxSkip), end-pos)
	pos += skip
	batch.SkippedResults = int32(skip)
	batch.SkippedCursor = encodeCursor(pos)

	if batch.SkippedResults < req.Offset {
		batch.EndCursor = encodeCursor(pos)
		if pos >= end {
			batch.MoreResults = finished(req, end, len(matched))
		} else {
			batch.MoreResults = storagemodels.NotFinished
		}
		return batch, nil
	}

	n := end - pos
	limited := false
	if req.Limit != nil && int(*req.Limit) <= n {
		n = int(*req.Limit)
		limited = true
	}
	if m.batchSize > 0 && m.batchSize < n {
		n = m.batchSize
		limited = false
	}
	for _, e := range matched[pos : pos+n] {
		batch.EntityResults = append(batch.EntityResults, clone(e))
	}
	pos += n
	batch.EndCursor = encodeCursor(pos)

	switch {
	case pos >= end:
		batch.MoreResults = finished(req, end, len(matched))
	case limited:
		batch.MoreResults = storagemodels.MoreResultsAfterLimit
	default:
		batch.MoreResults = storagemodels.NotFinished
	}
	return batch, nil
}

func finished(req *storagemodels.QueryRequest, end, total int) storagemodels.MoreResultsType {
	if req.EndCursor != nil && end < total {
		return storagemodels.MoreResultsAfterCursor
	}
	return storagemodels.NoMoreResults
}

// match returns the entities matching the query in result order
func (m *Executor) match(req *storagemodels.QueryRequest) []*storagemodels.Entity {
	q := req.Query
	var out []*storagemodels.Entity
	for _, e := range m.data {
		if e.Key.Partition.NamespaceID != req.Partition.NamespaceID {
			continue
		}
		if q.Kind != "" && e.Kind() != q.Kind {
			continue
		}
		if q.Ancestor != nil && !e.Key.HasAncestor(q.Ancestor) {
			continue
		}
		if !storagemodels.MatchFilters(e, q.Filters) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.Orders {
			c, _ := storagemodels.CompareValues(property(out[i], o.Property), property(out[j], o.Property))
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return storagemodels.CompareKeys(out[i].Key, out[j].Key) < 0
	})
	return out
}

func property(e *storagemodels.Entity, name string) storagemodels.Value {
	v, _ := storagemodels.PropertyValue(e, name)
	return v
}

// Commit applies the mutations in order. Incomplete keys are completed with
// allocated ids.
func (m *Executor) Commit(ctx context.Context, mutations []storagemodels.Mutation) ([]storagemodels.MutationResult, error) {
	if m.commitError != nil {
		return nil, m.commitError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]storagemodels.MutationResult, 0, len(mutations))
	for _, mut := range mutations {
		key := mut.Key
		if mut.Op != storagemodels.Delete {
			if mut.Entity == nil || mut.Entity.Key == nil {
				return results, errors.NewValidationError("entity", fmt.Sprintf("%s mutation without a keyed entity", mut.Op))
			}
			key = mut.Entity.Key
		}
		if key == nil {
			return results, errors.NewValidationError("key", "mutation without a key")
		}

		if key.Incomplete() {
			if mut.Op == storagemodels.Delete || mut.Op == storagemodels.Update {
				return results, errors.NewValidationError("key", fmt.Sprintf("%s requires a complete key", mut.Op))
			}
			key = m.allocate(key)
		}
		id := keyString(key)
		_, exists := m.data[id]

		if (mut.Op == storagemodels.Insert && exists) || (mut.Op == storagemodels.Update && !exists) {
			return results, errors.NewWriteConflictError(mut.Op.String(), key.Kind(), key.String())
		}

		m.version++
		if mut.Op == storagemodels.Delete {
			delete(m.data, id)
		} else {
			stored := clone(mut.Entity)
			stored.Key = key
			m.data[id] = stored
		}
		results = append(results, storagemodels.MutationResult{Key: key, Version: m.version})
	}
	return results, nil
}

func (m *Executor) allocate(key *storagemodels.Key) *storagemodels.Key {
	path := make([]storagemodels.PathElement, len(key.Path))
	copy(path, key.Path)
	path[len(path)-1].ID = m.nextID
	m.nextID++
	return &storagemodels.Key{Partition: key.Partition, Path: path}
}

// Lookup returns the stored entities for keys, in key order
func (m *Executor) Lookup(ctx context.Context, keys []*storagemodels.Key) ([]*storagemodels.Entity, []*storagemodels.Key, error) {
	if m.lookupError != nil {
		return nil, nil, m.lookupError
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		found   []*storagemodels.Entity
		missing []*storagemodels.Key
	)
	for _, k := range keys {
		if e, ok := m.data[keyString(k)]; ok {
			found = append(found, clone(e))
		} else {
			missing = append(missing, k)
		}
	}
	return found, missing, nil
}

// Helper methods for testing

// Put stores entities directly, bypassing Commit. Keys must be complete.
func (m *Executor) Put(entities ...*storagemodels.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		m.data[keyString(e.Key)] = clone(e)
	}
}

// Entities returns the stored entities in key order
func (m *Executor) Entities() []*storagemodels.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*storagemodels.Entity, 0, len(m.data))
	for _, e := range m.data {
		result = append(result, clone(e))
	}
	sort.Slice(result, func(i, j int) bool {
		return storagemodels.CompareKeys(result[i].Key, result[j].Key) < 0
	})
	return result
}

// Requests returns the query requests received so far
func (m *Executor) Requests() []*storagemodels.QueryRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*storagemodels.QueryRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Count returns the number of stored entities
func (m *Executor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Clear removes all data and recorded requests
func (m *Executor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]*storagemodels.Entity)
	m.requests = nil
}

func keyString(k *storagemodels.Key) string {
	return k.Partition.NamespaceID + "|" + k.String()
}

func clone(e *storagemodels.Entity) *storagemodels.Entity {
	c := &storagemodels.Entity{Key: e.Key, Properties: make(map[string]storagemodels.Value, len(e.Properties))}
	for k, v := range e.Properties {
		c.Properties[k] = v
	}
	return c
}

func encodeCursor(pos int) []byte {
	return []byte(strconv.Itoa(pos))
}

func decodeCursor(c []byte, def int) (int, error) {
	if c == nil {
		return def, nil
	}
	pos, err := strconv.Atoi(string(c))
	if err != nil || pos < 0 {
		return 0, errors.NewValidationError("cursor", fmt.Sprintf("invalid cursor %q", c))
	}
	return pos, nil
}
