/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/suparena/kindstore/codec"
	"github.com/suparena/kindstore/storagemodels"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// Page is one page of query results.
type Page struct {
	// Items holds one entry per result: the decoded struct pointer, or the
	// raw *storagemodels.Entity when decoding failed or raw mode is on.
	Items []any
	// Entities are the wire entities behind Items, in the same order.
	Entities []*storagemodels.Entity
	// Number is the 1-based page number.
	Number int
	// Cursor resumes the query after this page; nil when there are no more
	// results.
	Cursor []byte
	// Requests is the number of store calls it took to produce the page.
	Requests int
}

// IteratorOption configures an Iterator.
type IteratorOption func(*Iterator)

// WithLimit bounds the total number of results.
func WithLimit(limit int32) IteratorOption {
	return func(it *Iterator) { it.limit = &limit }
}

// WithOffset skips results before the first one returned.
func WithOffset(offset int32) IteratorOption {
	return func(it *Iterator) { it.offset = offset }
}

// WithStartCursor resumes a query from a cursor.
func WithStartCursor(cursor []byte) IteratorOption {
	return func(it *Iterator) { it.cursor = cursor }
}

// WithEndCursor stops the query at a cursor.
func WithEndCursor(cursor []byte) IteratorOption {
	return func(it *Iterator) { it.endCursor = cursor }
}

// WithTarget decodes every result as t instead of resolving by kind.
func WithTarget(t reflect.Type) IteratorOption {
	return func(it *Iterator) { it.target = t }
}

// WithRaw returns wire entities without decoding.
func WithRaw() IteratorOption {
	return func(it *Iterator) { it.raw = true }
}

// WithPartition sets the project and namespace the query runs in.
func WithPartition(p storagemodels.PartitionID) IteratorOption {
	return func(it *Iterator) { it.partition = p }
}

// WithEventual allows eventually consistent reads.
func WithEventual() IteratorOption {
	return func(it *Iterator) { it.eventual = true }
}

// WithLogger sets the logger used for decode fallbacks.
func WithLogger(logger *zap.Logger) IteratorOption {
	return func(it *Iterator) { it.logger = logger }
}

// Iterator pages through the results of a query, decoding each entity. It
// is restartable from its cursor but not from the beginning, and must not
// be used from more than one goroutine.
type Iterator struct {
	exec      QueryExecutor
	codec     *codec.Codec
	query     storagemodels.Query
	partition storagemodels.PartitionID
	limit     *int32
	offset    int32
	cursor    []byte
	endCursor []byte
	target    reflect.Type
	raw       bool
	eventual  bool
	logger    *zap.Logger

	returned  int32
	pages     int
	exhausted bool

	buf []any
	pos int
}

// NewIterator creates an iterator for q. The codec may be nil in raw mode.
func NewIterator(exec QueryExecutor, c *codec.Codec, q storagemodels.Query, opts ...IteratorOption) *Iterator {
	it := &Iterator{
		exec:   exec,
		codec:  c,
		query:  q,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(it)
	}
	if it.codec == nil {
		it.raw = true
	}
	return it
}

// Cursor returns the position after the last fetched page.
func (it *Iterator) Cursor() []byte {
	return it.cursor
}

// NextPage fetches the next page. It returns iterator.Done once the query is
// exhausted.
func (it *Iterator) NextPage(ctx context.Context) (*Page, error) {
	if it.exhausted {
		return nil, iterator.Done
	}
	req := it.request()
	if req.Limit != nil && *req.Limit <= 0 {
		it.exhausted = true
		return nil, iterator.Done
	}

	batch, err := it.exec.RunQuery(ctx, req)
	if err != nil {
		return nil, err
	}
	requests := 1

	// The store skips a bounded number of rows per call; keep going from
	// the skipped cursor until the offset is consumed.
	for batch.MoreResults == storagemodels.NotFinished && batch.SkippedResults < req.Offset {
		if batch.SkippedResults <= 0 {
			return nil, fmt.Errorf("query made no progress: %d of %d offset rows skipped", batch.SkippedResults, req.Offset)
		}
		next := req.Clone()
		next.StartCursor = batch.SkippedCursor
		next.Offset -= batch.SkippedResults
		req = next

		batch, err = it.exec.RunQuery(ctx, req)
		if err != nil {
			return nil, err
		}
		requests++
	}

	switch {
	case batch.MoreResults == storagemodels.NotFinished:
	case batch.MoreResults.Terminal():
		it.exhausted = true
	default:
		return nil, fmt.Errorf("unexpected more results value %s", batch.MoreResults)
	}
	if batch.MoreResults == storagemodels.NoMoreResults {
		it.cursor = nil
	} else {
		it.cursor = batch.EndCursor
	}
	// the offset is encoded in the cursor from now on
	it.offset = 0

	it.pages++
	it.returned += int32(len(batch.EntityResults))
	page := &Page{
		Items:    make([]any, len(batch.EntityResults)),
		Entities: batch.EntityResults,
		Number:   it.pages,
		Cursor:   it.cursor,
		Requests: requests,
	}
	for i, e := range batch.EntityResults {
		page.Items[i] = it.decode(e)
	}
	return page, nil
}

func (it *Iterator) request() *storagemodels.QueryRequest {
	req := &storagemodels.QueryRequest{
		Partition:   it.partition,
		Query:       it.query,
		StartCursor: it.cursor,
		EndCursor:   it.endCursor,
		Eventual:    it.eventual,
	}
	if it.limit != nil {
		remaining := *it.limit - it.returned
		req.Limit = &remaining
	}
	if it.pages == 0 {
		req.Offset = it.offset
	}
	return req
}

func (it *Iterator) decode(e *storagemodels.Entity) any {
	if it.raw {
		return e
	}
	v, err := it.codec.Decode(e, it.target)
	if err != nil {
		it.logger.Debug("returning raw entity",
			zap.Stringer("key", e.Key),
			zap.Error(err))
		return e
	}
	return v
}

// Next returns the next result, fetching pages as needed. It returns
// iterator.Done after the last result.
func (it *Iterator) Next(ctx context.Context) (any, error) {
	for it.pos >= len(it.buf) {
		page, err := it.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		it.buf, it.pos = page.Items, 0
	}
	v := it.buf[it.pos]
	it.pos++
	return v, nil
}

// All returns a sequence over the remaining results. Iteration stops after
// the first error, which is yielded with a nil value.
func (it *Iterator) All(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			v, err := it.Next(ctx)
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
