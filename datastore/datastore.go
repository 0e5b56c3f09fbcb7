/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/kindstore/storagemodels"
)

// QueryExecutor runs one page of a query against the store.
type QueryExecutor interface {
	RunQuery(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error)
}

// CommitExecutor applies mutations non-transactionally and reports the
// resulting key and version of each, in order.
type CommitExecutor interface {
	Commit(ctx context.Context, mutations []storagemodels.Mutation) ([]storagemodels.MutationResult, error)
}

// LookupExecutor fetches entities by key. Keys with no entity are returned
// in missing.
type LookupExecutor interface {
	Lookup(ctx context.Context, keys []*storagemodels.Key) (found []*storagemodels.Entity, missing []*storagemodels.Key, err error)
}

// Executor is a complete store backend.
type Executor interface {
	QueryExecutor
	CommitExecutor
	LookupExecutor
}
