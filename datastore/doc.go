/*
Package datastore defines the store backend interfaces and the query iterator.

Backends implement three small executor interfaces:

	type QueryExecutor interface {
	    RunQuery(ctx context.Context, req *storagemodels.QueryRequest) (*storagemodels.ResultBatch, error)
	}
	type CommitExecutor interface {
	    Commit(ctx context.Context, mutations []storagemodels.Mutation) ([]storagemodels.MutationResult, error)
	}
	type LookupExecutor interface {
	    Lookup(ctx context.Context, keys []*storagemodels.Key) ([]*storagemodels.Entity, []*storagemodels.Key, error)
	}

Implementations:
  - gcd: Cloud Datastore over gRPC
  - ddb: DynamoDB, one item per entity
  - mock: in-memory executor for testing

Iterator pages through a query, decoding each result with the codec:

	it := datastore.NewIterator(exec, c, storagemodels.Query{Kind: "Order"},
	    datastore.WithLimit(100),
	    datastore.WithOffset(20),
	)
	for v, err := range it.All(ctx) {
	    if err != nil {
	        return err
	    }
	    switch o := v.(type) {
	    case *Order:
	        // decoded
	    case *storagemodels.Entity:
	        // did not decode, o is the raw entity
	    }
	}

When the store skips fewer rows than the requested offset, the iterator
reissues the request from the skipped cursor with the remaining offset before
returning any results. Stream and Collect offer typed views over an Iterator.
*/
package datastore
