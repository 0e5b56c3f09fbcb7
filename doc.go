/*
Package kindstore maps annotated Go structs to keyed, schemaless entities in
a Datastore-style store and back.

A struct type describes its key path and storage options through a
DatastoreConfig method or a YAML configuration (see package schema). Types
are registered once in a registry.Registry; the codec package converts
between registered structs and wire entities, and the datastore package
pages through query results.

A Repository ties a codec to one store backend: Cloud Datastore (package
datastore/gcd), DynamoDB (package datastore/ddb) or the in-memory executor
of package datastore/mock.

Basic Usage:

	reg := registry.New()
	if _, err := registry.Register[Order](reg); err != nil {
	    return err
	}
	repo := kindstore.New(store, codec.New(reg), kindstore.WithNamespace("shop"))

	// Writes replace any entity with the same key
	res, err := repo.Insert(ctx, &Order{CustomerID: "c1", Total: 42})

	// Pages are fetched lazily, reconciling the offset across calls
	q := repo.QueryAncestor("Order", repo.Key(storagemodels.NameElement("Customer", "c1")))
	for item, err := range repo.RunQuery(q, datastore.WithLimit(10)).All(ctx) {
	    ...
	}

Typed gives the same operations for a single type:

	orders, _ := kindstore.NewTyped[Order](repo)
	order, err := orders.Get(ctx, key)

Batch collects up to BatchCapacity mutations for one SubmitBatch call.
*/
package kindstore
