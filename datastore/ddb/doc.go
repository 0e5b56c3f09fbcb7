/*
Package ddb provides a DynamoDB implementation of the datastore executors.

The Store keeps every entity of a namespace and kind in one partition of a
single table:

	PK      = "<namespace>#<kind>"
	SK      = encoded key path, e.g. "Board:n:main/Task:i:8000000000000007"
	Props   = map of tagged values {t: wire type, v: value, x: excluded}
	Version = commit time in microseconds

Sort keys preserve key order, so queries read a partition in key order and
ancestor queries are a begins_with condition on SK. Property filters are
evaluated on the decoded entities; ordering is by key only. Offsets are
skipped at most WithMaxSkip rows per RunQuery call, like Cloud Datastore,
so the iterator reconciles large offsets the same way for both backends.

Incomplete keys are completed from per-kind counter items before commit.
Mutations are written with TransactWriteItems, 100 items per call, with a
random idempotency token; conditional failures map to AlreadyExists (insert)
and NotFound (update).

	cfg, err := ddb.ConfigFromEnv(".env")
	if err != nil {
	    return err
	}
	store, err := ddb.Open(ctx, cfg, ddb.WithLogger(logger))
*/
package ddb
