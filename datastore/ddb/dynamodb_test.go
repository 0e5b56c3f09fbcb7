/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
)

var ns = storagemodels.PartitionID{ProjectID: "proj", NamespaceID: "tenant"}

func taskKey(board string, id int64) *storagemodels.Key {
	return storagemodels.NewKey(ns, storagemodels.NameElement("Board", board), storagemodels.IDElement("Task", id))
}

func task(board string, id int64, status string, points int64) *storagemodels.Entity {
	e := storagemodels.NewEntity(taskKey(board, id))
	e.Properties["status"] = &storagemodels.ValueMemberString{Value: status}
	e.Properties["points"] = &storagemodels.ValueMemberInteger{Value: points}
	return e
}

func newTestStore(opts ...Option) (*Store, *fakeClient) {
	client := newFakeClient()
	opts = append([]Option{WithProject("proj"), WithRetry(3, time.Millisecond)}, opts...)
	return New(client, "kindstore-test", opts...), client
}

func TestPathEncoding(t *testing.T) {
	path := []storagemodels.PathElement{
		storagemodels.NameElement("Org/Unit", "a:b#c%d"),
		storagemodels.IDElement("Task", -5),
		storagemodels.IDElement("Step", 42),
	}
	sk, err := encodePath(path)
	require.NoError(t, err)
	decoded, err := decodePath(sk)
	require.NoError(t, err)
	assert.Equal(t, path, decoded)

	enc := func(p ...storagemodels.PathElement) string {
		s, err := encodePath(p)
		require.NoError(t, err)
		return s
	}
	assert.Less(t, enc(storagemodels.IDElement("A", -1)), enc(storagemodels.IDElement("A", 1)))
	assert.Less(t, enc(storagemodels.IDElement("A", 9)), enc(storagemodels.IDElement("A", 10)))
	assert.Less(t, enc(storagemodels.IDElement("A", math.MaxInt64)), enc(storagemodels.NameElement("A", "0")))
	assert.Less(t, enc(storagemodels.NameElement("A", "x")),
		enc(storagemodels.NameElement("A", "x"), storagemodels.IDElement("B", 1)))

	_, err = encodePath([]storagemodels.PathElement{{Kind: "A"}})
	assert.Error(t, err)
}

func TestItemRoundTrip(t *testing.T) {
	e := storagemodels.NewEntity(taskKey("main", 7))
	excluded := &storagemodels.ValueMemberString{Value: "long text"}
	excluded.SetExcludedFromIndexes(true)
	e.Properties = map[string]storagemodels.Value{
		"null":   &storagemodels.ValueMemberNull{},
		"bool":   &storagemodels.ValueMemberBool{Value: true},
		"int":    &storagemodels.ValueMemberInteger{Value: -12},
		"double": &storagemodels.ValueMemberDouble{Value: 0.1},
		"inf":    &storagemodels.ValueMemberDouble{Value: math.Inf(-1)},
		"str":    &storagemodels.ValueMemberString{Value: ""},
		"blob":   &storagemodels.ValueMemberBlob{Value: []byte{0, 1, 2}},
		"geo":    &storagemodels.ValueMemberGeoPoint{Value: storagemodels.GeoPoint{Latitude: 43.5, Longitude: -79.7}},
		"ts":     &storagemodels.ValueMemberTimestamp{Value: storagemodels.Timestamp{Seconds: 1700000000, Nanos: 123000}},
		"ref":    &storagemodels.ValueMemberKey{Value: storagemodels.NewKey(ns, storagemodels.NameElement("User", "bob"))},
		"note":   excluded,
		"tags": &storagemodels.ValueMemberArray{Value: []storagemodels.Value{
			&storagemodels.ValueMemberString{Value: "a"},
			&storagemodels.ValueMemberInteger{Value: 1},
		}},
		"empty": &storagemodels.ValueMemberArray{Value: []storagemodels.Value{}},
		"nested": &storagemodels.ValueMemberEntity{Value: &storagemodels.Entity{
			Properties: map[string]storagemodels.Value{"x": &storagemodels.ValueMemberInteger{Value: 1}},
		}},
	}

	item, err := encodeItem(e, 99)
	require.NoError(t, err)
	assert.Equal(t, "tenant#Task", str(item[attrPK]))
	version, err := itemVersion(item)
	require.NoError(t, err)
	assert.Equal(t, int64(99), version)

	decoded, err := decodeItem(item, "proj")
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
	assert.True(t, decoded.Properties["note"].ExcludedFromIndexes())
}

func TestItemMalformedVersion(t *testing.T) {
	item, err := encodeItem(storagemodels.NewEntity(taskKey("main", 7)), 5)
	require.NoError(t, err)
	item[attrVersion] = &types.AttributeValueMemberS{Value: "five"}

	_, err = itemVersion(item)
	assert.ErrorContains(t, err, attrVersion)
	_, err = decodeItem(item, "proj")
	assert.Error(t, err)

	delete(item, attrVersion)
	version, err := itemVersion(item)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestCommitAndLookup(t *testing.T) {
	ctx := context.Background()
	s, client := newTestStore()

	incomplete := storagemodels.NewEntity(storagemodels.NewKey(ns,
		storagemodels.NameElement("Board", "main"), storagemodels.PathElement{Kind: "Task"}))
	incomplete.Properties["status"] = &storagemodels.ValueMemberString{Value: "new"}

	results, err := s.Commit(ctx, []storagemodels.Mutation{
		{Op: storagemodels.Insert, Entity: task("main", 100, "open", 3)},
		{Op: storagemodels.Upsert, Entity: incomplete},
		{Op: storagemodels.Upsert, Entity: incomplete},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[1].Key.Path[1].ID)
	assert.Equal(t, int64(2), results[2].Key.Path[1].ID)
	assert.True(t, incomplete.Key.Incomplete(), "caller's key must not be modified")
	require.Len(t, client.tokens, 1)
	assert.NotEmpty(t, client.tokens[0])

	found, missing, err := s.Lookup(ctx, []*storagemodels.Key{taskKey("main", 100), taskKey("main", 5), results[2].Key})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, task("main", 100, "open", 3), found[0])
	assert.Equal(t, "new", found[1].Properties["status"].(*storagemodels.ValueMemberString).Value)
	require.Len(t, missing, 1)
	assert.Equal(t, int64(5), missing[0].Path[1].ID)

	_, err = s.Commit(ctx, []storagemodels.Mutation{{Op: storagemodels.Insert, Entity: task("main", 100, "open", 3)}})
	assert.True(t, errors.IsAlreadyExists(err), "got %v", err)
	assert.True(t, errors.IsConditionFailed(err), "got %v", err)

	_, err = s.Commit(ctx, []storagemodels.Mutation{{Op: storagemodels.Update, Entity: task("main", 101, "open", 3)}})
	assert.True(t, errors.IsNotFound(err), "got %v", err)
	assert.True(t, errors.IsConditionFailed(err), "got %v", err)

	_, err = s.Commit(ctx, []storagemodels.Mutation{{Op: storagemodels.Delete, Key: taskKey("main", 100)}})
	require.NoError(t, err)
	_, missing, err = s.Lookup(ctx, []*storagemodels.Key{taskKey("main", 100)})
	require.NoError(t, err)
	assert.Len(t, missing, 1)

	_, err = s.Commit(ctx, []storagemodels.Mutation{{Op: storagemodels.Delete, Key: incomplete.Key}})
	assert.True(t, errors.IsValidationError(err))
}

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	s, client := newTestStore(WithPageSize(2), WithMaxSkip(2))

	var muts []storagemodels.Mutation
	for i := int64(1); i <= 6; i++ {
		status := "open"
		if i%3 == 0 {
			status = "done"
		}
		muts = append(muts, storagemodels.Mutation{Op: storagemodels.Upsert, Entity: task("main", i, status, i)})
	}
	muts = append(muts, storagemodels.Mutation{Op: storagemodels.Upsert, Entity: task("side", 1, "open", 1)})
	_, err := s.Commit(ctx, muts)
	require.NoError(t, err)

	ids := func(it *datastore.Iterator) []int64 {
		var out []int64
		for v, err := range it.All(ctx) {
			require.NoError(t, err)
			e := v.(*storagemodels.Entity)
			out = append(out, e.Key.Path[1].ID)
		}
		return out
	}

	t.Run("Filter", func(t *testing.T) {
		it := datastore.NewIterator(s, nil, storagemodels.Query{
			Kind: "Task",
			Filters: []storagemodels.Filter{
				{Property: "status", Op: storagemodels.Equal, Value: &storagemodels.ValueMemberString{Value: "open"}},
			},
		}, datastore.WithPartition(ns))
		assert.Equal(t, []int64{1, 2, 4, 5, 1}, ids(it))
	})

	t.Run("Ancestor", func(t *testing.T) {
		it := datastore.NewIterator(s, nil, storagemodels.Query{
			Kind:     "Task",
			Ancestor: storagemodels.NewKey(ns, storagemodels.NameElement("Board", "side")),
		}, datastore.WithPartition(ns))
		assert.Equal(t, []int64{1}, ids(it))
	})

	t.Run("OffsetBeyondMaxSkip", func(t *testing.T) {
		it := datastore.NewIterator(s, nil, storagemodels.Query{
			Kind:     "Task",
			Ancestor: storagemodels.NewKey(ns, storagemodels.NameElement("Board", "main")),
		}, datastore.WithPartition(ns), datastore.WithOffset(3), datastore.WithLimit(2))
		page, err := it.NextPage(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Requests)
		require.Len(t, page.Entities, 2)
		assert.Equal(t, int64(4), page.Entities[0].Key.Path[1].ID)
		assert.Equal(t, int64(5), page.Entities[1].Key.Path[1].ID)
	})

	t.Run("Descending", func(t *testing.T) {
		it := datastore.NewIterator(s, nil, storagemodels.Query{
			Kind:     "Task",
			Ancestor: storagemodels.NewKey(ns, storagemodels.NameElement("Board", "main")),
			Orders:   []storagemodels.Order{{Property: storagemodels.KeyProperty, Descending: true}},
		}, datastore.WithPartition(ns), datastore.WithLimit(3))
		assert.Equal(t, []int64{6, 5, 4}, ids(it))
	})

	t.Run("Cursors", func(t *testing.T) {
		q := storagemodels.Query{Kind: "Task", Ancestor: storagemodels.NewKey(ns, storagemodels.NameElement("Board", "main"))}
		first, err := s.RunQuery(ctx, &storagemodels.QueryRequest{Partition: ns, Query: q, Limit: aws.Int32(2)})
		require.NoError(t, err)
		assert.Equal(t, storagemodels.MoreResultsAfterLimit, first.MoreResults)

		upTo, err := s.RunQuery(ctx, &storagemodels.QueryRequest{Partition: ns, Query: q, Limit: aws.Int32(4)})
		require.NoError(t, err)

		it := datastore.NewIterator(s, nil, q, datastore.WithPartition(ns),
			datastore.WithStartCursor(first.EndCursor), datastore.WithEndCursor(upTo.EndCursor))
		assert.Equal(t, []int64{3, 4}, ids(it))
	})

	t.Run("Eventual", func(t *testing.T) {
		client.queries = nil
		it := datastore.NewIterator(s, nil, storagemodels.Query{Kind: "Task"},
			datastore.WithPartition(ns), datastore.WithEventual(), datastore.WithLimit(1))
		_, err := it.NextPage(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, client.queries)
		assert.False(t, aws.ToBool(client.queries[0].ConsistentRead))
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := s.RunQuery(ctx, &storagemodels.QueryRequest{Query: storagemodels.Query{}})
		assert.True(t, errors.IsValidationError(err))
		_, err = s.RunQuery(ctx, &storagemodels.QueryRequest{Query: storagemodels.Query{
			Kind:   "Task",
			Orders: []storagemodels.Order{{Property: "points"}},
		}})
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestRetryThrottled(t *testing.T) {
	s, client := newTestStore()
	client.throttle = 2
	batch, err := s.RunQuery(context.Background(), &storagemodels.QueryRequest{Query: storagemodels.Query{Kind: "Task"}})
	require.NoError(t, err)
	assert.Equal(t, storagemodels.NoMoreResults, batch.MoreResults)

	client.throttle = 10
	_, err = s.RunQuery(context.Background(), &storagemodels.QueryRequest{Query: storagemodels.Query{Kind: "Task"}})
	var throttled *types.ProvisionedThroughputExceededException
	assert.ErrorAs(t, err, &throttled)
}

func TestCreateTable(t *testing.T) {
	s, client := newTestStore()
	require.NoError(t, s.CreateTable(context.Background()))
	require.NotNil(t, client.created)
	assert.Equal(t, "kindstore-test", aws.ToString(client.created.TableName))
	assert.Equal(t, types.BillingModePayPerRequest, client.created.BillingMode)
	require.Len(t, client.created.KeySchema, 2)
	assert.Equal(t, attrPK, aws.ToString(client.created.KeySchema[0].AttributeName))
}

func TestConfigFromEnv(t *testing.T) {
	for _, name := range []string{"KINDSTORE_DDB_TABLE", "KINDSTORE_PROJECT", "AWS_REGION"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KINDSTORE_DDB_TABLE=entities\nKINDSTORE_PROJECT=demo\n"), 0o600))

	cfg, err := ConfigFromEnv(filepath.Join(dir, "missing.env"), envFile)
	require.NoError(t, err)
	assert.Equal(t, "entities", cfg.Table)
	assert.Equal(t, "demo", cfg.Project)
	assert.Equal(t, "us-east-1", cfg.Region)

	os.Unsetenv("KINDSTORE_DDB_TABLE")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}
