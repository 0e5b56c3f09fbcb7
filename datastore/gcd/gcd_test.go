/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package gcd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pb "cloud.google.com/go/datastore/apiv1/datastorepb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/kindstore/datastore"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeRPC struct {
	runQuery func(req *pb.RunQueryRequest) (*pb.RunQueryResponse, error)
	commit   func(req *pb.CommitRequest) (*pb.CommitResponse, error)
	lookup   func(req *pb.LookupRequest) (*pb.LookupResponse, error)

	queries []*pb.RunQueryRequest
	commits []*pb.CommitRequest
	lookups []*pb.LookupRequest
}

func (f *fakeRPC) RunQuery(ctx context.Context, req *pb.RunQueryRequest, _ ...gax.CallOption) (*pb.RunQueryResponse, error) {
	f.queries = append(f.queries, req)
	return f.runQuery(req)
}

func (f *fakeRPC) Commit(ctx context.Context, req *pb.CommitRequest, _ ...gax.CallOption) (*pb.CommitResponse, error) {
	f.commits = append(f.commits, req)
	return f.commit(req)
}

func (f *fakeRPC) Lookup(ctx context.Context, req *pb.LookupRequest, _ ...gax.CallOption) (*pb.LookupResponse, error) {
	f.lookups = append(f.lookups, req)
	return f.lookup(req)
}

var part = storagemodels.PartitionID{ProjectID: "proj", NamespaceID: "tenant"}

func sampleEntity() *storagemodels.Entity {
	e := storagemodels.NewEntity(storagemodels.NewKey(part,
		storagemodels.NameElement("Board", "main"), storagemodels.IDElement("Task", 7)))
	note := &storagemodels.ValueMemberString{Value: "long"}
	note.SetExcludedFromIndexes(true)
	e.Properties = map[string]storagemodels.Value{
		"null":   &storagemodels.ValueMemberNull{},
		"bool":   &storagemodels.ValueMemberBool{Value: true},
		"int":    &storagemodels.ValueMemberInteger{Value: 42},
		"double": &storagemodels.ValueMemberDouble{Value: 2.5},
		"blob":   &storagemodels.ValueMemberBlob{Value: []byte("raw")},
		"geo":    &storagemodels.ValueMemberGeoPoint{Value: storagemodels.GeoPoint{Latitude: 1, Longitude: 2}},
		"ts":     &storagemodels.ValueMemberTimestamp{Value: storagemodels.Timestamp{Seconds: 10, Nanos: 5000}},
		"ref":    &storagemodels.ValueMemberKey{Value: storagemodels.NewKey(part, storagemodels.NameElement("User", "bob"))},
		"note":   note,
		"tags":   &storagemodels.ValueMemberArray{Value: []storagemodels.Value{&storagemodels.ValueMemberString{Value: "a"}}},
		"nested": &storagemodels.ValueMemberEntity{Value: &storagemodels.Entity{
			Properties: map[string]storagemodels.Value{"x": &storagemodels.ValueMemberInteger{Value: 1}},
		}},
	}
	return e
}

func TestEntityConversion(t *testing.T) {
	e := sampleEntity()
	p, err := entityToProto(e)
	require.NoError(t, err)

	assert.Equal(t, "tenant", p.GetKey().GetPartitionId().GetNamespaceId())
	assert.Equal(t, int64(7), p.GetKey().GetPath()[1].GetId())
	assert.Equal(t, "main", p.GetKey().GetPath()[0].GetName())
	assert.Equal(t, structpb.NullValue_NULL_VALUE, p.GetProperties()["null"].GetNullValue())
	assert.True(t, p.GetProperties()["note"].GetExcludeFromIndexes())
	assert.Equal(t, int32(5000), p.GetProperties()["ts"].GetTimestampValue().GetNanos())
	assert.Equal(t, 2.0, p.GetProperties()["geo"].GetGeoPointValue().GetLongitude())

	back, err := entityFromProto(p)
	require.NoError(t, err)
	assert.Equal(t, e, back)
}

func TestQueryConversion(t *testing.T) {
	limit := int32(25)
	req := &storagemodels.QueryRequest{
		Partition:   part,
		StartCursor: []byte("start"),
		EndCursor:   []byte("end"),
		Limit:       &limit,
		Offset:      3,
		Query: storagemodels.Query{
			Kind:     "Task",
			Ancestor: storagemodels.NewKey(part, storagemodels.NameElement("Board", "main")),
			Filters: []storagemodels.Filter{
				{Property: "points", Op: storagemodels.GreaterThanOrEqual, Value: &storagemodels.ValueMemberInteger{Value: 2}},
			},
			Orders: []storagemodels.Order{{Property: "points", Descending: true}},
		},
	}
	q, err := queryToProto(req)
	require.NoError(t, err)

	assert.Equal(t, "Task", q.GetKind()[0].GetName())
	assert.Equal(t, int32(25), q.GetLimit().GetValue())
	assert.Equal(t, int32(3), q.GetOffset())
	assert.Equal(t, []byte("start"), q.GetStartCursor())
	assert.Equal(t, []byte("end"), q.GetEndCursor())

	composite := q.GetFilter().GetCompositeFilter()
	require.NotNil(t, composite)
	assert.Equal(t, pb.CompositeFilter_AND, composite.GetOp())
	require.Len(t, composite.GetFilters(), 2)
	anc := composite.GetFilters()[0].GetPropertyFilter()
	assert.Equal(t, storagemodels.KeyProperty, anc.GetProperty().GetName())
	assert.Equal(t, pb.PropertyFilter_HAS_ANCESTOR, anc.GetOp())
	assert.Equal(t, pb.PropertyFilter_GREATER_THAN_OR_EQUAL, composite.GetFilters()[1].GetPropertyFilter().GetOp())
	assert.Equal(t, pb.PropertyOrder_DESCENDING, q.GetOrder()[0].GetDirection())

	single, err := queryToProto(&storagemodels.QueryRequest{Query: storagemodels.Query{
		Filters: []storagemodels.Filter{{Property: "a", Value: &storagemodels.ValueMemberBool{Value: true}}},
	}})
	require.NoError(t, err)
	assert.NotNil(t, single.GetFilter().GetPropertyFilter())
	assert.Nil(t, single.GetKind())
	assert.Nil(t, single.GetLimit())
}

func TestRunQueryThroughIterator(t *testing.T) {
	entity, err := entityToProto(sampleEntity())
	require.NoError(t, err)

	rpc := &fakeRPC{runQuery: func(req *pb.RunQueryRequest) (*pb.RunQueryResponse, error) {
		q := req.GetQuery()
		if q.GetOffset() > 2 {
			return &pb.RunQueryResponse{Batch: &pb.QueryResultBatch{
				SkippedResults: 2,
				SkippedCursor:  []byte("after-2"),
				EndCursor:      []byte("after-2"),
				MoreResults:    pb.QueryResultBatch_NOT_FINISHED,
			}}, nil
		}
		return &pb.RunQueryResponse{Batch: &pb.QueryResultBatch{
			SkippedResults: q.GetOffset(),
			EntityResults:  []*pb.EntityResult{{Entity: entity}},
			EndCursor:      []byte("done"),
			MoreResults:    pb.QueryResultBatch_NO_MORE_RESULTS,
		}}, nil
	}}
	s := newStore(rpc, "proj", WithDatabase("db1"))

	it := datastore.NewIterator(s, nil, storagemodels.Query{Kind: "Task"},
		datastore.WithPartition(storagemodels.PartitionID{NamespaceID: "tenant"}),
		datastore.WithOffset(3), datastore.WithEventual())
	page, err := it.NextPage(context.Background())
	require.NoError(t, err)
	require.Len(t, page.Entities, 1)
	assert.Equal(t, sampleEntity(), page.Entities[0])
	assert.Nil(t, page.Cursor)

	require.Len(t, rpc.queries, 2)
	first, second := rpc.queries[0], rpc.queries[1]
	assert.Equal(t, "proj", first.GetProjectId())
	assert.Equal(t, "db1", first.GetDatabaseId())
	assert.Equal(t, "tenant", first.GetPartitionId().GetNamespaceId())
	assert.Equal(t, "proj", first.GetPartitionId().GetProjectId())
	assert.Equal(t, pb.ReadOptions_EVENTUAL, first.GetReadOptions().GetReadConsistency())
	assert.Equal(t, int32(3), first.GetQuery().GetOffset())
	assert.Equal(t, int32(1), second.GetQuery().GetOffset())
	assert.Equal(t, []byte("after-2"), second.GetQuery().GetStartCursor())
}

func TestCommit(t *testing.T) {
	rpc := &fakeRPC{commit: func(req *pb.CommitRequest) (*pb.CommitResponse, error) {
		resp := &pb.CommitResponse{}
		for i, m := range req.GetMutations() {
			r := &pb.MutationResult{Version: int64(100 + i)}
			if up := m.GetUpsert(); up != nil {
				k := proto.Clone(up.GetKey()).(*pb.Key)
				k.Path[len(k.Path)-1].IdType = &pb.Key_PathElement_Id{Id: 555}
				r.Key = k
			}
			resp.MutationResults = append(resp.MutationResults, r)
		}
		return resp, nil
	}}
	s := newStore(rpc, "proj")

	incomplete := storagemodels.NewEntity(storagemodels.NewKey(storagemodels.PartitionID{NamespaceID: "tenant"},
		storagemodels.PathElement{Kind: "Task"}))
	deleted := storagemodels.NewKey(storagemodels.PartitionID{NamespaceID: "tenant"}, storagemodels.IDElement("Task", 9))

	results, err := s.Commit(context.Background(), []storagemodels.Mutation{
		{Op: storagemodels.Upsert, Entity: incomplete},
		{Op: storagemodels.Delete, Key: deleted},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(555), results[0].Key.Path[0].ID)
	assert.Equal(t, "proj", results[0].Key.Partition.ProjectID)
	assert.Equal(t, int64(100), results[0].Version)
	assert.Equal(t, int64(9), results[1].Key.Path[0].ID)
	assert.Equal(t, int64(101), results[1].Version)
	assert.True(t, incomplete.Key.Incomplete())

	require.Len(t, rpc.commits, 1)
	req := rpc.commits[0]
	assert.Equal(t, pb.CommitRequest_NON_TRANSACTIONAL, req.GetMode())
	assert.Equal(t, "proj", req.GetMutations()[1].GetDelete().GetPartitionId().GetProjectId())

	t.Run("Conflicts", func(t *testing.T) {
		rpc.commit = func(req *pb.CommitRequest) (*pb.CommitResponse, error) {
			return nil, status.Error(codes.AlreadyExists, "entity already exists")
		}
		_, err := s.Commit(context.Background(), []storagemodels.Mutation{{Op: storagemodels.Insert, Entity: sampleEntity()}})
		assert.True(t, errors.IsAlreadyExists(err), "got %v", err)

		rpc.commit = func(req *pb.CommitRequest) (*pb.CommitResponse, error) {
			return nil, status.Error(codes.NotFound, "no entity to update")
		}
		_, err = s.Commit(context.Background(), []storagemodels.Mutation{{Op: storagemodels.Update, Entity: sampleEntity()}})
		assert.True(t, errors.IsNotFound(err), "got %v", err)
		assert.True(t, errors.IsConditionFailed(err), "got %v", err)

		rpc.commit = func(req *pb.CommitRequest) (*pb.CommitResponse, error) {
			return nil, status.Error(codes.Unavailable, "try again")
		}
		_, err = s.Commit(context.Background(), []storagemodels.Mutation{{Op: storagemodels.Upsert, Entity: sampleEntity()}})
		assert.Equal(t, codes.Unavailable, status.Code(err))
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := s.Commit(context.Background(), []storagemodels.Mutation{{Op: storagemodels.Delete}})
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestLookupDeferred(t *testing.T) {
	found, err := entityToProto(sampleEntity())
	require.NoError(t, err)
	missingKey := storagemodels.NewKey(part, storagemodels.IDElement("Task", 1))

	calls := 0
	rpc := &fakeRPC{lookup: func(req *pb.LookupRequest) (*pb.LookupResponse, error) {
		calls++
		if calls == 1 {
			return &pb.LookupResponse{
				Missing:  []*pb.EntityResult{{Entity: &pb.Entity{Key: keyToProto(missingKey)}}},
				Deferred: []*pb.Key{found.GetKey()},
			}, nil
		}
		return &pb.LookupResponse{Found: []*pb.EntityResult{{Entity: found}}}, nil
	}}
	s := newStore(rpc, "proj")

	entities, missing, err := s.Lookup(context.Background(), []*storagemodels.Key{sampleEntity().Key, missingKey})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, sampleEntity(), entities[0])
	require.Len(t, missing, 1)
	assert.Equal(t, missingKey, missing[0])
	require.Len(t, rpc.lookups, 2)
	assert.True(t, proto.Equal(found.GetKey(), rpc.lookups[1].GetKeys()[0]))
}

func TestConfigFromEnv(t *testing.T) {
	for _, name := range []string{"DATASTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "DATASTORE_EMULATOR_HOST"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DATASTORE_PROJECT_ID=demo\nDATASTORE_EMULATOR_HOST=localhost:8081\n"), 0o600))

	cfg, err := ConfigFromEnv(envFile)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project)
	assert.Len(t, cfg.ClientOptions(), 3)

	assert.Empty(t, Config{Project: "p"}.ClientOptions())
}
