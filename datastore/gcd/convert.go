/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package gcd

import (
	"fmt"

	pb "cloud.google.com/go/datastore/apiv1/datastorepb"
	"github.com/suparena/kindstore/storagemodels"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func partitionToProto(p storagemodels.PartitionID) *pb.PartitionId {
	return &pb.PartitionId{
		ProjectId:   p.ProjectID,
		DatabaseId:  p.DatabaseID,
		NamespaceId: p.NamespaceID,
	}
}

func partitionFromProto(p *pb.PartitionId) storagemodels.PartitionID {
	return storagemodels.PartitionID{
		ProjectID:   p.GetProjectId(),
		DatabaseID:  p.GetDatabaseId(),
		NamespaceID: p.GetNamespaceId(),
	}
}

func keyToProto(k *storagemodels.Key) *pb.Key {
	if k == nil {
		return nil
	}
	path := make([]*pb.Key_PathElement, len(k.Path))
	for i, p := range k.Path {
		e := &pb.Key_PathElement{Kind: p.Kind}
		switch {
		case p.HasName():
			e.IdType = &pb.Key_PathElement_Name{Name: p.Name}
		case p.HasID():
			e.IdType = &pb.Key_PathElement_Id{Id: p.ID}
		}
		path[i] = e
	}
	return &pb.Key{PartitionId: partitionToProto(k.Partition), Path: path}
}

func keyFromProto(k *pb.Key) *storagemodels.Key {
	if k == nil {
		return nil
	}
	path := make([]storagemodels.PathElement, len(k.GetPath()))
	for i, p := range k.GetPath() {
		path[i] = storagemodels.PathElement{Kind: p.GetKind(), ID: p.GetId(), Name: p.GetName()}
	}
	return storagemodels.NewKey(partitionFromProto(k.GetPartitionId()), path...)
}

func entityToProto(e *storagemodels.Entity) (*pb.Entity, error) {
	if e == nil {
		return nil, nil
	}
	props := make(map[string]*pb.Value, len(e.Properties))
	for name, v := range e.Properties {
		pv, err := valueToProto(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		props[name] = pv
	}
	return &pb.Entity{Key: keyToProto(e.Key), Properties: props}, nil
}

func entityFromProto(e *pb.Entity) (*storagemodels.Entity, error) {
	if e == nil {
		return nil, nil
	}
	out := storagemodels.NewEntity(keyFromProto(e.GetKey()))
	for name, pv := range e.GetProperties() {
		v, err := valueFromProto(pv)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		out.Properties[name] = v
	}
	return out, nil
}

func valueToProto(v storagemodels.Value) (*pb.Value, error) {
	out := &pb.Value{}
	if v != nil {
		out.ExcludeFromIndexes = v.ExcludedFromIndexes()
	}
	switch tv := v.(type) {
	case nil, *storagemodels.ValueMemberNull:
		out.ValueType = &pb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}
	case *storagemodels.ValueMemberBool:
		out.ValueType = &pb.Value_BooleanValue{BooleanValue: tv.Value}
	case *storagemodels.ValueMemberInteger:
		out.ValueType = &pb.Value_IntegerValue{IntegerValue: tv.Value}
	case *storagemodels.ValueMemberDouble:
		out.ValueType = &pb.Value_DoubleValue{DoubleValue: tv.Value}
	case *storagemodels.ValueMemberString:
		out.ValueType = &pb.Value_StringValue{StringValue: tv.Value}
	case *storagemodels.ValueMemberBlob:
		out.ValueType = &pb.Value_BlobValue{BlobValue: tv.Value}
	case *storagemodels.ValueMemberGeoPoint:
		out.ValueType = &pb.Value_GeoPointValue{GeoPointValue: &latlng.LatLng{
			Latitude:  tv.Value.Latitude,
			Longitude: tv.Value.Longitude,
		}}
	case *storagemodels.ValueMemberTimestamp:
		out.ValueType = &pb.Value_TimestampValue{TimestampValue: &timestamppb.Timestamp{
			Seconds: tv.Value.Seconds,
			Nanos:   tv.Value.Nanos,
		}}
	case *storagemodels.ValueMemberKey:
		out.ValueType = &pb.Value_KeyValue{KeyValue: keyToProto(tv.Value)}
	case *storagemodels.ValueMemberArray:
		values := make([]*pb.Value, len(tv.Value))
		for i, item := range tv.Value {
			pv, err := valueToProto(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = pv
		}
		out.ValueType = &pb.Value_ArrayValue{ArrayValue: &pb.ArrayValue{Values: values}}
	case *storagemodels.ValueMemberEntity:
		e, err := entityToProto(tv.Value)
		if err != nil {
			return nil, err
		}
		out.ValueType = &pb.Value_EntityValue{EntityValue: e}
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	return out, nil
}

func valueFromProto(pv *pb.Value) (storagemodels.Value, error) {
	var v storagemodels.Value
	switch tv := pv.GetValueType().(type) {
	case nil, *pb.Value_NullValue:
		v = &storagemodels.ValueMemberNull{}
	case *pb.Value_BooleanValue:
		v = &storagemodels.ValueMemberBool{Value: tv.BooleanValue}
	case *pb.Value_IntegerValue:
		v = &storagemodels.ValueMemberInteger{Value: tv.IntegerValue}
	case *pb.Value_DoubleValue:
		v = &storagemodels.ValueMemberDouble{Value: tv.DoubleValue}
	case *pb.Value_StringValue:
		v = &storagemodels.ValueMemberString{Value: tv.StringValue}
	case *pb.Value_BlobValue:
		v = &storagemodels.ValueMemberBlob{Value: tv.BlobValue}
	case *pb.Value_GeoPointValue:
		v = &storagemodels.ValueMemberGeoPoint{Value: storagemodels.GeoPoint{
			Latitude:  tv.GeoPointValue.GetLatitude(),
			Longitude: tv.GeoPointValue.GetLongitude(),
		}}
	case *pb.Value_TimestampValue:
		v = &storagemodels.ValueMemberTimestamp{Value: storagemodels.Timestamp{
			Seconds: tv.TimestampValue.GetSeconds(),
			Nanos:   tv.TimestampValue.GetNanos(),
		}}
	case *pb.Value_KeyValue:
		v = &storagemodels.ValueMemberKey{Value: keyFromProto(tv.KeyValue)}
	case *pb.Value_ArrayValue:
		values := make([]storagemodels.Value, len(tv.ArrayValue.GetValues()))
		for i, item := range tv.ArrayValue.GetValues() {
			iv, err := valueFromProto(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			values[i] = iv
		}
		v = &storagemodels.ValueMemberArray{Value: values}
	case *pb.Value_EntityValue:
		e, err := entityFromProto(tv.EntityValue)
		if err != nil {
			return nil, err
		}
		v = &storagemodels.ValueMemberEntity{Value: e}
	default:
		return nil, fmt.Errorf("unsupported value type %T", tv)
	}
	v.SetExcludedFromIndexes(pv.GetExcludeFromIndexes())
	return v, nil
}

var filterOps = map[storagemodels.FilterOp]pb.PropertyFilter_Operator{
	storagemodels.Equal:              pb.PropertyFilter_EQUAL,
	storagemodels.LessThan:           pb.PropertyFilter_LESS_THAN,
	storagemodels.LessThanOrEqual:    pb.PropertyFilter_LESS_THAN_OR_EQUAL,
	storagemodels.GreaterThan:        pb.PropertyFilter_GREATER_THAN,
	storagemodels.GreaterThanOrEqual: pb.PropertyFilter_GREATER_THAN_OR_EQUAL,
}

func propertyFilter(name string, op pb.PropertyFilter_Operator, v *pb.Value) *pb.Filter {
	return &pb.Filter{FilterType: &pb.Filter_PropertyFilter{PropertyFilter: &pb.PropertyFilter{
		Property: &pb.PropertyReference{Name: name},
		Op:       op,
		Value:    v,
	}}}
}

// queryToProto builds the wire query of a request. Cursors, offset and
// limit come from the request rather than the query.
func queryToProto(req *storagemodels.QueryRequest) (*pb.Query, error) {
	q := req.Query
	out := &pb.Query{
		StartCursor: req.StartCursor,
		EndCursor:   req.EndCursor,
		Offset:      req.Offset,
	}
	if q.Kind != "" {
		out.Kind = []*pb.KindExpression{{Name: q.Kind}}
	}
	if req.Limit != nil {
		out.Limit = wrapperspb.Int32(*req.Limit)
	}

	var filters []*pb.Filter
	if q.Ancestor != nil {
		filters = append(filters, propertyFilter(storagemodels.KeyProperty, pb.PropertyFilter_HAS_ANCESTOR,
			&pb.Value{ValueType: &pb.Value_KeyValue{KeyValue: keyToProto(q.Ancestor)}}))
	}
	for _, f := range q.Filters {
		op, ok := filterOps[f.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter operator %s", f.Op)
		}
		v, err := valueToProto(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", f.Property, err)
		}
		filters = append(filters, propertyFilter(f.Property, op, v))
	}
	switch len(filters) {
	case 0:
	case 1:
		out.Filter = filters[0]
	default:
		out.Filter = &pb.Filter{FilterType: &pb.Filter_CompositeFilter{CompositeFilter: &pb.CompositeFilter{
			Op:      pb.CompositeFilter_AND,
			Filters: filters,
		}}}
	}

	for _, o := range q.Orders {
		dir := pb.PropertyOrder_ASCENDING
		if o.Descending {
			dir = pb.PropertyOrder_DESCENDING
		}
		out.Order = append(out.Order, &pb.PropertyOrder{
			Property:  &pb.PropertyReference{Name: o.Property},
			Direction: dir,
		})
	}
	return out, nil
}

var moreResults = map[pb.QueryResultBatch_MoreResultsType]storagemodels.MoreResultsType{
	pb.QueryResultBatch_NOT_FINISHED:              storagemodels.NotFinished,
	pb.QueryResultBatch_MORE_RESULTS_AFTER_LIMIT:  storagemodels.MoreResultsAfterLimit,
	pb.QueryResultBatch_MORE_RESULTS_AFTER_CURSOR: storagemodels.MoreResultsAfterCursor,
	pb.QueryResultBatch_NO_MORE_RESULTS:           storagemodels.NoMoreResults,
}

func batchFromProto(b *pb.QueryResultBatch) (*storagemodels.ResultBatch, error) {
	out := &storagemodels.ResultBatch{
		SkippedResults: b.GetSkippedResults(),
		SkippedCursor:  b.GetSkippedCursor(),
		EndCursor:      b.GetEndCursor(),
		MoreResults:    moreResults[b.GetMoreResults()],
	}
	for _, r := range b.GetEntityResults() {
		e, err := entityFromProto(r.GetEntity())
		if err != nil {
			return nil, err
		}
		out.EntityResults = append(out.EntityResults, e)
	}
	return out, nil
}

func mutationToProto(m storagemodels.Mutation) (*pb.Mutation, error) {
	if m.Op == storagemodels.Delete {
		if m.Key == nil {
			return nil, fmt.Errorf("delete without a key")
		}
		return &pb.Mutation{Operation: &pb.Mutation_Delete{Delete: keyToProto(m.Key)}}, nil
	}
	e, err := entityToProto(m.Entity)
	if err != nil {
		return nil, err
	}
	if e == nil || e.Key == nil {
		return nil, fmt.Errorf("%s mutation without a keyed entity", m.Op)
	}
	switch m.Op {
	case storagemodels.Insert:
		return &pb.Mutation{Operation: &pb.Mutation_Insert{Insert: e}}, nil
	case storagemodels.Update:
		return &pb.Mutation{Operation: &pb.Mutation_Update{Update: e}}, nil
	case storagemodels.Upsert:
		return &pb.Mutation{Operation: &pb.Mutation_Upsert{Upsert: e}}, nil
	}
	return nil, fmt.Errorf("unknown mutation %s", m.Op)
}
