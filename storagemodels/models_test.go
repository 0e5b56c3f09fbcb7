/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	p := PartitionID{ProjectID: "proj", NamespaceID: "ns"}
	k := NewKey(p, NameElement("Account", "acme"), IDElement("Project", 7), PathElement{Kind: "Task"})

	assert.Equal(t, "Task", k.Kind())
	assert.True(t, k.Incomplete())
	assert.Equal(t, `Account:"acme"/Project:7/Task:?`, k.String())

	parent := k.Parent()
	assert.Equal(t, "Project", parent.Kind())
	assert.False(t, parent.Incomplete())
	assert.True(t, k.HasAncestor(parent))
	assert.True(t, parent.HasAncestor(parent))
	assert.False(t, parent.HasAncestor(k))
	assert.Nil(t, parent.Parent().Parent())

	other := NewKey(PartitionID{NamespaceID: "other"}, NameElement("Account", "acme"))
	assert.False(t, k.HasAncestor(other))
	assert.True(t, parent.Equal(NewKey(p, NameElement("Account", "acme"), IDElement("Project", 7))))
	assert.False(t, parent.Equal(NewKey(PartitionID{}, NameElement("Account", "acme"), IDElement("Project", 7))))
}

func TestCompareKeys(t *testing.T) {
	root := NewKey(PartitionID{}, NameElement("A", "x"))
	tests := []struct {
		name string
		a, b *Key
		want int
	}{
		{"ids before names", NewKey(PartitionID{}, IDElement("A", 99)), root, -1},
		{"by kind", NewKey(PartitionID{}, IDElement("B", 1)), NewKey(PartitionID{}, IDElement("A", 2)), 1},
		{"by id", NewKey(PartitionID{}, IDElement("A", 1)), NewKey(PartitionID{}, IDElement("A", 2)), -1},
		{"parent first", root, NewKey(PartitionID{}, NameElement("A", "x"), IDElement("B", 1)), -1},
		{"equal", root, NewKey(PartitionID{}, NameElement("A", "x")), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareKeys(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestCompareValues(t *testing.T) {
	c, ok := CompareValues(&ValueMemberInteger{Value: 3}, &ValueMemberInteger{Value: 5})
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = CompareValues(&ValueMemberNull{}, &ValueMemberBool{Value: false})
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = CompareValues(&ValueMemberString{Value: "b"}, &ValueMemberString{Value: "a"})
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = CompareValues(&ValueMemberDouble{Value: 1.5}, &ValueMemberString{Value: "z"})
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = CompareValues(&ValueMemberArray{}, &ValueMemberInteger{Value: 1})
	assert.False(t, ok)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, TypeNull, TypeName(nil))
	assert.Equal(t, TypeInteger, TypeName(&ValueMemberInteger{}))
	assert.Equal(t, TypeArray, TypeName(&ValueMemberArray{}))
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(&ValueMemberNull{}))
	assert.False(t, IsNull(&ValueMemberString{}))
}

func TestTimestamp(t *testing.T) {
	in := time.Date(2024, 2, 29, 12, 30, 0, 123456000, time.FixedZone("X", 3600))
	ts := TimestampOf(in)
	assert.Equal(t, int32(123456000), ts.Nanos)
	assert.True(t, ts.Time().Equal(in))
	assert.Equal(t, time.UTC, ts.Time().Location())

	assert.True(t, GeoPoint{Latitude: 45, Longitude: -120}.Valid())
	assert.False(t, GeoPoint{Latitude: 91}.Valid())
}

func TestMoreResults(t *testing.T) {
	assert.False(t, NotFinished.Terminal())
	assert.False(t, MoreResultsUnspecified.Terminal())
	assert.True(t, NoMoreResults.Terminal())
	assert.True(t, MoreResultsAfterLimit.Terminal())

	limit := int32(3)
	req := &QueryRequest{Limit: &limit, Offset: 2}
	clone := req.Clone()
	*clone.Limit = 1
	assert.Equal(t, int32(3), *req.Limit)
}
