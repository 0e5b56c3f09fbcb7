/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"fmt"
	"time"
)

// Value is the generic, self-describing wire value of an entity property.
//
// The concrete member types are:
//
//	*ValueMemberNull
//	*ValueMemberBool
//	*ValueMemberInteger
//	*ValueMemberDouble
//	*ValueMemberString
//	*ValueMemberBlob
//	*ValueMemberGeoPoint
//	*ValueMemberTimestamp
//	*ValueMemberKey
//	*ValueMemberArray
//	*ValueMemberEntity
//
// Switch on the concrete type to read a value. The set is closed; callers
// should treat an unknown member as a programming error.
type Value interface {
	// ExcludedFromIndexes reports whether the store must not index this value.
	ExcludedFromIndexes() bool
	// SetExcludedFromIndexes sets the index exclusion flag.
	SetExcludedFromIndexes(excluded bool)

	isValue()
}

// IndexOptions carries the per-value index exclusion flag. Array and Entity
// members only carry it when the whole property value is excluded; their
// elements carry their own flags.
type IndexOptions struct {
	ExcludeFromIndexes bool
}

// ExcludedFromIndexes implements Value.
func (o *IndexOptions) ExcludedFromIndexes() bool { return o.ExcludeFromIndexes }

// SetExcludedFromIndexes implements Value.
func (o *IndexOptions) SetExcludedFromIndexes(excluded bool) { o.ExcludeFromIndexes = excluded }

// ValueMemberNull is an explicit null.
type ValueMemberNull struct {
	IndexOptions
}

// ValueMemberBool is a boolean.
type ValueMemberBool struct {
	Value bool
	IndexOptions
}

// ValueMemberInteger is a signed 64-bit integer.
type ValueMemberInteger struct {
	Value int64
	IndexOptions
}

// ValueMemberDouble is a 64-bit float.
type ValueMemberDouble struct {
	Value float64
	IndexOptions
}

// ValueMemberString is a UTF-8 string.
type ValueMemberString struct {
	Value string
	IndexOptions
}

// ValueMemberBlob is an opaque byte string.
type ValueMemberBlob struct {
	Value []byte
	IndexOptions
}

// ValueMemberGeoPoint is a latitude/longitude pair.
type ValueMemberGeoPoint struct {
	Value GeoPoint
	IndexOptions
}

// ValueMemberTimestamp is a UTC instant.
type ValueMemberTimestamp struct {
	Value Timestamp
	IndexOptions
}

// ValueMemberKey is a reference to another entity.
type ValueMemberKey struct {
	Value *Key
	IndexOptions
}

// ValueMemberArray is an ordered list of values.
type ValueMemberArray struct {
	Value []Value
	IndexOptions
}

// ValueMemberEntity is an embedded entity. Embedded entities may omit the key.
type ValueMemberEntity struct {
	Value *Entity
	IndexOptions
}

func (*ValueMemberNull) isValue()      {}
func (*ValueMemberBool) isValue()      {}
func (*ValueMemberInteger) isValue()   {}
func (*ValueMemberDouble) isValue()    {}
func (*ValueMemberString) isValue()    {}
func (*ValueMemberBlob) isValue()      {}
func (*ValueMemberGeoPoint) isValue()  {}
func (*ValueMemberTimestamp) isValue() {}
func (*ValueMemberKey) isValue()       {}
func (*ValueMemberArray) isValue()     {}
func (*ValueMemberEntity) isValue()    {}

// Wire type names, as used by the entity protocol's value oneof.
const (
	TypeNull      = "null_value"
	TypeBool      = "boolean_value"
	TypeInteger   = "integer_value"
	TypeDouble    = "double_value"
	TypeString    = "string_value"
	TypeBlob      = "blob_value"
	TypeGeoPoint  = "geo_point_value"
	TypeTimestamp = "timestamp_value"
	TypeKey       = "key_value"
	TypeArray     = "array_value"
	TypeEntity    = "entity_value"
)

// TypeName returns the wire type name of v. A nil Value is reported as null.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, *ValueMemberNull:
		return TypeNull
	case *ValueMemberBool:
		return TypeBool
	case *ValueMemberInteger:
		return TypeInteger
	case *ValueMemberDouble:
		return TypeDouble
	case *ValueMemberString:
		return TypeString
	case *ValueMemberBlob:
		return TypeBlob
	case *ValueMemberGeoPoint:
		return TypeGeoPoint
	case *ValueMemberTimestamp:
		return TypeTimestamp
	case *ValueMemberKey:
		return TypeKey
	case *ValueMemberArray:
		return TypeArray
	case *ValueMemberEntity:
		return TypeEntity
	default:
		panic(fmt.Sprintf("storagemodels: unknown value member %T", v))
	}
}

// IsNull reports whether v is absent or an explicit null.
func IsNull(v Value) bool {
	_, null := v.(*ValueMemberNull)
	return v == nil || null
}

// GeoPoint is a geographical point. Models use it directly as a field type.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Valid reports whether the point is within the legal coordinate range.
func (g GeoPoint) Valid() bool {
	return -90 <= g.Latitude && g.Latitude <= 90 && -180 <= g.Longitude && g.Longitude <= 180
}

// Timestamp is the wire instant: whole seconds since the Unix epoch plus a
// non-negative sub-second remainder in nanoseconds.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampOf converts t to a wire timestamp in UTC.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time returns the timestamp as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}
