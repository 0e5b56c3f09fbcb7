/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"reflect"

	"github.com/suparena/kindstore/storagemodels"
)

// ContainerKind tells whether a property holds a single value, a list or a
// string-keyed map of values.
type ContainerKind int

const (
	ContainerNone ContainerKind = iota
	ContainerList
	ContainerMap
)

func (c ContainerKind) String() string {
	switch c {
	case ContainerNone:
		return "none"
	case ContainerList:
		return "list"
	case ContainerMap:
		return "map"
	}
	return fmt.Sprintf("ContainerKind(%d)", int(c))
}

// ValueKind is the wire mapping of an atomic property.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInteger
	KindDouble
	KindString
	KindBlob
	KindGeoPoint
	KindTimestamp
	KindEnumInteger
	KindEnumString
)

var valueKindNames = [...]string{
	KindBool:        "bool",
	KindInteger:     "integer",
	KindDouble:      "double",
	KindString:      "string",
	KindBlob:        "blob",
	KindGeoPoint:    "geo_point",
	KindTimestamp:   "timestamp",
	KindEnumInteger: "enum_integer",
	KindEnumString:  "enum_string",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// WireType returns the wire type name values of this kind are encoded as.
func (k ValueKind) WireType() string {
	switch k {
	case KindBool:
		return storagemodels.TypeBool
	case KindInteger, KindEnumInteger:
		return storagemodels.TypeInteger
	case KindDouble:
		return storagemodels.TypeDouble
	case KindString, KindEnumString:
		return storagemodels.TypeString
	case KindBlob:
		return storagemodels.TypeBlob
	case KindGeoPoint:
		return storagemodels.TypeGeoPoint
	case KindTimestamp:
		return storagemodels.TypeTimestamp
	}
	panic(fmt.Sprintf("schema: unknown value kind %d", int(k)))
}

// Temporal is the Go target type of a timestamp property. The same wire
// timestamp decodes differently depending on it.
type Temporal int

const (
	TemporalNone Temporal = iota
	// TemporalTime is a zoned time.Time.
	TemporalTime
	// TemporalDateTime is a naive civil.DateTime, interpreted as UTC.
	TemporalDateTime
	// TemporalDate is a civil.Date at midnight UTC.
	TemporalDate
	// TemporalTimeOfDay is a civil.Time on the Unix epoch date.
	TemporalTimeOfDay
	// TemporalDuration is a time.Duration since the Unix epoch.
	TemporalDuration
	// TemporalStrfmtDateTime is a strfmt.DateTime.
	TemporalStrfmtDateTime
	// TemporalStrfmtDate is a strfmt.Date.
	TemporalStrfmtDate
	// TemporalStrfmtDuration is a strfmt.Duration.
	TemporalStrfmtDuration
)

// NestedKind tells how an entity property's value is structured.
type NestedKind int

const (
	// NestedStruct is a Go struct with its own model.
	NestedStruct NestedKind = iota
	// NestedPlainMap is a map[string]any whose values are dispatched on their
	// runtime type.
	NestedPlainMap
)

// Accessor reaches one struct field from a struct value. It is computed
// once at build time from the field's index path.
type Accessor struct {
	index []int
}

// Field returns the field of obj. The result is settable when obj is.
func (a Accessor) Field(obj reflect.Value) reflect.Value {
	return obj.FieldByIndex(a.index)
}

// Property is the wire mapping of one model field. It is one of
// *AtomicProperty, *EntityProperty or *ReferenceProperty.
type Property interface {
	// Base returns the attributes shared by every property variant.
	Base() *PropertyBase

	isProperty()
}

// PropertyBase holds the attributes shared by every property variant.
type PropertyBase struct {
	// Name is the wire property name.
	Name string
	// Field is the Go struct field name.
	Field string
	// Optional is set for pointer fields; nil encodes as Null.
	Optional bool
	// ExcludeFromIndexes marks every wire leaf of the property unindexed.
	ExcludeFromIndexes bool
	// Container is the collection shape of the field.
	Container ContainerKind
	// ElemOptional is set for lists and maps of pointers.
	ElemOptional bool
	// Accessor reaches the field.
	Accessor Accessor
}

// Base implements Property.
func (b *PropertyBase) Base() *PropertyBase { return b }

// AtomicProperty maps a field to a scalar wire value.
type AtomicProperty struct {
	PropertyBase
	// Kind is the wire mapping.
	Kind ValueKind
	// Temporal is the Go target for timestamps.
	Temporal Temporal
	// Type is the Go leaf type, with optional and container wrapping removed.
	Type reflect.Type
	// EnumType is the named type of enum kinds, used to rebuild enum values.
	EnumType reflect.Type
}

// EntityProperty maps a field to an embedded wire entity.
type EntityProperty struct {
	PropertyBase
	Nested NestedKind
	// NestedType is the struct type for NestedStruct, nil for NestedPlainMap.
	NestedType reflect.Type
}

// ReferenceProperty maps key fields of the model to a key value pointing at
// another entity.
type ReferenceProperty struct {
	PropertyBase
	Key *KeySchema
}

func (*AtomicProperty) isProperty()    {}
func (*EntityProperty) isProperty()    {}
func (*ReferenceProperty) isProperty() {}
