/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"reflect"
)

// IDType is the type of a key path element id.
type IDType int

const (
	IntID IDType = iota
	StringID
)

func (t IDType) String() string {
	if t == StringID {
		return "string"
	}
	return "int"
}

// PathSegment is one element of a key schema: the kind and the field that
// holds its id.
type PathSegment struct {
	Kind     string
	Field    string
	IDType   IDType
	Optional bool
	Accessor Accessor
}

// KeySchema describes how a key path is composed from model fields. The path
// is never empty.
type KeySchema struct {
	Path []PathSegment
}

// Len returns the number of path segments.
func (k *KeySchema) Len() int { return len(k.Path) }

// Kind returns the kind of the last segment.
func (k *KeySchema) Kind() string { return k.Path[len(k.Path)-1].Kind }

// Last returns the last segment.
func (k *KeySchema) Last() PathSegment { return k.Path[len(k.Path)-1] }

// Model is the schema of one Go struct type: its key composition and the
// ordered wire properties. Models are immutable once built.
type Model struct {
	// Type is the struct type.
	Type reflect.Type
	// Kind is the kind tag, empty for keyless (embedded only) models.
	Kind string
	// Key is nil for keyless models.
	Key *KeySchema
	// Properties are in field declaration order, references first.
	Properties []Property

	byName map[string]Property
}

// Name returns the Go type name of the model.
func (m *Model) Name() string {
	return m.Type.String()
}

// Property returns the property with the given wire name.
func (m *Model) Property(name string) (Property, bool) {
	p, ok := m.byName[name]
	return p, ok
}

// Nested returns the struct types referenced by entity properties.
func (m *Model) Nested() []reflect.Type {
	var out []reflect.Type
	for _, p := range m.Properties {
		if ep, ok := p.(*EntityProperty); ok && ep.Nested == NestedStruct {
			out = append(out, ep.NestedType)
		}
	}
	return out
}
