/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"fmt"
	"reflect"

	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/registry"
	"github.com/suparena/kindstore/schema"
	"github.com/suparena/kindstore/storagemodels"
)

// Codec converts registered Go structs to wire entities and back. It holds
// no mutable state and is safe for concurrent use.
type Codec struct {
	reg *registry.Registry
}

// New creates a Codec resolving models from reg.
func New(reg *registry.Registry) *Codec {
	return &Codec{reg: reg}
}

// Registry returns the registry the codec resolves models from.
func (c *Codec) Registry() *registry.Registry {
	return c.reg
}

// Encode converts obj, a registered struct or a pointer to one, into a wire
// entity. Keys and nested entities are placed in the given partition.
func (c *Codec) Encode(obj any, project, namespace string) (*storagemodels.Entity, error) {
	v, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	m, err := c.reg.ResolveByType(v.Type())
	if err != nil {
		return nil, err
	}
	return c.encodeStruct(v, m, partition(project, namespace))
}

// EncodeModel is like Encode with an explicit model.
func (c *Codec) EncodeModel(obj any, m *schema.Model, project, namespace string) (*storagemodels.Entity, error) {
	v, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	if v.Type() != m.Type {
		return nil, errors.NewValidationError("obj", fmt.Sprintf("type %s does not match model %s", v.Type(), m.Name()))
	}
	return c.encodeStruct(v, m, partition(project, namespace))
}

// Decode converts a wire entity into a new instance of target, returned as a
// pointer. When target is nil the model is resolved by the kind of the
// entity's key.
func (c *Codec) Decode(e *storagemodels.Entity, target reflect.Type) (any, error) {
	if e == nil {
		return nil, errors.NewValidationError("entity", "entity is nil")
	}
	var (
		m   *schema.Model
		err error
	)
	if target != nil {
		m, err = c.reg.ResolveByType(target)
	} else {
		if e.Key == nil || len(e.Key.Path) == 0 {
			return nil, errors.NewKeySchemaMismatchError("entity has no key to resolve its kind")
		}
		m, err = c.reg.ResolveByKind(e.Key.Kind())
	}
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(m.Type)
	if err := c.decodeStruct(e, m, ptr.Elem()); err != nil {
		return nil, err
	}
	return ptr.Interface(), nil
}

// DecodeInto decodes a wire entity into dst, a non-nil pointer to a
// registered struct. dst is left unchanged when decoding fails.
func (c *Codec) DecodeInto(e *storagemodels.Entity, dst any) error {
	if e == nil {
		return errors.NewValidationError("entity", "entity is nil")
	}
	v, err := targetValue(dst)
	if err != nil {
		return err
	}
	m, err := c.reg.ResolveByType(v.Type())
	if err != nil {
		return err
	}
	// ignored fields keep their values
	tmp := reflect.New(v.Type()).Elem()
	tmp.Set(v)
	if err := c.decodeStruct(e, m, tmp); err != nil {
		return err
	}
	v.Set(tmp)
	return nil
}

// DecodeAs decodes a wire entity into a new T.
func DecodeAs[T any](c *Codec, e *storagemodels.Entity) (*T, error) {
	out := new(T)
	if err := c.DecodeInto(e, out); err != nil {
		return nil, err
	}
	return out, nil
}

func partition(project, namespace string) storagemodels.PartitionID {
	return storagemodels.PartitionID{ProjectID: project, NamespaceID: namespace}
}

// structValue dereferences obj down to a struct value.
func structValue(obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, errors.NewValidationError("obj", "nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.NewValidationError("obj", fmt.Sprintf("expected a struct, got %T", obj))
	}
	return v, nil
}

// targetValue returns the settable struct dst points to.
func targetValue(dst any) (reflect.Value, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, errors.NewValidationError("dst", fmt.Sprintf("expected a non-nil pointer, got %T", dst))
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.NewValidationError("dst", fmt.Sprintf("expected a pointer to a struct, got %T", dst))
	}
	return v, nil
}
