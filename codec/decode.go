/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"fmt"
	"reflect"

	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/schema"
	"github.com/suparena/kindstore/storagemodels"
)

func (c *Codec) decodeStruct(e *storagemodels.Entity, m *schema.Model, v reflect.Value) error {
	if m.Key != nil {
		if err := decodeKey(e.Key, m.Key, v); err != nil {
			return err
		}
	}
	for _, prop := range m.Properties {
		// absent and Null decode alike
		val := e.Properties[prop.Base().Name]
		if err := c.decodeProperty(val, prop, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) decodeProperty(val storagemodels.Value, prop schema.Property, v reflect.Value) error {
	base := prop.Base()
	fv := base.Accessor.Field(v)

	if storagemodels.IsNull(val) {
		return decodeNull(prop, fv)
	}

	if rp, ok := prop.(*schema.ReferenceProperty); ok {
		kv, ok := val.(*storagemodels.ValueMemberKey)
		if !ok {
			return errors.NewWireKindMismatchError(base.Name, storagemodels.TypeKey, storagemodels.TypeName(val))
		}
		return decodeKey(kv.Value, rp.Key, v)
	}

	if !base.Optional {
		return c.decodeValue(val, prop, fv)
	}
	nv := reflect.New(fv.Type().Elem())
	if err := c.decodeValue(val, prop, nv.Elem()); err != nil {
		return err
	}
	fv.Set(nv)
	return nil
}

// decodeNull applies the Null rules: collections become empty, behind a
// pointer when optional; optional scalars become nil; anything else is
// missing.
func decodeNull(prop schema.Property, fv reflect.Value) error {
	base := prop.Base()
	t := fv.Type()
	if base.Optional {
		t = t.Elem()
	}
	var empty reflect.Value
	switch {
	case base.Container == schema.ContainerList:
		empty = reflect.MakeSlice(t, 0, 0)
	case base.Container == schema.ContainerMap || isPlainMap(prop):
		empty = reflect.MakeMap(t)
	case base.Optional:
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	default:
		return errors.NewRequiredFieldMissingError(base.Name)
	}
	if base.Optional {
		p := reflect.New(t)
		p.Elem().Set(empty)
		empty = p
	}
	fv.Set(empty)
	return nil
}

// isPlainMap reports whether prop is a single plain map field, optional or
// not.
func isPlainMap(prop schema.Property) bool {
	ep, ok := prop.(*schema.EntityProperty)
	return ok && ep.Nested == schema.NestedPlainMap && ep.Container == schema.ContainerNone
}

func (c *Codec) decodeValue(val storagemodels.Value, prop schema.Property, dst reflect.Value) error {
	switch prop.Base().Container {
	case schema.ContainerList:
		return c.decodeList(val, prop, dst)
	case schema.ContainerMap:
		return c.decodeMap(val, prop, dst)
	}
	return c.decodeLeaf(val, prop, dst)
}

func (c *Codec) decodeList(val storagemodels.Value, prop schema.Property, dst reflect.Value) error {
	base := prop.Base()
	arr, ok := val.(*storagemodels.ValueMemberArray)
	if !ok {
		return errors.NewWireKindMismatchError(base.Name, storagemodels.TypeArray, storagemodels.TypeName(val))
	}
	out := reflect.MakeSlice(dst.Type(), len(arr.Value), len(arr.Value))
	for i, item := range arr.Value {
		if err := c.decodeElem(item, prop, out.Index(i)); err != nil {
			return fmt.Errorf("%s[%d]: %w", base.Name, i, err)
		}
	}
	dst.Set(out)
	return nil
}

func (c *Codec) decodeMap(val storagemodels.Value, prop schema.Property, dst reflect.Value) error {
	base := prop.Base()
	ev, ok := val.(*storagemodels.ValueMemberEntity)
	if !ok {
		return errors.NewWireKindMismatchError(base.Name, storagemodels.TypeEntity, storagemodels.TypeName(val))
	}
	t := dst.Type()
	out := reflect.MakeMap(t)
	if ev.Value != nil {
		for k, item := range ev.Value.Properties {
			elem := reflect.New(t.Elem()).Elem()
			if err := c.decodeElem(item, prop, elem); err != nil {
				return fmt.Errorf("%s[%q]: %w", base.Name, k, err)
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
	}
	dst.Set(out)
	return nil
}

func (c *Codec) decodeElem(item storagemodels.Value, prop schema.Property, dst reflect.Value) error {
	if !prop.Base().ElemOptional {
		return c.decodeLeaf(item, prop, dst)
	}
	if storagemodels.IsNull(item) {
		return nil
	}
	nv := reflect.New(dst.Type().Elem())
	if err := c.decodeLeaf(item, prop, nv.Elem()); err != nil {
		return err
	}
	dst.Set(nv)
	return nil
}

func (c *Codec) decodeLeaf(val storagemodels.Value, prop schema.Property, dst reflect.Value) error {
	switch pt := prop.(type) {
	case *schema.AtomicProperty:
		return decodeAtomic(val, pt, dst)
	case *schema.EntityProperty:
		if pt.Nested == schema.NestedPlainMap && storagemodels.IsNull(val) {
			dst.Set(reflect.MakeMap(dst.Type()))
			return nil
		}
		ev, ok := val.(*storagemodels.ValueMemberEntity)
		if !ok {
			return errors.NewWireKindMismatchError(pt.Name, storagemodels.TypeEntity, storagemodels.TypeName(val))
		}
		e := ev.Value
		if e == nil {
			e = &storagemodels.Entity{}
		}
		if pt.Nested == schema.NestedPlainMap {
			dst.Set(reflect.ValueOf(decodePlainEntity(e)).Convert(dst.Type()))
			return nil
		}
		m, err := c.reg.ResolveByType(pt.NestedType)
		if err != nil {
			return err
		}
		return c.decodeStruct(e, m, dst)
	}
	return fmt.Errorf("property %s: unexpected variant %T", prop.Base().Name, prop)
}

func decodeAtomic(val storagemodels.Value, prop *schema.AtomicProperty, dst reflect.Value) error {
	expected := prop.Kind.WireType()
	if got := storagemodels.TypeName(val); got != expected {
		return errors.NewWireKindMismatchError(prop.Name, expected, got)
	}
	switch tv := val.(type) {
	case *storagemodels.ValueMemberBool:
		dst.SetBool(tv.Value)
	case *storagemodels.ValueMemberInteger:
		if !setInt(dst, tv.Value) {
			return errors.NewValidationError(prop.Name, fmt.Sprintf("value %d overflows %s", tv.Value, dst.Type()))
		}
	case *storagemodels.ValueMemberDouble:
		dst.SetFloat(tv.Value)
	case *storagemodels.ValueMemberString:
		dst.SetString(tv.Value)
	case *storagemodels.ValueMemberBlob:
		dst.SetBytes(append([]byte{}, tv.Value...))
	case *storagemodels.ValueMemberGeoPoint:
		dst.Set(reflect.ValueOf(tv.Value))
	case *storagemodels.ValueMemberTimestamp:
		if err := setTemporal(prop.Temporal, tv.Value, dst); err != nil {
			return fmt.Errorf("property %s: %w", prop.Name, err)
		}
	}
	if prop.EnumType != nil {
		if vv, ok := dst.Interface().(validator); ok && !vv.IsValid() {
			return errors.NewValidationError(prop.Name, fmt.Sprintf("invalid %s value %v", prop.EnumType, dst.Interface()))
		}
	}
	return nil
}
