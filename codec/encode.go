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

// validator is implemented by enum types that can reject unknown members.
type validator interface {
	IsValid() bool
}

func (c *Codec) encodeStruct(v reflect.Value, m *schema.Model, p storagemodels.PartitionID) (*storagemodels.Entity, error) {
	e := &storagemodels.Entity{Properties: make(map[string]storagemodels.Value, len(m.Properties))}
	if m.Key != nil {
		key, err := encodeKey(v, m.Key, p)
		if err != nil {
			return nil, err
		}
		e.Key = key
	}
	for _, prop := range m.Properties {
		val, err := c.encodeProperty(v, prop, p)
		if err != nil {
			return nil, err
		}
		e.Properties[prop.Base().Name] = val
	}
	return e, nil
}

func (c *Codec) encodeProperty(v reflect.Value, prop schema.Property, p storagemodels.PartitionID) (storagemodels.Value, error) {
	base := prop.Base()
	fv := base.Accessor.Field(v)

	var val storagemodels.Value
	switch {
	case isNil(fv) || (isPlainMapProperty(prop) && fv.Len() == 0):
		if !base.Optional && base.Container == schema.ContainerNone && !isPlainMapProperty(prop) {
			return nil, errors.NewRequiredFieldMissingError(base.Name)
		}
		val = &storagemodels.ValueMemberNull{}
	default:
		if rp, ok := prop.(*schema.ReferenceProperty); ok {
			key, err := encodeKey(v, rp.Key, p)
			if err != nil {
				return nil, err
			}
			val = &storagemodels.ValueMemberKey{Value: key}
			break
		}
		if fv.Kind() == reflect.Pointer {
			fv = fv.Elem()
		}
		var err error
		switch base.Container {
		case schema.ContainerList:
			val, err = c.encodeList(fv, prop, p)
		case schema.ContainerMap:
			val, err = c.encodeMap(fv, prop, p)
		default:
			val, err = c.encodeLeaf(fv, prop, p)
		}
		if err != nil {
			return nil, err
		}
	}

	if base.ExcludeFromIndexes && base.Container == schema.ContainerNone {
		val.SetExcludedFromIndexes(true)
	}
	return val, nil
}

func (c *Codec) encodeList(fv reflect.Value, prop schema.Property, p storagemodels.PartitionID) (storagemodels.Value, error) {
	base := prop.Base()
	values := make([]storagemodels.Value, fv.Len())
	for i := range values {
		item, err := c.encodeElem(fv.Index(i), prop, p)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", base.Name, i, err)
		}
		values[i] = item
	}
	return &storagemodels.ValueMemberArray{Value: values}, nil
}

func (c *Codec) encodeMap(fv reflect.Value, prop schema.Property, p storagemodels.PartitionID) (storagemodels.Value, error) {
	base := prop.Base()
	if fv.Len() == 0 {
		return &storagemodels.ValueMemberNull{}, nil
	}
	e := &storagemodels.Entity{Properties: make(map[string]storagemodels.Value, fv.Len())}
	iter := fv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		item, err := c.encodeElem(iter.Value(), prop, p)
		if err != nil {
			return nil, fmt.Errorf("%s[%q]: %w", base.Name, k, err)
		}
		e.Properties[k] = item
	}
	return &storagemodels.ValueMemberEntity{Value: e}, nil
}

// encodeElem encodes one list or map element, flagging it when the property
// is excluded from indexes.
func (c *Codec) encodeElem(ev reflect.Value, prop schema.Property, p storagemodels.PartitionID) (storagemodels.Value, error) {
	base := prop.Base()
	var (
		item storagemodels.Value
		err  error
	)
	if base.ElemOptional && ev.IsNil() {
		item = &storagemodels.ValueMemberNull{}
	} else {
		if base.ElemOptional {
			ev = ev.Elem()
		}
		item, err = c.encodeLeaf(ev, prop, p)
		if err != nil {
			return nil, err
		}
	}
	if base.ExcludeFromIndexes {
		item.SetExcludedFromIndexes(true)
	}
	return item, nil
}

func (c *Codec) encodeLeaf(v reflect.Value, prop schema.Property, p storagemodels.PartitionID) (storagemodels.Value, error) {
	switch pt := prop.(type) {
	case *schema.AtomicProperty:
		return encodeAtomic(v, pt)
	case *schema.EntityProperty:
		if pt.Nested == schema.NestedPlainMap {
			if v.Len() == 0 {
				return &storagemodels.ValueMemberNull{}, nil
			}
			return encodePlainMap(v)
		}
		m, err := c.reg.ResolveByType(pt.NestedType)
		if err != nil {
			return nil, err
		}
		e, err := c.encodeStruct(v, m, p)
		if err != nil {
			return nil, err
		}
		return &storagemodels.ValueMemberEntity{Value: e}, nil
	}
	return nil, fmt.Errorf("property %s: unexpected variant %T", prop.Base().Name, prop)
}

func encodeAtomic(v reflect.Value, prop *schema.AtomicProperty) (storagemodels.Value, error) {
	if prop.EnumType != nil {
		if vv, ok := v.Interface().(validator); ok && !vv.IsValid() {
			return nil, errors.NewValidationError(prop.Name, fmt.Sprintf("invalid %s value %v", prop.EnumType, v.Interface()))
		}
	}
	switch prop.Kind {
	case schema.KindBool:
		return &storagemodels.ValueMemberBool{Value: v.Bool()}, nil
	case schema.KindInteger, schema.KindEnumInteger:
		return &storagemodels.ValueMemberInteger{Value: intOf(v)}, nil
	case schema.KindDouble:
		return &storagemodels.ValueMemberDouble{Value: v.Float()}, nil
	case schema.KindString, schema.KindEnumString:
		return &storagemodels.ValueMemberString{Value: v.String()}, nil
	case schema.KindBlob:
		return &storagemodels.ValueMemberBlob{Value: append([]byte{}, v.Bytes()...)}, nil
	case schema.KindGeoPoint:
		return &storagemodels.ValueMemberGeoPoint{Value: v.Interface().(storagemodels.GeoPoint)}, nil
	case schema.KindTimestamp:
		ts, err := toTimestamp(prop.Temporal, v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", prop.Name, err)
		}
		return &storagemodels.ValueMemberTimestamp{Value: ts}, nil
	}
	return nil, fmt.Errorf("property %s: unknown value kind %s", prop.Name, prop.Kind)
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return v.IsNil()
	case reflect.Slice:
		// nil []byte is an empty blob, a nil list an empty list
		return false
	}
	return false
}

func isPlainMapProperty(prop schema.Property) bool {
	ep, ok := prop.(*schema.EntityProperty)
	return ok && ep.Nested == schema.NestedPlainMap && ep.Container == schema.ContainerNone && !ep.Optional
}
