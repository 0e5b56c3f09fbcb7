/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"reflect"

	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/schema"
	"github.com/suparena/kindstore/storagemodels"
)

// EncodeKey builds the key described by ks from the fields of obj.
func (c *Codec) EncodeKey(obj any, ks *schema.KeySchema, p storagemodels.PartitionID) (*storagemodels.Key, error) {
	v, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	return encodeKey(v, ks, p)
}

// DecodeKey writes the ids of key into the fields of dst named by ks.
func (c *Codec) DecodeKey(key *storagemodels.Key, ks *schema.KeySchema, dst any) error {
	v, err := targetValue(dst)
	if err != nil {
		return err
	}
	return decodeKey(key, ks, v)
}

// encodeKey emits one path element per segment. A zero or nil id marks the
// element incomplete, which only the last segment may be.
func encodeKey(v reflect.Value, ks *schema.KeySchema, p storagemodels.PartitionID) (*storagemodels.Key, error) {
	key := &storagemodels.Key{Partition: p, Path: make([]storagemodels.PathElement, 0, ks.Len())}
	last := ks.Len() - 1
	for i, seg := range ks.Path {
		el := storagemodels.PathElement{Kind: seg.Kind}
		fv := seg.Accessor.Field(v)
		present := true
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				present = false
			} else {
				fv = fv.Elem()
			}
		}
		if present {
			switch seg.IDType {
			case schema.IntID:
				el.ID = intOf(fv)
				present = el.ID != 0
			case schema.StringID:
				el.Name = fv.String()
				present = el.Name != ""
			}
		}
		if !present && i != last {
			return nil, errors.NewKeySchemaMismatchError("key field %s for kind %s is not set", seg.Field, seg.Kind)
		}
		key.Path = append(key.Path, el)
	}
	return key, nil
}

func decodeKey(key *storagemodels.Key, ks *schema.KeySchema, v reflect.Value) error {
	if key == nil {
		return errors.NewKeySchemaMismatchError("entity has no key")
	}
	if len(key.Path) != ks.Len() {
		return errors.NewKeySchemaMismatchError("path length: expected %d, got %d", ks.Len(), len(key.Path))
	}
	last := ks.Len() - 1
	for i, seg := range ks.Path {
		el := key.Path[i]
		if el.Kind != seg.Kind {
			return errors.NewKeySchemaMismatchError("path kind at %d: expected %s, got %s", i, seg.Kind, el.Kind)
		}
		if el.Incomplete() {
			if i == last {
				continue
			}
			return errors.NewKeySchemaMismatchError("path element %d (%s) is incomplete", i, seg.Kind)
		}
		fv := seg.Accessor.Field(v)
		if fv.Kind() == reflect.Pointer {
			nv := reflect.New(fv.Type().Elem())
			fv.Set(nv)
			fv = nv.Elem()
		}
		switch seg.IDType {
		case schema.IntID:
			if !el.HasID() {
				return errors.NewKeySchemaMismatchError("path element %d (%s): expected integer id, got name %q", i, seg.Kind, el.Name)
			}
			if !setInt(fv, el.ID) {
				return errors.NewKeySchemaMismatchError("path element %d (%s): id %d overflows %s", i, seg.Kind, el.ID, fv.Type())
			}
		case schema.StringID:
			if !el.HasName() {
				return errors.NewKeySchemaMismatchError("path element %d (%s): expected name, got integer id %d", i, seg.Kind, el.ID)
			}
			fv.SetString(el.Name)
		}
	}
	return nil
}

// intOf reads a signed or unsigned integer field as int64.
func intOf(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	}
	return v.Int()
}

// setInt stores n into an integer field, reporting false on overflow.
func setInt(v reflect.Value, n int64) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || v.OverflowUint(uint64(n)) {
			return false
		}
		v.SetUint(uint64(n))
	default:
		if v.OverflowInt(n) {
			return false
		}
		v.SetInt(n)
	}
	return true
}
