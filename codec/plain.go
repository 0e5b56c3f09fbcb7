/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package codec

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
)

// encodePlainMap encodes a map[string]any, dispatching on each value's
// runtime type.
func encodePlainMap(v reflect.Value) (storagemodels.Value, error) {
	e := &storagemodels.Entity{Properties: make(map[string]storagemodels.Value, v.Len())}
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		val, err := EncodePlain(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		e.Properties[k] = val
	}
	return &storagemodels.ValueMemberEntity{Value: e}, nil
}

// EncodePlain converts a free-form Go value to a wire value.
func EncodePlain(x any) (storagemodels.Value, error) {
	switch tv := x.(type) {
	case nil:
		return &storagemodels.ValueMemberNull{}, nil
	case storagemodels.Value:
		return tv, nil
	case bool:
		return &storagemodels.ValueMemberBool{Value: tv}, nil
	case int:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case int8:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case int16:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case int32:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case int64:
		return &storagemodels.ValueMemberInteger{Value: tv}, nil
	case uint8:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case uint16:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case uint32:
		return &storagemodels.ValueMemberInteger{Value: int64(tv)}, nil
	case uint:
		return plainUint(uint64(tv))
	case uint64:
		return plainUint(tv)
	case float32:
		return &storagemodels.ValueMemberDouble{Value: float64(tv)}, nil
	case float64:
		return &storagemodels.ValueMemberDouble{Value: tv}, nil
	case string:
		return &storagemodels.ValueMemberString{Value: tv}, nil
	case []byte:
		return &storagemodels.ValueMemberBlob{Value: append([]byte{}, tv...)}, nil
	case storagemodels.GeoPoint:
		return &storagemodels.ValueMemberGeoPoint{Value: tv}, nil
	case time.Time:
		return &storagemodels.ValueMemberTimestamp{Value: storagemodels.TimestampOf(tv.UTC().Truncate(Resolution))}, nil
	case civil.DateTime:
		return EncodePlain(tv.In(time.UTC))
	case civil.Date:
		return EncodePlain(tv.In(time.UTC))
	case *storagemodels.Key:
		return &storagemodels.ValueMemberKey{Value: tv}, nil
	case []any:
		values := make([]storagemodels.Value, len(tv))
		for i, item := range tv {
			val, err := EncodePlain(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			values[i] = val
		}
		return &storagemodels.ValueMemberArray{Value: values}, nil
	case map[string]any:
		return encodePlainMap(reflect.ValueOf(tv))
	}

	// typed slices and string-keyed maps
	v := reflect.ValueOf(x)
	switch {
	case v.Kind() == reflect.Slice:
		items := make([]any, v.Len())
		for i := range items {
			items[i] = v.Index(i).Interface()
		}
		return EncodePlain(items)
	case v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String:
		m := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodePlainMap(reflect.ValueOf(m))
	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			return &storagemodels.ValueMemberNull{}, nil
		}
		return EncodePlain(v.Elem().Interface())
	}
	return nil, errors.NewValidationError("value", fmt.Sprintf("unsupported plain value type %T", x))
}

func plainUint(u uint64) (storagemodels.Value, error) {
	if u > math.MaxInt64 {
		return nil, errors.NewValidationError("value", fmt.Sprintf("unsigned value %d overflows int64", u))
	}
	return &storagemodels.ValueMemberInteger{Value: int64(u)}, nil
}

// DecodePlain converts a wire value to its natural Go value: nil, bool,
// int64, float64, string, []byte, GeoPoint, time.Time, *Key, []any or
// map[string]any.
func DecodePlain(val storagemodels.Value) any {
	switch tv := val.(type) {
	case nil, *storagemodels.ValueMemberNull:
		return nil
	case *storagemodels.ValueMemberBool:
		return tv.Value
	case *storagemodels.ValueMemberInteger:
		return tv.Value
	case *storagemodels.ValueMemberDouble:
		return tv.Value
	case *storagemodels.ValueMemberString:
		return tv.Value
	case *storagemodels.ValueMemberBlob:
		return append([]byte{}, tv.Value...)
	case *storagemodels.ValueMemberGeoPoint:
		return tv.Value
	case *storagemodels.ValueMemberTimestamp:
		return tv.Value.Time()
	case *storagemodels.ValueMemberKey:
		return tv.Value
	case *storagemodels.ValueMemberArray:
		out := make([]any, len(tv.Value))
		for i, item := range tv.Value {
			out[i] = DecodePlain(item)
		}
		return out
	case *storagemodels.ValueMemberEntity:
		if tv.Value == nil {
			return map[string]any{}
		}
		return decodePlainEntity(tv.Value)
	}
	return nil
}

func decodePlainEntity(e *storagemodels.Entity) map[string]any {
	out := make(map[string]any, len(e.Properties))
	for k, item := range e.Properties {
		out[k] = DecodePlain(item)
	}
	return out
}
