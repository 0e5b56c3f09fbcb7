/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"bytes"
	"cmp"
	"strings"
)

// typeRank orders values of different types the way the store does.
func typeRank(v Value) int {
	switch v.(type) {
	case nil, *ValueMemberNull:
		return 0
	case *ValueMemberInteger, *ValueMemberTimestamp:
		return 1
	case *ValueMemberBool:
		return 2
	case *ValueMemberString, *ValueMemberBlob:
		return 3
	case *ValueMemberDouble:
		return 4
	case *ValueMemberGeoPoint:
		return 5
	case *ValueMemberKey:
		return 6
	}
	return 7
}

// CompareValues orders two scalar values. Values of different types order
// by type. Arrays and entities are not comparable and report ok=false.
func CompareValues(a, b Value) (c int, ok bool) {
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		if ra == 7 || rb == 7 {
			return 0, false
		}
		return cmp.Compare(ra, rb), true
	}
	switch av := a.(type) {
	case nil, *ValueMemberNull:
		return 0, true
	case *ValueMemberInteger:
		switch bv := b.(type) {
		case *ValueMemberInteger:
			return cmp.Compare(av.Value, bv.Value), true
		case *ValueMemberTimestamp:
			return -1, true
		}
	case *ValueMemberTimestamp:
		switch bv := b.(type) {
		case *ValueMemberTimestamp:
			if c := cmp.Compare(av.Value.Seconds, bv.Value.Seconds); c != 0 {
				return c, true
			}
			return cmp.Compare(av.Value.Nanos, bv.Value.Nanos), true
		case *ValueMemberInteger:
			return 1, true
		}
	case *ValueMemberBool:
		bv := b.(*ValueMemberBool)
		switch {
		case av.Value == bv.Value:
			return 0, true
		case !av.Value:
			return -1, true
		}
		return 1, true
	case *ValueMemberString:
		switch bv := b.(type) {
		case *ValueMemberString:
			return strings.Compare(av.Value, bv.Value), true
		case *ValueMemberBlob:
			return bytes.Compare([]byte(av.Value), bv.Value), true
		}
	case *ValueMemberBlob:
		switch bv := b.(type) {
		case *ValueMemberBlob:
			return bytes.Compare(av.Value, bv.Value), true
		case *ValueMemberString:
			return bytes.Compare(av.Value, []byte(bv.Value)), true
		}
	case *ValueMemberDouble:
		return cmp.Compare(av.Value, b.(*ValueMemberDouble).Value), true
	case *ValueMemberGeoPoint:
		bv := b.(*ValueMemberGeoPoint)
		if c := cmp.Compare(av.Value.Latitude, bv.Value.Latitude); c != 0 {
			return c, true
		}
		return cmp.Compare(av.Value.Longitude, bv.Value.Longitude), true
	case *ValueMemberKey:
		return CompareKeys(av.Value, b.(*ValueMemberKey).Value), true
	}
	return 0, false
}

// PropertyValue returns the named property of e. KeyProperty names the key.
func PropertyValue(e *Entity, name string) (Value, bool) {
	if name == KeyProperty {
		return &ValueMemberKey{Value: e.Key}, e.Key != nil
	}
	v, ok := e.Properties[name]
	return v, ok
}

// Matches reports whether e satisfies f. An array property matches when any
// of its elements does; a missing property never matches.
func (f Filter) Matches(e *Entity) bool {
	v, ok := PropertyValue(e, f.Property)
	if !ok {
		return false
	}
	values := []Value{v}
	if arr, isArr := v.(*ValueMemberArray); isArr {
		values = arr.Value
	}
	for _, item := range values {
		if f.matchValue(item) {
			return true
		}
	}
	return false
}

func (f Filter) matchValue(v Value) bool {
	if TypeName(v) != TypeName(f.Value) {
		return false
	}
	c, ok := CompareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case Equal:
		return c == 0
	case LessThan:
		return c < 0
	case LessThanOrEqual:
		return c <= 0
	case GreaterThan:
		return c > 0
	case GreaterThanOrEqual:
		return c >= 0
	}
	return false
}

// MatchFilters reports whether e satisfies every filter.
func MatchFilters(e *Entity, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(e) {
			return false
		}
	}
	return true
}
