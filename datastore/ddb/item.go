/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/kindstore/storagemodels"
)

// Item attribute names.
const (
	attrPK      = "PK"
	attrSK      = "SK"
	attrKind    = "Kind"
	attrProps   = "Props"
	attrVersion = "Version"
	attrNext    = "Next"
)

// Tagged value attribute names: the wire type, the value and the
// exclude-from-indexes flag.
const (
	tagType     = "t"
	tagValue    = "v"
	tagExcluded = "x"
)

// counterPK is the partition holding the id allocation counters.
const counterPK = "#counter"

// escape makes s safe to embed in a partition or sort key.
func escape(s string) string {
	return strings.NewReplacer("%", "%25", "#", "%23", "/", "%2F", ":", "%3A").Replace(s)
}

func unescape(s string) string {
	return strings.NewReplacer("%3A", ":", "%2F", "/", "%23", "#", "%25", "%").Replace(s)
}

// partitionKey is the PK of every entity of kind in namespace.
func partitionKey(namespace, kind string) string {
	return escape(namespace) + "#" + escape(kind)
}

// encodePath renders a key path as a sort key. Ids sort before names and
// numerically among themselves; a child sorts right after its parent.
func encodePath(path []storagemodels.PathElement) (string, error) {
	var b strings.Builder
	for i, p := range path {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(escape(p.Kind))
		switch {
		case p.HasName():
			b.WriteString(":n:")
			b.WriteString(escape(p.Name))
		case p.HasID():
			b.WriteString(":i:")
			b.WriteString(fmt.Sprintf("%016x", uint64(p.ID)^(1<<63)))
		default:
			return "", fmt.Errorf("path element %d of kind %s is incomplete", i, p.Kind)
		}
	}
	return b.String(), nil
}

func decodePath(sk string) ([]storagemodels.PathElement, error) {
	if sk == "" {
		return nil, fmt.Errorf("empty sort key")
	}
	parts := strings.Split(sk, "/")
	path := make([]storagemodels.PathElement, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(part, ":", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed path element %q", part)
		}
		kind := unescape(fields[0])
		switch fields[1] {
		case "n":
			path = append(path, storagemodels.NameElement(kind, unescape(fields[2])))
		case "i":
			u, err := strconv.ParseUint(fields[2], 16, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed id in %q: %w", part, err)
			}
			path = append(path, storagemodels.IDElement(kind, int64(u^(1<<63))))
		default:
			return nil, fmt.Errorf("malformed path element %q", part)
		}
	}
	return path, nil
}

// itemKey returns the primary key attributes of key.
func itemKey(key *storagemodels.Key) (map[string]types.AttributeValue, error) {
	if key == nil || len(key.Path) == 0 {
		return nil, fmt.Errorf("key has no path")
	}
	sk, err := encodePath(key.Path)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: partitionKey(key.Partition.NamespaceID, key.Kind())},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}, nil
}

// encodeItem converts a complete-keyed entity to a table item.
func encodeItem(e *storagemodels.Entity, version int64) (map[string]types.AttributeValue, error) {
	item, err := itemKey(e.Key)
	if err != nil {
		return nil, err
	}
	props, err := encodeProps(e.Properties)
	if err != nil {
		return nil, err
	}
	item[attrKind] = &types.AttributeValueMemberS{Value: e.Kind()}
	item[attrProps] = props
	item[attrVersion] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}
	return item, nil
}

// decodeItem converts a table item back to an entity.
func decodeItem(item map[string]types.AttributeValue, project string) (*storagemodels.Entity, error) {
	var pk, sk string
	if err := attributevalue.Unmarshal(item[attrPK], &pk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", attrPK, err)
	}
	if err := attributevalue.Unmarshal(item[attrSK], &sk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", attrSK, err)
	}
	ns, _, ok := strings.Cut(pk, "#")
	if !ok {
		return nil, fmt.Errorf("malformed partition key %q", pk)
	}
	path, err := decodePath(sk)
	if err != nil {
		return nil, err
	}
	if _, err := itemVersion(item); err != nil {
		return nil, err
	}
	e := storagemodels.NewEntity(storagemodels.NewKey(storagemodels.PartitionID{
		ProjectID:   project,
		NamespaceID: unescape(ns),
	}, path...))

	if props, ok := item[attrProps].(*types.AttributeValueMemberM); ok {
		e.Properties, err = decodeProps(props, project)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// itemVersion reads the commit version of an item; items without one are
// version 0.
func itemVersion(item map[string]types.AttributeValue) (int64, error) {
	var v int64
	if av, ok := item[attrVersion]; ok {
		if err := attributevalue.Unmarshal(av, &v); err != nil {
			return 0, fmt.Errorf("failed to unmarshal %s: %w", attrVersion, err)
		}
	}
	return v, nil
}

func encodeProps(props map[string]storagemodels.Value) (*types.AttributeValueMemberM, error) {
	m := make(map[string]types.AttributeValue, len(props))
	for name, v := range props {
		av, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		m[name] = av
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

func decodeProps(m *types.AttributeValueMemberM, project string) (map[string]storagemodels.Value, error) {
	props := make(map[string]storagemodels.Value, len(m.Value))
	for name, av := range m.Value {
		v, err := decodeValue(av, project)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		props[name] = v
	}
	return props, nil
}

// keyAttr is the stored form of a key value.
type keyAttr struct {
	Namespace string `dynamodbav:"ns"`
	Path      string `dynamodbav:"p"`
}

// encodeValue renders v as a tagged attribute map {t, v, x}.
func encodeValue(v storagemodels.Value) (types.AttributeValue, error) {
	m := map[string]types.AttributeValue{
		tagType: &types.AttributeValueMemberS{Value: storagemodels.TypeName(v)},
	}
	if v != nil && v.ExcludedFromIndexes() {
		m[tagExcluded] = &types.AttributeValueMemberBOOL{Value: true}
	}

	var (
		av  types.AttributeValue
		err error
	)
	switch tv := v.(type) {
	case nil, *storagemodels.ValueMemberNull:
	case *storagemodels.ValueMemberBool:
		av, err = attributevalue.Marshal(tv.Value)
	case *storagemodels.ValueMemberInteger:
		av, err = attributevalue.Marshal(tv.Value)
	case *storagemodels.ValueMemberDouble:
		if math.IsNaN(tv.Value) || math.IsInf(tv.Value, 0) {
			av = &types.AttributeValueMemberS{Value: strconv.FormatFloat(tv.Value, 'g', -1, 64)}
		} else {
			av = &types.AttributeValueMemberN{Value: strconv.FormatFloat(tv.Value, 'g', -1, 64)}
		}
	case *storagemodels.ValueMemberString:
		av = &types.AttributeValueMemberS{Value: tv.Value}
	case *storagemodels.ValueMemberBlob:
		av = &types.AttributeValueMemberB{Value: tv.Value}
	case *storagemodels.ValueMemberGeoPoint:
		av, err = attributevalue.Marshal(tv.Value)
	case *storagemodels.ValueMemberTimestamp:
		av, err = attributevalue.Marshal(tv.Value)
	case *storagemodels.ValueMemberKey:
		var k keyAttr
		k, err = encodeKeyAttr(tv.Value)
		if err == nil {
			av, err = attributevalue.Marshal(k)
		}
	case *storagemodels.ValueMemberArray:
		items := make([]types.AttributeValue, len(tv.Value))
		for i, item := range tv.Value {
			if items[i], err = encodeValue(item); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		av = &types.AttributeValueMemberL{Value: items}
	case *storagemodels.ValueMemberEntity:
		av, err = encodeEmbedded(tv.Value)
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	if err != nil {
		return nil, err
	}
	if av != nil {
		m[tagValue] = av
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

func encodeKeyAttr(k *storagemodels.Key) (keyAttr, error) {
	if k == nil {
		return keyAttr{}, fmt.Errorf("key value is nil")
	}
	path, err := encodePath(k.Path)
	if err != nil {
		return keyAttr{}, err
	}
	return keyAttr{Namespace: k.Partition.NamespaceID, Path: path}, nil
}

// encodeEmbedded stores an embedded entity as {k?, p}.
func encodeEmbedded(e *storagemodels.Entity) (types.AttributeValue, error) {
	if e == nil {
		return nil, fmt.Errorf("entity value is nil")
	}
	props, err := encodeProps(e.Properties)
	if err != nil {
		return nil, err
	}
	m := map[string]types.AttributeValue{"p": props}
	if e.Key != nil {
		k, err := encodeKeyAttr(e.Key)
		if err != nil {
			return nil, err
		}
		if m["k"], err = attributevalue.Marshal(k); err != nil {
			return nil, err
		}
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

func decodeValue(av types.AttributeValue, project string) (storagemodels.Value, error) {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("expected tagged value, got %T", av)
	}
	var typeName string
	if err := attributevalue.Unmarshal(m.Value[tagType], &typeName); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value type: %w", err)
	}
	raw := m.Value[tagValue]

	var (
		v   storagemodels.Value
		err error
	)
	switch typeName {
	case storagemodels.TypeNull:
		v = &storagemodels.ValueMemberNull{}
	case storagemodels.TypeBool:
		b := &storagemodels.ValueMemberBool{}
		err = attributevalue.Unmarshal(raw, &b.Value)
		v = b
	case storagemodels.TypeInteger:
		i := &storagemodels.ValueMemberInteger{}
		err = attributevalue.Unmarshal(raw, &i.Value)
		v = i
	case storagemodels.TypeDouble:
		d := &storagemodels.ValueMemberDouble{}
		switch tv := raw.(type) {
		case *types.AttributeValueMemberN:
			d.Value, err = strconv.ParseFloat(tv.Value, 64)
		case *types.AttributeValueMemberS:
			d.Value, err = strconv.ParseFloat(tv.Value, 64)
		default:
			err = fmt.Errorf("malformed double %T", raw)
		}
		v = d
	case storagemodels.TypeString:
		s := &storagemodels.ValueMemberString{}
		err = attributevalue.Unmarshal(raw, &s.Value)
		v = s
	case storagemodels.TypeBlob:
		b := &storagemodels.ValueMemberBlob{}
		if bv, ok := raw.(*types.AttributeValueMemberB); ok {
			b.Value = bv.Value
		} else if raw != nil {
			err = fmt.Errorf("malformed blob %T", raw)
		}
		v = b
	case storagemodels.TypeGeoPoint:
		g := &storagemodels.ValueMemberGeoPoint{}
		err = attributevalue.Unmarshal(raw, &g.Value)
		v = g
	case storagemodels.TypeTimestamp:
		ts := &storagemodels.ValueMemberTimestamp{}
		err = attributevalue.Unmarshal(raw, &ts.Value)
		v = ts
	case storagemodels.TypeKey:
		k := &storagemodels.ValueMemberKey{}
		k.Value, err = decodeKeyAttr(raw, project)
		v = k
	case storagemodels.TypeArray:
		arr := &storagemodels.ValueMemberArray{}
		if l, ok := raw.(*types.AttributeValueMemberL); ok {
			arr.Value = make([]storagemodels.Value, len(l.Value))
			for i, item := range l.Value {
				if arr.Value[i], err = decodeValue(item, project); err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
			}
		}
		v = arr
	case storagemodels.TypeEntity:
		ent := &storagemodels.ValueMemberEntity{}
		ent.Value, err = decodeEmbedded(raw, project)
		v = ent
	default:
		return nil, fmt.Errorf("unknown value type %q", typeName)
	}
	if err != nil {
		return nil, fmt.Errorf("malformed %s: %w", typeName, err)
	}

	if x, ok := m.Value[tagExcluded].(*types.AttributeValueMemberBOOL); ok && x.Value {
		v.SetExcludedFromIndexes(true)
	}
	return v, nil
}

func decodeKeyAttr(av types.AttributeValue, project string) (*storagemodels.Key, error) {
	var k keyAttr
	if err := attributevalue.Unmarshal(av, &k); err != nil {
		return nil, err
	}
	path, err := decodePath(k.Path)
	if err != nil {
		return nil, err
	}
	return storagemodels.NewKey(storagemodels.PartitionID{ProjectID: project, NamespaceID: k.Namespace}, path...), nil
}

func decodeEmbedded(av types.AttributeValue, project string) (*storagemodels.Entity, error) {
	m, ok := av.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", av)
	}
	e := &storagemodels.Entity{Properties: map[string]storagemodels.Value{}}
	if k, ok := m.Value["k"]; ok {
		key, err := decodeKeyAttr(k, project)
		if err != nil {
			return nil, err
		}
		e.Key = key
	}
	if p, ok := m.Value["p"].(*types.AttributeValueMemberM); ok {
		props, err := decodeProps(p, project)
		if err != nil {
			return nil, err
		}
		e.Properties = props
	}
	return e, nil
}
