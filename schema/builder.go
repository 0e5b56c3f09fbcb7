/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"reflect"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-openapi/strfmt"
	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/storagemodels"
)

// TagName is the struct tag read by Build: `datastore:"name,noindex"`, or
// `datastore:"-"` to skip the field.
const TagName = "datastore"

var (
	timeType           = reflect.TypeOf(time.Time{})
	durationType       = reflect.TypeOf(time.Duration(0))
	civilDateTimeType  = reflect.TypeOf(civil.DateTime{})
	civilDateType      = reflect.TypeOf(civil.Date{})
	civilTimeType      = reflect.TypeOf(civil.Time{})
	strfmtDateTimeType = reflect.TypeOf(strfmt.DateTime{})
	strfmtDateType     = reflect.TypeOf(strfmt.Date{})
	strfmtDurationType = reflect.TypeOf(strfmt.Duration(0))
	geoPointType       = reflect.TypeOf(storagemodels.GeoPoint{})
	configurerType     = reflect.TypeOf((*Configurer)(nil)).Elem()
)

var temporals = map[reflect.Type]Temporal{
	timeType:           TemporalTime,
	civilDateTimeType:  TemporalDateTime,
	civilDateType:      TemporalDate,
	civilTimeType:      TemporalTimeOfDay,
	durationType:       TemporalDuration,
	strfmtDateTimeType: TemporalStrfmtDateTime,
	strfmtDateType:     TemporalStrfmtDate,
	strfmtDurationType: TemporalStrfmtDuration,
}

// ConfigOf returns the configuration a type declares through its
// DatastoreConfig method, if any.
func ConfigOf(t reflect.Type) (Config, bool) {
	if t.Implements(configurerType) {
		return reflect.Zero(t).Interface().(Configurer).DatastoreConfig(), true
	}
	if reflect.PointerTo(t).Implements(configurerType) {
		return reflect.New(t).Interface().(Configurer).DatastoreConfig(), true
	}
	return Config{}, false
}

// Build derives the model of struct type t. When cfg is nil the type's
// DatastoreConfig method is used, else the defaults (no key, no renames).
func Build(t reflect.Type, cfg *Config) (*Model, error) {
	if t == nil {
		return nil, errors.NewSchemaError("<nil>", "", "type is nil")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	typeName := t.String()
	if t.Kind() != reflect.Struct {
		return nil, errors.NewSchemaError(typeName, "", "not a struct type")
	}

	var conf Config
	if cfg != nil {
		conf = *cfg
	} else if c, ok := ConfigOf(t); ok {
		conf = c
	}

	b := &builder{
		t:        t,
		typeName: typeName,
		conf:     conf,
		fields:   make(map[string]reflect.StructField),
	}
	return b.build()
}

// MustBuild is like Build but panics on error.
func MustBuild(t reflect.Type, cfg *Config) *Model {
	m, err := Build(t, cfg)
	if err != nil {
		panic(err)
	}
	return m
}

type builder struct {
	t        reflect.Type
	typeName string
	conf     Config
	fields   map[string]reflect.StructField
	order    []string
}

func (b *builder) build() (*Model, error) {
	for i := 0; i < b.t.NumField(); i++ {
		f := b.t.Field(i)
		if !f.IsExported() {
			continue
		}
		b.fields[f.Name] = f
		b.order = append(b.order, f.Name)
	}
	if err := b.checkConfigFields(); err != nil {
		return nil, err
	}

	m := &Model{Type: b.t, byName: make(map[string]Property)}

	if len(b.conf.Key) > 0 {
		ks, err := b.keySchema(b.conf.Key)
		if err != nil {
			return nil, err
		}
		m.Key = ks
		m.Kind = ks.Kind()
	}

	excluded := make(map[string]bool, len(b.conf.ExcludeFromIndexes))
	for _, name := range b.conf.ExcludeFromIndexes {
		excluded[name] = true
	}

	for _, ref := range b.conf.KeyReferences {
		if len(ref) == 0 {
			return nil, errors.NewSchemaError(b.typeName, "", "empty key reference")
		}
		ks, err := b.keySchema(ref)
		if err != nil {
			return nil, err
		}
		last := ks.Last()
		p := &ReferenceProperty{
			PropertyBase: PropertyBase{
				Name:               b.wireName(b.fields[last.Field]),
				Field:              last.Field,
				Optional:           last.Optional,
				ExcludeFromIndexes: excluded[last.Field],
				Accessor:           last.Accessor,
			},
			Key: ks,
		}
		if err := m.add(p, b.typeName); err != nil {
			return nil, err
		}
	}

	skip := b.conf.keyOrRefFields()
	for _, name := range b.conf.IgnoreFields {
		skip[name] = true
	}

	for _, name := range b.order {
		if skip[name] {
			continue
		}
		f := b.fields[name]
		tag, opts := parseTag(f.Tag.Get(TagName))
		if tag == "-" {
			continue
		}
		p, err := b.property(f)
		if err != nil {
			return nil, err
		}
		base := p.Base()
		base.ExcludeFromIndexes = excluded[name] || opts.noIndex
		if err := m.add(p, b.typeName); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) add(p Property, typeName string) error {
	base := p.Base()
	if _, dup := m.byName[base.Name]; dup {
		return errors.NewSchemaError(typeName, base.Field, "duplicate property name %q", base.Name)
	}
	m.byName[base.Name] = p
	m.Properties = append(m.Properties, p)
	return nil
}

func (b *builder) checkConfigFields() error {
	check := func(name string) error {
		if _, ok := b.fields[name]; !ok {
			return errors.NewSchemaError(b.typeName, name, "no such exported field")
		}
		return nil
	}
	for name := range b.conf.keyOrRefFields() {
		if err := check(name); err != nil {
			return err
		}
	}
	for _, name := range b.conf.ExcludeFromIndexes {
		if err := check(name); err != nil {
			return err
		}
	}
	for name := range b.conf.RenamedFields {
		if err := check(name); err != nil {
			return err
		}
	}
	for _, name := range b.conf.IgnoreFields {
		if err := check(name); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) keySchema(parts []KeyPart) (*KeySchema, error) {
	ks := &KeySchema{Path: make([]PathSegment, 0, len(parts))}
	for _, part := range parts {
		if part.Kind == "" {
			return nil, errors.NewSchemaError(b.typeName, part.Field, "key part without kind")
		}
		f := b.fields[part.Field]
		ft := f.Type
		optional := false
		if ft.Kind() == reflect.Pointer {
			optional = true
			ft = ft.Elem()
		}
		var idType IDType
		switch {
		case isIntKind(ft.Kind()):
			idType = IntID
		case ft.Kind() == reflect.String:
			idType = StringID
		default:
			return nil, errors.NewSchemaError(b.typeName, part.Field,
				"key field of type %s is neither integer nor string", f.Type)
		}
		ks.Path = append(ks.Path, PathSegment{
			Kind:     part.Kind,
			Field:    part.Field,
			IDType:   idType,
			Optional: optional,
			Accessor: Accessor{index: f.Index},
		})
	}
	return ks, nil
}

func (b *builder) wireName(f reflect.StructField) string {
	if name, ok := b.conf.RenamedFields[f.Name]; ok && name != "" {
		return name
	}
	if tag, _ := parseTag(f.Tag.Get(TagName)); tag != "" && tag != "-" {
		return tag
	}
	return f.Name
}

func (b *builder) property(f reflect.StructField) (Property, error) {
	base := PropertyBase{
		Name:     b.wireName(f),
		Field:    f.Name,
		Accessor: Accessor{index: f.Index},
	}

	ft := f.Type
	if ft.Kind() == reflect.Pointer {
		base.Optional = true
		ft = ft.Elem()
		if ft.Kind() == reflect.Pointer {
			return nil, errors.NewSchemaError(b.typeName, f.Name, "nested optional type %s", f.Type)
		}
	}

	elem, container, err := b.container(f, ft)
	if err != nil {
		return nil, err
	}
	base.Container = container
	if container != ContainerNone && elem.Kind() == reflect.Pointer {
		base.ElemOptional = true
		elem = elem.Elem()
		if elem.Kind() == reflect.Pointer {
			return nil, errors.NewSchemaError(b.typeName, f.Name, "nested optional element type %s", f.Type)
		}
	}
	if container != ContainerNone && !isPlainMap(elem) && isContainer(elem) {
		return nil, errors.NewSchemaError(b.typeName, f.Name, "nested container type %s", f.Type)
	}

	return b.leaf(f, base, elem)
}

// container strips one slice or map layer from t.
func (b *builder) container(f reflect.StructField, t reflect.Type) (reflect.Type, ContainerKind, error) {
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return t, ContainerNone, nil
		}
		return t.Elem(), ContainerList, nil
	case reflect.Map:
		if isPlainMap(t) {
			return t, ContainerNone, nil
		}
		if t.Key().Kind() != reflect.String {
			return nil, 0, errors.NewSchemaError(b.typeName, f.Name, "map key type %s is not string", t.Key())
		}
		return t.Elem(), ContainerMap, nil
	case reflect.Array:
		return nil, 0, errors.NewSchemaError(b.typeName, f.Name, "fixed-size array type %s is not supported", t)
	}
	return t, ContainerNone, nil
}

func (b *builder) leaf(f reflect.StructField, base PropertyBase, t reflect.Type) (Property, error) {
	if tmp, ok := temporals[t]; ok {
		return &AtomicProperty{PropertyBase: base, Kind: KindTimestamp, Temporal: tmp, Type: t}, nil
	}
	if t == geoPointType {
		return &AtomicProperty{PropertyBase: base, Kind: KindGeoPoint, Type: t}, nil
	}
	if isPlainMap(t) {
		return &EntityProperty{PropertyBase: base, Nested: NestedPlainMap}, nil
	}

	named := t.PkgPath() != "" && t.Name() != ""
	switch k := t.Kind(); {
	case k == reflect.Bool:
		return &AtomicProperty{PropertyBase: base, Kind: KindBool, Type: t}, nil
	case isIntKind(k):
		if named {
			return &AtomicProperty{PropertyBase: base, Kind: KindEnumInteger, Type: t, EnumType: t}, nil
		}
		return &AtomicProperty{PropertyBase: base, Kind: KindInteger, Type: t}, nil
	case k == reflect.Float32 || k == reflect.Float64:
		return &AtomicProperty{PropertyBase: base, Kind: KindDouble, Type: t}, nil
	case k == reflect.String:
		if named {
			return &AtomicProperty{PropertyBase: base, Kind: KindEnumString, Type: t, EnumType: t}, nil
		}
		return &AtomicProperty{PropertyBase: base, Kind: KindString, Type: t}, nil
	case k == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return &AtomicProperty{PropertyBase: base, Kind: KindBlob, Type: t}, nil
	case k == reflect.Struct:
		return &EntityProperty{PropertyBase: base, Nested: NestedStruct, NestedType: t}, nil
	case k == reflect.Interface:
		return nil, errors.NewSchemaError(b.typeName, f.Name, "interface type %s cannot be stored", t)
	}
	return nil, errors.NewSchemaError(b.typeName, f.Name, "unsupported type %s", t)
}

// isIntKind reports kinds that fit an int64 without loss.
func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return true
	}
	return false
}

func isPlainMap(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String &&
		t.Elem().Kind() == reflect.Interface && t.Elem().NumMethod() == 0
}

func isContainer(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Map, reflect.Array:
		return true
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

type tagOptions struct {
	noIndex bool
}

func parseTag(tag string) (string, tagOptions) {
	name, rest, _ := strings.Cut(tag, ",")
	var opts tagOptions
	for rest != "" {
		var opt string
		opt, rest, _ = strings.Cut(rest, ",")
		if opt == "noindex" {
			opts.noIndex = true
		}
	}
	return name, opts
}
