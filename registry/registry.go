/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/suparena/kindstore/errors"
	"github.com/suparena/kindstore/schema"
)

// Registry maps kind tags and Go types to their models. It is safe for
// concurrent use; registration normally happens once at startup.
type Registry struct {
	mu     sync.RWMutex
	byKind map[string]*schema.Model
	byType map[reflect.Type]*schema.Model
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byKind: make(map[string]*schema.Model),
		byType: make(map[reflect.Type]*schema.Model),
	}
}

// Register adds a built model. Keyed models are indexed by kind as well as
// by type; a second model with the same kind is rejected.
func (r *Registry) Register(m *schema.Model) error {
	if m == nil {
		return errors.NewValidationError("model", "model is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(m)
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(m *schema.Model) {
	if err := r.Register(m); err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
}

// RegisterType builds the model of t with cfg and registers it together with
// the models of the struct types it embeds. Registering a type twice returns
// the existing model.
func (r *Registry) RegisterType(t reflect.Type, cfg *schema.Config) (*schema.Model, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(t, cfg)
}

// RegisterWithConfigs registers the types of values, taking each one's
// configuration from configs by Go type name when present.
func (r *Registry) RegisterWithConfigs(configs map[string]schema.Config, values ...any) error {
	for _, v := range values {
		t := reflect.TypeOf(v)
		if t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		var cfg *schema.Config
		if t != nil {
			if c, ok := configs[t.Name()]; ok {
				cfg = &c
			}
		}
		if _, err := r.RegisterType(t, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerLocked(t reflect.Type, cfg *schema.Config) (*schema.Model, error) {
	if t != nil {
		if m, ok := r.byType[t]; ok {
			return m, nil
		}
	}
	m, err := schema.Build(t, cfg)
	if err != nil {
		return nil, err
	}
	if err := r.addLocked(m); err != nil {
		return nil, err
	}
	for _, nested := range m.Nested() {
		if _, err := r.registerLocked(nested, nil); err != nil {
			r.removeLocked(m)
			return nil, fmt.Errorf("failed to register nested type of %s: %w", m.Name(), err)
		}
	}
	return m, nil
}

// removeLocked undoes addLocked for a model whose nested types failed.
func (r *Registry) removeLocked(m *schema.Model) {
	if m.Kind != "" && r.byKind[m.Kind] == m {
		delete(r.byKind, m.Kind)
	}
	if r.byType[m.Type] == m {
		delete(r.byType, m.Type)
	}
}

func (r *Registry) addLocked(m *schema.Model) error {
	if m.Kind != "" {
		if _, exists := r.byKind[m.Kind]; exists {
			return errors.NewDuplicateKindError(m.Kind)
		}
		r.byKind[m.Kind] = m
	}
	r.byType[m.Type] = m
	return nil
}

// ResolveByKind returns the model registered for a kind tag.
func (r *Registry) ResolveByKind(kind string) (*schema.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byKind[kind]
	if !ok {
		return nil, errors.NewNotFoundError("model for kind", kind)
	}
	return m, nil
}

// ResolveByType returns the model registered for a struct type. Pointer
// types resolve to their element type.
func (r *Registry) ResolveByType(t reflect.Type) (*schema.Model, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byType[t]
	if !ok {
		return nil, errors.NewNotFoundError("model for type", fmt.Sprint(t))
	}
	return m, nil
}

// Models returns all registered models ordered by type name.
func (r *Registry) Models() []*schema.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.Model, 0, len(r.byType))
	for _, m := range r.byType {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Kinds returns the registered kind tags in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
