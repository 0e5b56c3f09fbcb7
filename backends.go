/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package kindstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/suparena/kindstore/datastore"
	"go.uber.org/zap"
)

// BackendFactory opens a store backend.
type BackendFactory func(ctx context.Context, logger *zap.Logger) (datastore.Executor, error)

// Backends is a thread-safe set of named store backends.
type Backends struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

// NewBackends creates an empty set.
func NewBackends() *Backends {
	return &Backends{factories: make(map[string]BackendFactory)}
}

// Register adds a backend under name.
func (b *Backends) Register(name string, f BackendFactory) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.factories[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	b.factories[name] = f
	return nil
}

// Open opens the backend registered under name.
func (b *Backends) Open(ctx context.Context, name string, logger *zap.Logger) (datastore.Executor, error) {
	b.mu.RLock()
	f, exists := b.factories[name]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend %q not found (have %v)", name, b.Names())
	}
	return f(ctx, logger)
}

// Names returns the registered backend names in order.
func (b *Backends) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.factories))
	for name := range b.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
