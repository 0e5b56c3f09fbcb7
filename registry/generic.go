/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"reflect"

	"github.com/suparena/kindstore/schema"
)

// Register registers the Go type T. An optional config overrides the type's
// own DatastoreConfig method.
func Register[T any](r *Registry, cfg ...schema.Config) (*schema.Model, error) {
	var c *schema.Config
	if len(cfg) > 0 {
		c = &cfg[0]
	}
	return r.RegisterType(typeOf[T](), c)
}

// ModelOf retrieves the model registered for T.
func ModelOf[T any](r *Registry) (*schema.Model, error) {
	return r.ResolveByType(typeOf[T]())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
