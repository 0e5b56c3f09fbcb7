/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// KeyPart names the kind of one key path element and the field holding its id.
type KeyPart struct {
	Kind  string `yaml:"kind"`
	Field string `yaml:"field"`
}

// Config is the datastore configuration of a model type. Field names are Go
// struct field names.
type Config struct {
	// Key is the key path, root first. The last kind is the model's kind.
	Key []KeyPart `yaml:"key"`
	// KeyReferences are key paths to other entities. Each one becomes a
	// reference property named after the field of its last part.
	KeyReferences [][]KeyPart `yaml:"key_references"`
	// ExcludeFromIndexes lists fields the store must not index.
	ExcludeFromIndexes []string `yaml:"exclude_from_indexes"`
	// RenamedFields maps field names to wire property names.
	RenamedFields map[string]string `yaml:"renamed_fields"`
	// IgnoreFields lists fields that are not stored.
	IgnoreFields []string `yaml:"ignore_fields"`
}

// Configurer is implemented by model types that carry their own datastore
// configuration.
type Configurer interface {
	DatastoreConfig() Config
}

// LoadConfigs reads model configurations from YAML, keyed by Go type name:
//
//	Order:
//	  key:
//	    - {kind: Account, field: AccountID}
//	    - {kind: Order, field: ID}
//	  exclude_from_indexes: [Notes]
func LoadConfigs(r io.Reader) (map[string]Config, error) {
	configs := make(map[string]Config)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&configs); err != nil {
		if err == io.EOF {
			return configs, nil
		}
		return nil, fmt.Errorf("failed to decode schema configs: %w", err)
	}
	return configs, nil
}

func (c *Config) keyOrRefFields() map[string]bool {
	fields := make(map[string]bool)
	for _, p := range c.Key {
		fields[p.Field] = true
	}
	for _, ref := range c.KeyReferences {
		for _, p := range ref {
			fields[p.Field] = true
		}
	}
	return fields
}
