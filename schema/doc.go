/*
Package schema derives the storage schema of Go struct types.

A Model records, for one struct type, how its key path is composed from its
fields and how every other field maps to a wire property. Models are built
once, by reflection, and are immutable afterwards:

	type Order struct {
	    AccountID string
	    ID        int64
	    Total     float64
	    Notes     string `datastore:"notes,noindex"`
	    Tags      []string
	}

	func (Order) DatastoreConfig() schema.Config {
	    return schema.Config{
	        Key: []schema.KeyPart{
	            {Kind: "Account", Field: "AccountID"},
	            {Kind: "Order", Field: "ID"},
	        },
	    }
	}

	m, err := schema.Build(reflect.TypeOf(Order{}), nil)

Each property is one of three variants:

  - AtomicProperty: a scalar (bool, integer, double, string, blob, geo point,
    timestamp or enum), optionally inside a list or string-keyed map.
  - EntityProperty: a nested struct or a map[string]any, stored as an
    embedded entity.
  - ReferenceProperty: key fields pointing at another entity, stored as a key.

Configuration comes from an explicit Config, a DatastoreConfig method on the
type, or YAML loaded with LoadConfigs.
*/
package schema
