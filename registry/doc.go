/*
Package registry resolves schema models by kind tag and by Go type.

A Registry is an explicit object, created once and handed to the codec and
the repository:

	reg := registry.New()
	if _, err := registry.Register[Order](reg); err != nil {
	    return err
	}

	m, err := reg.ResolveByKind("Order")

Registering a type also registers the struct types it embeds, so nested
entities can be encoded and decoded. Kind tags are unique; registering a
second model with the same kind fails with a DuplicateKindError.

Configurations loaded from YAML can be applied by type name:

	configs, _ := schema.LoadConfigs(f)
	err := reg.RegisterWithConfigs(configs, Order{}, Invoice{})

The registry is thread-safe and should be populated during initialization.
*/
package registry
