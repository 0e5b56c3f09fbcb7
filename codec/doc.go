/*
Package codec converts registered Go structs to wire entities and back.

Encoding reads every property through the accessors of the struct's model:

	c := codec.New(reg)
	e, err := c.Encode(&order, "my-project", "")

	var back Order
	err = c.DecodeInto(e, &back)

	// or resolve the model by the kind of the entity's key
	v, err := c.Decode(e, nil) // v is *Order

Null rules:
  - nil pointers encode as Null and decode back to nil;
  - an empty list encodes as an empty Array, an empty map as Null;
  - Null or an absent property decodes to an empty list or map for
    collection fields, and fails with RequiredFieldMissingError otherwise.

Temporal fields are normalized to UTC timestamps at microsecond resolution.
Date-only values sit at midnight UTC, time-of-day values on the Unix epoch
date, and durations are offsets from the epoch.

Index exclusion applies to every leaf a property produces: scalar values are
flagged directly, list and map elements individually.
*/
package codec
