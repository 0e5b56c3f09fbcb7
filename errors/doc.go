/*
Package errors provides semantic error types for kindstore.

Every failure the schema builder, registry and codec can produce has a sentinel
and a typed error. Check them with the standard errors.Is() function or the
provided helper functions.

Common Errors:

	var (
	    ErrSchema               = errors.New("invalid model schema")
	    ErrNotFound             = errors.New("not found")
	    ErrConditionFailed      = errors.New("condition check failed")
	    ErrDuplicateKind        = errors.New("duplicate kind")
	    ErrRequiredFieldMissing = errors.New("required field missing")
	    ErrWireKindMismatch     = errors.New("wire kind mismatch")
	    ErrKeySchemaMismatch    = errors.New("key schema mismatch")
	)

Schema and registry errors are raised during startup registration and are fatal.
Codec errors are returned per object; the query iterator is the only caller that
recovers from them, by yielding the raw wire entity instead.

Usage:

	obj, err := c.Decode(entity, nil)
	if err != nil {
	    if errors.IsRequiredFieldMissing(err) {
	        // the stored entity predates a required field
	    }
	    return nil, err
	}

The error types implement the error interface and support wrapping,
making them compatible with Go's standard error handling patterns.
*/
package errors
