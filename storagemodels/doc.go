/*
Package storagemodels defines the wire data structures used throughout kindstore.

Key Types:

Value:
The generic tagged value of an entity property. It is a closed union of member
types, each carrying an index exclusion flag:

	v := &ValueMemberString{Value: "hello"}
	v.SetExcludedFromIndexes(true)

	switch tv := v.(type) {
	case *ValueMemberString:
	    fmt.Println(tv.Value)
	}

Key and Entity:
Hierarchical keys made of (kind, id) path elements, and entities holding a key
plus named values:

	key := NewKey(PartitionID{ProjectID: "p"},
	    NameElement("Account", "acme"),
	    IDElement("Order", 42),
	)
	e := NewEntity(key)
	e.Properties["total"] = &ValueMemberDouble{Value: 12.5}

QueryRequest and ResultBatch:
One page request sent to a query executor and the page it answers with,
including skipped counts and cursors.

StreamResult:
Results from streaming query iteration with metadata.

These types are independent of any Go model type and of any backend.
*/
package storagemodels
