/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"strconv"
	"strings"
)

// PartitionID identifies the project, database and namespace a key lives in.
type PartitionID struct {
	ProjectID   string
	DatabaseID  string
	NamespaceID string
}

// PathElement is one (kind, id) step of a key path. At most one of ID and
// Name is set; an element with neither is incomplete and gets its id
// allocated by the store.
type PathElement struct {
	Kind string
	ID   int64
	Name string
}

// IDElement returns a path element with an integer id.
func IDElement(kind string, id int64) PathElement {
	return PathElement{Kind: kind, ID: id}
}

// NameElement returns a path element with a string id.
func NameElement(kind, name string) PathElement {
	return PathElement{Kind: kind, Name: name}
}

// HasID reports whether the element carries an integer id.
func (p PathElement) HasID() bool { return p.ID != 0 }

// HasName reports whether the element carries a string id.
func (p PathElement) HasName() bool { return p.Name != "" }

// Incomplete reports whether the element carries no id at all.
func (p PathElement) Incomplete() bool { return p.ID == 0 && p.Name == "" }

// Key is a hierarchical entity key: the ancestor path from the root down to
// the entity itself.
type Key struct {
	Partition PartitionID
	Path      []PathElement
}

// NewKey returns a key in the given partition.
func NewKey(partition PartitionID, path ...PathElement) *Key {
	return &Key{Partition: partition, Path: path}
}

// Kind returns the kind tag of the key, which is the kind of its last element.
func (k *Key) Kind() string {
	if k == nil || len(k.Path) == 0 {
		return ""
	}
	return k.Path[len(k.Path)-1].Kind
}

// Incomplete reports whether the last path element has no id yet.
func (k *Key) Incomplete() bool {
	return k == nil || len(k.Path) == 0 || k.Path[len(k.Path)-1].Incomplete()
}

// Parent returns the key without its last element, or nil for a root key.
func (k *Key) Parent() *Key {
	if k == nil || len(k.Path) < 2 {
		return nil
	}
	path := make([]PathElement, len(k.Path)-1)
	copy(path, k.Path)
	return &Key{Partition: k.Partition, Path: path}
}

// Equal reports whether two keys have the same partition and path.
func (k *Key) Equal(o *Key) bool {
	if k == nil || o == nil {
		return k == o
	}
	if k.Partition != o.Partition || len(k.Path) != len(o.Path) {
		return false
	}
	for i := range k.Path {
		if k.Path[i] != o.Path[i] {
			return false
		}
	}
	return true
}

// HasAncestor reports whether anc is a prefix of k's path (including k itself).
func (k *Key) HasAncestor(anc *Key) bool {
	if k == nil || anc == nil || len(anc.Path) > len(k.Path) {
		return false
	}
	if k.Partition.NamespaceID != anc.Partition.NamespaceID {
		return false
	}
	for i := range anc.Path {
		if k.Path[i] != anc.Path[i] {
			return false
		}
	}
	return true
}

// String renders the path as Kind:id/Kind:"name". Partition is omitted.
func (k *Key) String() string {
	if k == nil {
		return ""
	}
	var b strings.Builder
	for i, p := range k.Path {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(p.Kind)
		b.WriteByte(':')
		switch {
		case p.HasName():
			b.WriteString(strconv.Quote(p.Name))
		case p.HasID():
			b.WriteString(strconv.FormatInt(p.ID, 10))
		default:
			b.WriteString("?")
		}
	}
	return b.String()
}

// CompareKeys orders keys the way the store does: element by element, kind
// first, then integer ids before names.
func CompareKeys(a, b *Key) int {
	n := len(a.Path)
	if len(b.Path) < n {
		n = len(b.Path)
	}
	for i := 0; i < n; i++ {
		if c := comparePathElements(a.Path[i], b.Path[i]); c != 0 {
			return c
		}
	}
	return len(a.Path) - len(b.Path)
}

func comparePathElements(a, b PathElement) int {
	if c := strings.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	switch {
	case a.HasName() && b.HasName():
		return strings.Compare(a.Name, b.Name)
	case a.HasName():
		return 1
	case b.HasName():
		return -1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
