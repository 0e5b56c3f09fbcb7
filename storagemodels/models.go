/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import "fmt"

// Entity is a wire entity: an optional key plus named property values.
type Entity struct {
	Key        *Key
	Properties map[string]Value
}

// NewEntity returns an entity with an initialized property map.
func NewEntity(key *Key) *Entity {
	return &Entity{Key: key, Properties: make(map[string]Value)}
}

// Kind returns the kind tag of the entity's key, or "" for keyless entities.
func (e *Entity) Kind() string {
	if e == nil {
		return ""
	}
	return e.Key.Kind()
}

// FilterOp is a property filter comparison operator.
type FilterOp int

const (
	Equal FilterOp = iota
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (op FilterOp) String() string {
	switch op {
	case Equal:
		return "="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	}
	return fmt.Sprintf("FilterOp(%d)", int(op))
}

// KeyProperty is the pseudo property name that refers to the entity key in
// filters and orders.
const KeyProperty = "__key__"

// Filter compares one property against a wire value. Filters in a Query are
// AND-ed together.
type Filter struct {
	Property string
	Op       FilterOp
	Value    Value
}

// Order sorts results by one property.
type Order struct {
	Property   string
	Descending bool
}

// Query holds the permanent part of a query: what does not change from page
// to page.
type Query struct {
	Kind     string
	Ancestor *Key
	Filters  []Filter
	Orders   []Order
}

// QueryRequest is one page request sent to a QueryExecutor.
type QueryRequest struct {
	// Partition is the project/namespace the query runs in.
	Partition PartitionID
	// Query is the base query.
	Query Query
	// StartCursor resumes after a previous page; nil on the first page.
	StartCursor []byte
	// EndCursor bounds the result set; nil when unbounded.
	EndCursor []byte
	// Limit is the number of results still wanted; nil when unbounded.
	Limit *int32
	// Offset is the number of results to skip before the first result.
	Offset int32
	// Eventual requests eventually consistent reads.
	Eventual bool
}

// Clone returns a copy of the request that can be modified independently.
func (r *QueryRequest) Clone() *QueryRequest {
	c := *r
	if r.Limit != nil {
		limit := *r.Limit
		c.Limit = &limit
	}
	return &c
}

// MoreResultsType tells whether a query can produce more results.
type MoreResultsType int

const (
	MoreResultsUnspecified MoreResultsType = iota
	// NotFinished means there may be more results after the end cursor.
	NotFinished
	// MoreResultsAfterLimit means the limit was reached.
	MoreResultsAfterLimit
	// MoreResultsAfterCursor means the end cursor was reached.
	MoreResultsAfterCursor
	// NoMoreResults means the query is finished.
	NoMoreResults
)

// Terminal reports whether no further page should be requested.
func (m MoreResultsType) Terminal() bool {
	return m == MoreResultsAfterLimit || m == MoreResultsAfterCursor || m == NoMoreResults
}

func (m MoreResultsType) String() string {
	switch m {
	case NotFinished:
		return "NOT_FINISHED"
	case MoreResultsAfterLimit:
		return "MORE_RESULTS_AFTER_LIMIT"
	case MoreResultsAfterCursor:
		return "MORE_RESULTS_AFTER_CURSOR"
	case NoMoreResults:
		return "NO_MORE_RESULTS"
	}
	return "MORE_RESULTS_TYPE_UNSPECIFIED"
}

// ResultBatch is one page of query results as returned by the store.
type ResultBatch struct {
	// EntityResults are the entities of this page.
	EntityResults []*Entity
	// SkippedResults is the number of results skipped for the offset.
	SkippedResults int32
	// SkippedCursor is the position after the last skipped result.
	SkippedCursor []byte
	// EndCursor is the position after the last result of this page.
	EndCursor []byte
	// MoreResults is the state of the query after this page.
	MoreResults MoreResultsType
}

// MutationOp is the kind of write a Mutation performs.
type MutationOp int

const (
	// Upsert writes the entity whether or not it exists.
	Upsert MutationOp = iota
	// Insert writes the entity only if it does not exist.
	Insert
	// Update writes the entity only if it exists.
	Update
	// Delete removes the entity with the given key.
	Delete
)

func (op MutationOp) String() string {
	switch op {
	case Upsert:
		return "upsert"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("MutationOp(%d)", int(op))
}

// Mutation is a single write. Entity is set for writes, Key for deletes.
type Mutation struct {
	Op     MutationOp
	Entity *Entity
	Key    *Key
}

// MutationResult is the outcome of one mutation. Key is set when the store
// allocated an id for an incomplete key.
type MutationResult struct {
	Key     *Key
	Version int64
}

func (r MutationResult) String() string {
	if r.Key == nil {
		return fmt.Sprintf("Key - None, version - %d", r.Version)
	}
	return fmt.Sprintf("Key - %s, version - %d", r.Key, r.Version)
}
