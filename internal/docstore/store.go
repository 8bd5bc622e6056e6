// Package docstore defines the partitioned-document-store contract
// the core depends on: point reads, key-scoped queries,
// vector-distance top-K search within a partition, upserts,
// conditional (ETag) replacements, and a uniqueness constraint on
// ticket_number within a partition.
//
// The concrete backing database is an external collaborator; this
// package only fixes the shape the core depends on.
// See memstore and sqlstore for two concrete implementations used by
// this repository's tests and its default/SQL-backed runtime modes
// respectively.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ETag is a server-assigned opaque concurrency token. The core never
// fabricates one; it only ever echoes back a value it previously read.
type ETag string

// Document is the store's unit of storage: an opaque JSON body keyed
// by (Container, PK, ID), stamped with a server-assigned ETag.
type Document struct {
	Container string
	PK        string
	ID        string
	ETag      ETag
	Body      json.RawMessage
}

// Errors returned by Store methods. Callers translate these into
// dedeperrors.Kind at the ticketstore/clusterstore/mergestore layer.
var (
	ErrNotFound            = errors.New("docstore: not found")
	ErrConflict            = errors.New("docstore: uniqueness constraint violated")
	ErrPreconditionFailed  = errors.New("docstore: etag precondition failed")
)

// VectorMatch is one row returned by VectorTopK: the candidate's stored
// fields plus its cosine similarity to the query vector, in [-1,1]
// (1 = same direction).
type VectorMatch struct {
	Fields     map[string]any
	Similarity float64
}

// VectorQuery parametrizes VectorTopK. Filters is a small, fixed set
// of equality/range predicates. Store implementations must treat
// Filters as data, never as SQL/field names to splice in.
type VectorQuery struct {
	PK             string
	TopK           int
	Vector         []float64
	EqualityFilter map[string]string
	MinUpdatedAt   *string // RFC3339, inclusive lower bound on "updatedAt"
	MaxIntFilter   map[string]int // e.g. {"ticketCount": maxMembers} means "< value"
	RequirePositive []string // field names that must be > 0 (e.g. "openCount")
}

// Query parametrizes Store.Query. SQL is a fixed, store-specific query
// string (never built by interpolating field names); Params are bound
// by name.
type Query struct {
	PK     string // optional; empty means cross-partition
	SQL    string
	Params map[string]any
}

// Store is the contract the core's typed stores (ticketstore,
// clusterstore, mergestore) are built on.
type Store interface {
	PointRead(ctx context.Context, container, pk, id string) (Document, error)
	Create(ctx context.Context, doc Document, uniqueOn string) (Document, error)
	Upsert(ctx context.Context, doc Document) (Document, error)
	Replace(ctx context.Context, doc Document, ifMatch ETag) (Document, error)
	Query(ctx context.Context, container string, q Query) ([]Document, error)
	VectorTopK(ctx context.Context, container string, q VectorQuery) ([]VectorMatch, error)
}
