// Package memstore is an in-memory docstore.Store: a mutex-guarded
// map per container, copy-on-read/write to keep callers from mutating
// stored state by reference.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/docstore"
)

type key struct {
	container string
	pk        string
	id        string
}

// Store is a sync.RWMutex-guarded in-memory implementation of
// docstore.Store. It is the default backend for this repository's
// tests, and a reasonable runtime backend for single-process
// deployments.
type Store struct {
	mu   sync.RWMutex
	docs map[key]docstore.Document

	// uniqueIndex maps (container, uniqueOn field, pk, value) -> id,
	// enforcing the ticket_number-within-partition constraint (and any
	// other uniqueOn the caller declares) without a full table scan.
	uniqueIndex map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		docs:        make(map[key]docstore.Document),
		uniqueIndex: make(map[string]string),
	}
}

func (s *Store) PointRead(ctx context.Context, container, pk, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[key{container, pk, id}]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return cloneDoc(d), nil
}

func uniqueKey(container, uniqueOn, pk, value string) string {
	return strings.Join([]string{container, uniqueOn, pk, value}, "\x00")
}

func (s *Store) Create(ctx context.Context, doc docstore.Document, uniqueOn string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var uk string
	if uniqueOn != "" {
		val, err := fieldString(doc.Body, uniqueOn)
		if err != nil {
			return docstore.Document{}, err
		}
		uk = uniqueKey(doc.Container, uniqueOn, doc.PK, val)
		if _, exists := s.uniqueIndex[uk]; exists {
			return docstore.Document{}, docstore.ErrConflict
		}
	}

	k := key{doc.Container, doc.PK, doc.ID}
	if _, exists := s.docs[k]; exists {
		return docstore.Document{}, docstore.ErrConflict
	}

	doc.ETag = docstore.ETag(uuid.NewString())
	s.docs[k] = cloneDoc(doc)
	if uk != "" {
		s.uniqueIndex[uk] = doc.ID
	}
	return cloneDoc(doc), nil
}

func (s *Store) Upsert(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ETag = docstore.ETag(uuid.NewString())
	s.docs[key{doc.Container, doc.PK, doc.ID}] = cloneDoc(doc)
	return cloneDoc(doc), nil
}

func (s *Store) Replace(ctx context.Context, doc docstore.Document, ifMatch docstore.ETag) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{doc.Container, doc.PK, doc.ID}
	existing, ok := s.docs[k]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if existing.ETag != ifMatch {
		return docstore.Document{}, docstore.ErrPreconditionFailed
	}

	doc.ETag = docstore.ETag(uuid.NewString())
	s.docs[k] = cloneDoc(doc)
	return cloneDoc(doc), nil
}

func (s *Store) Query(ctx context.Context, container string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []docstore.Document
	for k, d := range s.docs {
		if k.container != container {
			continue
		}
		if q.PK != "" && k.pk != q.PK {
			continue
		}
		if !matchesEquality(d.Body, q.Params) {
			continue
		}
		out = append(out, cloneDoc(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// matchesEquality applies q.Params as a conjunction of field==value
// predicates when the field name starts with "eq_" (the only predicate
// shape memstore's Query supports; callers compose the fixed-shape
// queries the ticketstore/clusterstore/mergestore layer needs).
func matchesEquality(body json.RawMessage, params map[string]any) bool {
	if len(params) == 0 {
		return true
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	for k, v := range params {
		field := strings.TrimPrefix(k, "eq_")
		if field == k {
			continue // not an equality predicate this store understands
		}
		if fmt.Sprintf("%v", m[field]) != fmt.Sprintf("%v", v) {
			return false
		}
	}
	return true
}

func fieldString(body json.RawMessage, field string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	v, ok := m[field]
	if !ok {
		return "", nil
	}
	return fmt.Sprintf("%v", v), nil
}

func cloneDoc(d docstore.Document) docstore.Document {
	body := make(json.RawMessage, len(d.Body))
	copy(body, d.Body)
	return docstore.Document{Container: d.Container, PK: d.PK, ID: d.ID, ETag: d.ETag, Body: body}
}
