// Package mergestore is the typed view over docstore.Store for
// MergeOperation documents: creation, point reads for revert-window and
// conflict checks, and ETag-guarded updates when a merge is reverted.
package mergestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/docstore"
)

const container = "merge_operations"

// Store is a typed wrapper around a docstore.Store scoped to merge operations.
type Store struct {
	docs docstore.Store
}

// New builds a mergestore.Store over the given document store.
func New(docs docstore.Store) *Store {
	return &Store{docs: docs}
}

// Create persists a new merge operation record.
func (s *Store) Create(ctx context.Context, pk string, m *dedupmodel.MergeOperation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "merge_marshal_failed", err)
	}
	doc := docstore.Document{Container: container, PK: pk, ID: m.ID.String(), Body: body}
	created, err := s.docs.Create(ctx, doc, "")
	if err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "merge_create_failed", err)
	}
	m.ETag = string(created.ETag)
	return nil
}

// Get reads a single merge operation by id within its partition.
func (s *Store) Get(ctx context.Context, pk, id string) (*dedupmodel.MergeOperation, error) {
	doc, err := s.docs.PointRead(ctx, container, pk, id)
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, dedeperrors.New(dedeperrors.NotFound, "merge_not_found",
				fmt.Sprintf("merge operation %q not found in partition %q", id, pk))
		}
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "merge_read_failed", err)
	}
	var m dedupmodel.MergeOperation
	if err := json.Unmarshal(doc.Body, &m); err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "merge_unmarshal_failed", err)
	}
	m.ETag = string(doc.ETag)
	return &m, nil
}

// Replace performs the ETag-guarded conditional update used when a
// merge is reverted.
func (s *Store) Replace(ctx context.Context, m *dedupmodel.MergeOperation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return dedeperrors.Wrap(dedeperrors.StoreError, "merge_marshal_failed", err)
	}
	doc := docstore.Document{Container: container, PK: m.PK, ID: m.ID.String(), Body: body}
	replaced, err := s.docs.Replace(ctx, doc, docstore.ETag(m.ETag))
	if err != nil {
		if err == docstore.ErrPreconditionFailed {
			return dedeperrors.New(dedeperrors.Conflict, "merge_etag_conflict", "merge operation was modified concurrently")
		}
		if err == docstore.ErrNotFound {
			return dedeperrors.New(dedeperrors.NotFound, "merge_not_found", "merge operation no longer exists")
		}
		return dedeperrors.Wrap(dedeperrors.StoreError, "merge_replace_failed", err)
	}
	m.ETag = string(replaced.ETag)
	return nil
}

// ListByPrimary returns every merge operation in a partition whose
// primary ticket is primaryTicketID, newest first. RevertMerge uses it
// for the subsequent-merge conflict check, which keys on the primary
// ticket rather than the cluster: a later merge of a different cluster
// built around the same primary still conflicts.
func (s *Store) ListByPrimary(ctx context.Context, pk string, primaryTicketID uuid.UUID) ([]*dedupmodel.MergeOperation, error) {
	docs, err := s.docs.Query(ctx, container, docstore.Query{PK: pk, Params: map[string]any{"eq_primaryTicketId": primaryTicketID.String()}})
	if err != nil {
		return nil, dedeperrors.Wrap(dedeperrors.StoreError, "merge_query_failed", err)
	}
	out := make([]*dedupmodel.MergeOperation, 0, len(docs))
	for _, d := range docs {
		var m dedupmodel.MergeOperation
		if err := json.Unmarshal(d.Body, &m); err != nil {
			return nil, dedeperrors.Wrap(dedeperrors.StoreError, "merge_unmarshal_failed", err)
		}
		m.ETag = string(d.ETag)
		out = append(out, &m)
	}
	sortByPerformedAtDesc(out)
	return out, nil
}

func sortByPerformedAtDesc(ops []*dedupmodel.MergeOperation) {
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && ops[j].PerformedAt.After(ops[j-1].PerformedAt); j-- {
			ops[j], ops[j-1] = ops[j-1], ops[j]
		}
	}
}
