package memstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/deduptickets/internal/docstore"
)

func doc(t *testing.T, container, pk, id string, fields map[string]any) docstore.Document {
	t.Helper()
	body, err := json.Marshal(fields)
	require.NoError(t, err)
	return docstore.Document{Container: container, PK: pk, ID: id, Body: body}
}

func TestCreate_StampsETagAndEnforcesUnique(t *testing.T) {
	s := New()
	ctx := context.Background()

	d := doc(t, "tickets", "2026-01", "t1", map[string]any{"ticketNumber": "TCK-1"})
	created, err := s.Create(ctx, d, "ticketNumber")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ETag)

	dup := doc(t, "tickets", "2026-01", "t2", map[string]any{"ticketNumber": "TCK-1"})
	_, err = s.Create(ctx, dup, "ticketNumber")
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func TestCreate_DuplicateIDConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	d := doc(t, "tickets", "2026-01", "t1", map[string]any{"ticketNumber": "TCK-1"})
	_, err := s.Create(ctx, d, "")
	require.NoError(t, err)

	_, err = s.Create(ctx, d, "")
	assert.ErrorIs(t, err, docstore.ErrConflict)
}

func TestPointRead_NotFound(t *testing.T) {
	s := New()
	_, err := s.PointRead(context.Background(), "tickets", "2026-01", "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestReplace_PreconditionFailed(t *testing.T) {
	s := New()
	ctx := context.Background()
	d := doc(t, "clusters", "2026-01", "c1", map[string]any{"status": "candidate"})
	created, err := s.Create(ctx, d, "")
	require.NoError(t, err)

	updated := created
	updated.Body, _ = json.Marshal(map[string]any{"status": "pending"})
	_, err = s.Replace(ctx, updated, docstore.ETag("stale-etag"))
	assert.ErrorIs(t, err, docstore.ErrPreconditionFailed)

	_, err = s.Replace(ctx, updated, created.ETag)
	assert.NoError(t, err)
}

func TestQuery_FiltersByEquality(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Create(ctx, doc(t, "clusters", "2026-01", "c1", map[string]any{"status": "candidate"}), "")
	require.NoError(t, err)
	_, err = s.Create(ctx, doc(t, "clusters", "2026-01", "c2", map[string]any{"status": "pending"}), "")
	require.NoError(t, err)

	out, err := s.Query(ctx, "clusters", docstore.Query{PK: "2026-01", Params: map[string]any{"eq_status": "pending"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "c2", out[0].ID)
}

func TestCloneDoc_CallerMutationDoesNotLeak(t *testing.T) {
	s := New()
	ctx := context.Background()
	created, err := s.Create(ctx, doc(t, "tickets", "2026-01", "t1", map[string]any{"summary": "a"}), "")
	require.NoError(t, err)

	created.Body[0] = 'X'

	reread, err := s.PointRead(ctx, "tickets", "2026-01", "t1")
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(reread.Body, &fields))
	assert.Equal(t, "a", fields["summary"])
}

func TestVectorTopK_RanksBySimilarityAndRespectsFilters(t *testing.T) {
	s := New()
	ctx := context.Background()

	mustCreate := func(id string, fields map[string]any) {
		_, err := s.Create(ctx, doc(t, "clusters", "2026-01", id, fields), "")
		require.NoError(t, err)
	}

	mustCreate("close", map[string]any{"centroidVector": []any{1.0, 0.0}, "status": "pending", "ticketCount": 2})
	mustCreate("far", map[string]any{"centroidVector": []any{0.0, 1.0}, "status": "pending", "ticketCount": 2})
	mustCreate("full", map[string]any{"centroidVector": []any{1.0, 0.0}, "status": "pending", "ticketCount": 50})

	matches, err := s.VectorTopK(ctx, "clusters", docstore.VectorQuery{
		PK:           "2026-01",
		Vector:       []float64{1, 0},
		TopK:         5,
		MaxIntFilter: map[string]int{"ticketCount": 50},
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.InDelta(t, 0.0, matches[1].Similarity, 1e-9)
}
