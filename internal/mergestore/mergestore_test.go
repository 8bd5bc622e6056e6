package mergestore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
	"github.com/gotrs-io/deduptickets/internal/docstore/memstore"
)

func newMerge(pk string, primaryID uuid.UUID, performedAt time.Time) *dedupmodel.MergeOperation {
	return &dedupmodel.MergeOperation{
		ID:              uuid.New(),
		PK:              pk,
		ClusterID:       uuid.New(),
		PrimaryTicketID: primaryID,
		MergeBehavior:   dedupmodel.MergeKeepLatest,
		PerformedAt:     performedAt,
		RevertDeadline:  performedAt.Add(24 * time.Hour),
		Status:          dedupmodel.MergeStatusCompleted,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	m := newMerge("2026-01", uuid.New(), time.Now())

	require.NoError(t, s.Create(ctx, "2026-01", m))
	assert.NotEmpty(t, m.ETag)

	got, err := s.Get(ctx, "2026-01", m.ID.String())
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
}

func TestGet_NotFound(t *testing.T) {
	s := New(memstore.New())
	_, err := s.Get(context.Background(), "2026-01", uuid.New().String())
	var derr *dedeperrors.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, dedeperrors.NotFound, derr.Kind)
}

func TestReplace_RevertUpdatesStatus(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	m := newMerge("2026-01", uuid.New(), time.Now())
	require.NoError(t, s.Create(ctx, "2026-01", m))

	m.Status = dedupmodel.MergeStatusReverted
	require.NoError(t, s.Replace(ctx, m))

	got, err := s.Get(ctx, "2026-01", m.ID.String())
	require.NoError(t, err)
	assert.Equal(t, dedupmodel.MergeStatusReverted, got.Status)
}

func TestListByPrimary_NewestFirst(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	primaryID := uuid.New()
	now := time.Now()

	older := newMerge("2026-01", primaryID, now.Add(-time.Hour))
	newer := newMerge("2026-01", primaryID, now)
	other := newMerge("2026-01", uuid.New(), now)

	require.NoError(t, s.Create(ctx, "2026-01", older))
	require.NoError(t, s.Create(ctx, "2026-01", newer))
	require.NoError(t, s.Create(ctx, "2026-01", other))

	got, err := s.ListByPrimary(ctx, "2026-01", primaryID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}
