package dedupmodel

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMergeOperation_Snapshot(t *testing.T) {
	secondary := uuid.New()
	other := uuid.New()
	op := &MergeOperation{
		OriginalStates: []TicketSnapshot{
			{TicketID: secondary, UpdatedAt: time.Now()},
		},
	}

	snap := op.Snapshot(secondary)
	if assert.NotNil(t, snap) {
		assert.Equal(t, secondary, snap.TicketID)
	}

	assert.Nil(t, op.Snapshot(other))
}
