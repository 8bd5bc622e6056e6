package dedupmodel

import "testing"
import "github.com/stretchr/testify/assert"

func TestIsOpen(t *testing.T) {
	openStatuses := map[TicketStatus]struct{}{
		TicketStatusOpen:    {},
		TicketStatusPending: {},
	}

	tk := &Ticket{Status: TicketStatusOpen}
	assert.True(t, tk.IsOpen(openStatuses))

	tk.Status = TicketStatusClosed
	assert.False(t, tk.IsOpen(openStatuses))

	tk.Status = TicketStatusMerged
	assert.False(t, tk.IsOpen(openStatuses))
}
