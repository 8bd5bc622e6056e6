// Package embedder defines the text-to-vector contract the dedup
// pipeline embeds ticket text with, plus the PII-excluding text
// builder every embedder implementation is fed from.
package embedder

import (
	"context"
	"strings"

	"github.com/gotrs-io/deduptickets/internal/dedupmodel"
)

// Embedder turns free text into a fixed-dimension embedding vector.
// Implementations are external providers; the core only depends on
// this interface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// BuildDedupText concatenates the non-PII content fields in a fixed
// order, skipping empty parts. Name, email, mobile number, customer
// id, and account type are never included.
func BuildDedupText(t *dedupmodel.TicketCreate) string {
	parts := []string{
		t.Summary,
		deref(t.Description),
		t.Category,
		deref(t.Subcategory),
		deref(t.Merchant),
		t.Channel,
		deref(t.Severity),
	}
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
