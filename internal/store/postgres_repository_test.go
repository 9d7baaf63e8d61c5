package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestCountPriorGuestMatches_BlankOrganizationShortCircuits(t *testing.T) {
	// A blank organization must never query: matching it against other blank
	// rows would flag unrelated guests as colleagues. The nil pool proves the
	// database is not touched.
	repo := &PostgresRepository{}
	for _, org := range []string{"", "   "} {
		person, orgOnly, err := repo.CountPriorGuestMatches(context.Background(), uuid.New(), "Chen Wei", org)
		if err != nil {
			t.Fatalf("organization %q: unexpected error: %v", org, err)
		}
		if person != 0 || orgOnly != 0 {
			t.Fatalf("organization %q: expected zero matches, got person=%d org=%d", org, person, orgOnly)
		}
	}
}
