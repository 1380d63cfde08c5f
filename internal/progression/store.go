package progression

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skateQuestAPI/internal/types/challenge"
	"skateQuestAPI/internal/user"
)

// Tx is the handle a completion callback uses to read and mutate the two
// records participating in the atomic unit. Reads take locks (or their
// optimistic equivalent) so the commit is all-or-nothing under contention.
type Tx interface {
	// GetChallengeForUpdate reads and locks the challenge row.
	// Returns ErrChallengeNotFound if it does not exist.
	GetChallengeForUpdate(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)

	// GetProfileForUpdate reads and locks the profile for the given
	// caller identity, creating it lazily if this is the user's first
	// qualifying action.
	GetProfileForUpdate(ctx context.Context, clerkID string) (*user.Profile, error)

	// MarkComplete records the one-and-only completion of the challenge.
	MarkComplete(ctx context.Context, id uuid.UUID, completedBy string, completedAt time.Time) error

	// SaveProgress persists the mutated progression fields of a profile
	// previously read with GetProfileForUpdate.
	SaveProgress(ctx context.Context, p *user.Profile) error
}

// Store runs read-modify-write cycles atomically against the backing
// document store. RunAtomic returns ErrConflict when a concurrent writer
// invalidated the cycle, in which case the caller retries from scratch;
// any other error from fn aborts the unit with nothing written.
type Store interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
