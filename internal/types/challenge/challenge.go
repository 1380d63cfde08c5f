package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// rank orders statuses so transitions can only move forward.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusComplete:
		return 2
	}
	return -1
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// complete is terminal.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// DefaultXP is the reward used when the challenger doesn't set one,
// matching the original app's per-difficulty rewards.
func DefaultXP(d Difficulty) int {
	switch d {
	case DifficultyIntermediate:
		return 100
	case DifficultyAdvanced:
		return 150
	default:
		return 50
	}
}

const MaxXP = 1000

type Challenge struct {
	ID           uuid.UUID  `json:"id"`
	SpotID       *uuid.UUID `json:"spot_id,omitempty"`
	Trick        string     `json:"trick"`
	ChallengerID string     `json:"challenger_id"`
	TargetID     *string    `json:"target_id,omitempty"`
	XP           int        `json:"xp"`
	Status       Status     `json:"status"`
	CompletedBy  *string    `json:"completed_by,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Completed mirrors the storage invariant: a challenge is complete
// exactly when someone is recorded as its completer.
func (c *Challenge) Completed() bool {
	return c.Status == StatusComplete && c.CompletedBy != nil
}

type CreateChallengeRequest struct {
	SpotID         string `json:"spot_id,omitempty"`
	TargetUsername string `json:"target_username,omitempty"`
	Trick          string `json:"trick"`
	Difficulty     string `json:"difficulty,omitempty"`
	XP             int    `json:"xp,omitempty"`
}

// CompletionResult is what the completion transaction reports back to the
// caller. Reason is empty on success.
type CompletionResult struct {
	Success   bool     `json:"success"`
	Reason    string   `json:"reason,omitempty"`
	XPAwarded int      `json:"xp_awarded"`
	NewXP     int      `json:"new_xp,omitempty"`
	NewLevel  int      `json:"new_level,omitempty"`
	NewStreak int      `json:"new_streak,omitempty"`
	NewBadges []string `json:"new_badges,omitempty"`
}

const (
	ReasonAlreadyCompleted = "already_completed"
	ReasonNotFound         = "not_found"
	ReasonUnauthenticated  = "unauthenticated"
	ReasonFailed           = "failed"
)
