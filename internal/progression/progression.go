package progression

import (
	"errors"
	"time"

	"skateQuestAPI/internal/badge"
	"skateQuestAPI/internal/user"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrAlreadyCompleted  = errors.New("challenge already completed")

	// ErrConflict signals a concurrent conflicting write; callers retry
	// the whole read-modify-write cycle.
	ErrConflict = errors.New("storage conflict")
)

// streakWindow is how long after the previous completion a new one still
// extends the streak. Past it, the streak restarts at 1.
const streakWindow = 24 * time.Hour

// NextStreak computes the consecutive-activity counter after a completion
// at now. A first-ever completion, or one more than a day after the last,
// starts over at 1.
func NextStreak(current int, lastCompleted *time.Time, now time.Time) int {
	if lastCompleted == nil || now.Sub(*lastCompleted) > streakWindow {
		return 1
	}
	if current < 1 {
		return 1
	}
	return current + 1
}

// LevelForXP maps total XP onto a level. Each level n costs n*100 XP on
// top of everything before it, so the mapping never moves backwards as
// XP grows.
func LevelForXP(xp int) int {
	level := 1
	need := 100
	for xp >= need {
		xp -= need
		level++
		need = level * 100
	}
	return level
}

// Award applies a completed challenge's reward to the profile in place:
// XP, completion counter, streak, derived level, and any newly earned
// badges. Returns the badges added. Callers run this inside the same
// atomic unit that flips the challenge to complete.
func Award(p *user.Profile, xp int, now time.Time) []string {
	p.XP += xp
	p.ChallengesCompleted++
	p.Streak = NextStreak(p.Streak, p.LastCompleted, now)
	t := now
	p.LastCompleted = &t
	p.Level = LevelForXP(p.XP)
	return badge.Grant(p)
}
