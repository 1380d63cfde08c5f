package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"skateQuestAPI/internal/user"
)

func TestEvaluate_Thresholds(t *testing.T) {
	p := &user.Profile{XP: 500, Streak: 5, SpotsAdded: 1}

	ids := Evaluate(p)

	assert.Contains(t, ids, "100-xp")
	assert.Contains(t, ids, "500-xp")
	assert.Contains(t, ids, "5-day-streak")
	assert.Contains(t, ids, "first-spot")
	assert.NotContains(t, ids, "1000-xp")
	assert.NotContains(t, ids, "first-challenge")
}

func TestGrant_Idempotent(t *testing.T) {
	p := &user.Profile{XP: 150, Badges: []string{}}

	first := Grant(p)
	assert.Equal(t, []string{"100-xp"}, first)

	second := Grant(p)
	assert.Empty(t, second)
	assert.Equal(t, []string{"100-xp"}, p.Badges)
}

func TestGrant_NeverRevokes(t *testing.T) {
	p := &user.Profile{XP: 200, Streak: 5, Badges: []string{}}

	Grant(p)
	assert.True(t, p.HasBadge("5-day-streak"))

	// Streak drops back to 1; the badge stays.
	p.Streak = 1
	Grant(p)
	assert.True(t, p.HasBadge("5-day-streak"))
}

func TestGrant_PreservesExisting(t *testing.T) {
	p := &user.Profile{XP: 600, Badges: []string{"100-xp"}}

	added := Grant(p)

	assert.Contains(t, added, "500-xp")
	assert.NotContains(t, added, "100-xp")
	assert.Contains(t, p.Badges, "100-xp")
	assert.Contains(t, p.Badges, "500-xp")
}

func TestLookup(t *testing.T) {
	r, ok := Lookup("5-day-streak")
	assert.True(t, ok)
	assert.Equal(t, "On a Roll", r.Name)
	assert.Equal(t, StatStreak, r.Stat)
	assert.Equal(t, 5, r.Threshold)

	_, ok = Lookup("no-such-badge")
	assert.False(t, ok)
}
