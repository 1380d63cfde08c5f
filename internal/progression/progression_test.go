package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"skateQuestAPI/internal/user"
)

func TestNextStreak_FirstCompletion(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 1, NextStreak(0, nil, now))
	assert.Equal(t, 1, NextStreak(5, nil, now))
}

func TestNextStreak_WithinWindow(t *testing.T) {
	now := time.Now()
	last := now.Add(-12 * time.Hour)

	assert.Equal(t, 4, NextStreak(3, &last, now))
}

func TestNextStreak_WindowExpired(t *testing.T) {
	now := time.Now()
	last := now.Add(-36 * time.Hour)

	assert.Equal(t, 1, NextStreak(3, &last, now))
}

func TestNextStreak_ExactBoundary(t *testing.T) {
	now := time.Now()

	// Exactly 24h still counts; a second past it does not.
	atBoundary := now.Add(-24 * time.Hour)
	assert.Equal(t, 3, NextStreak(2, &atBoundary, now))

	pastBoundary := now.Add(-24*time.Hour - time.Second)
	assert.Equal(t, 1, NextStreak(2, &pastBoundary, now))
}

func TestNextStreak_CorruptCurrent(t *testing.T) {
	now := time.Now()
	last := now.Add(-time.Hour)

	assert.Equal(t, 1, NextStreak(-3, &last, now))
}

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp    int
		level int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{599, 3},
		{600, 4},
		{1000, 5},
	}

	for _, c := range cases {
		assert.Equal(t, c.level, LevelForXP(c.xp), "xp=%d", c.xp)
	}
}

func TestLevelForXP_Monotonic(t *testing.T) {
	prev := LevelForXP(0)
	for xp := 1; xp <= 10000; xp++ {
		l := LevelForXP(xp)
		assert.GreaterOrEqual(t, l, prev, "xp=%d", xp)
		prev = l
	}
}

func TestAward_AppliesEverything(t *testing.T) {
	now := time.Now()
	last := now.Add(-6 * time.Hour)

	p := &user.Profile{
		ClerkID:       "user_award",
		XP:            50,
		Level:         1,
		Streak:        3,
		LastCompleted: &last,
		Badges:        []string{},
	}

	newBadges := Award(p, 100, now)

	assert.Equal(t, 150, p.XP)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 4, p.Streak)
	assert.Equal(t, 1, p.ChallengesCompleted)
	assert.Equal(t, now, *p.LastCompleted)
	assert.Contains(t, newBadges, "100-xp")
	assert.Contains(t, newBadges, "first-challenge")
}

func TestAward_StreakResetKeepsBadges(t *testing.T) {
	now := time.Now()
	last := now.Add(-48 * time.Hour)

	p := &user.Profile{
		ClerkID:       "user_reset",
		XP:            400,
		Level:         3,
		Streak:        6,
		LastCompleted: &last,
		Badges:        []string{"100-xp", "5-day-streak", "first-challenge"},
	}

	Award(p, 50, now)

	assert.Equal(t, 1, p.Streak)
	// The streak badge survives the reset.
	assert.True(t, p.HasBadge("5-day-streak"))
}
