package badge

import (
	"skateQuestAPI/internal/user"
)

type Stat string

const (
	StatXP                  Stat = "xp"
	StatStreak              Stat = "streak"
	StatSpotsAdded          Stat = "spots_added"
	StatChallengesCompleted Stat = "challenges_completed"
)

type Rule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Stat      Stat   `json:"stat"`
	Threshold int    `json:"threshold"`
}

// Rules is the fixed badge ladder. Thresholds only ever gate granting;
// a badge stays granted even if the stat later drops (streak resets).
var Rules = []Rule{
	{ID: "100-xp", Name: "Rookie", Stat: StatXP, Threshold: 100},
	{ID: "500-xp", Name: "Street Skater", Stat: StatXP, Threshold: 500},
	{ID: "1000-xp", Name: "Park Rider", Stat: StatXP, Threshold: 1000},
	{ID: "5000-xp", Name: "Skate Legend", Stat: StatXP, Threshold: 5000},
	{ID: "5-day-streak", Name: "On a Roll", Stat: StatStreak, Threshold: 5},
	{ID: "30-day-streak", Name: "Relentless", Stat: StatStreak, Threshold: 30},
	{ID: "first-spot", Name: "Scout", Stat: StatSpotsAdded, Threshold: 1},
	{ID: "10-spots", Name: "Cartographer", Stat: StatSpotsAdded, Threshold: 10},
	{ID: "first-challenge", Name: "Challenger", Stat: StatChallengesCompleted, Threshold: 1},
	{ID: "10-challenges", Name: "Trick Machine", Stat: StatChallengesCompleted, Threshold: 10},
	{ID: "50-challenges", Name: "Pro Skater", Stat: StatChallengesCompleted, Threshold: 50},
}

func statValue(p *user.Profile, s Stat) int {
	switch s {
	case StatXP:
		return p.XP
	case StatStreak:
		return p.Streak
	case StatSpotsAdded:
		return p.SpotsAdded
	case StatChallengesCompleted:
		return p.ChallengesCompleted
	}
	return 0
}

// Evaluate returns every badge id the profile's current stats qualify for.
// Pure and safe to call redundantly.
func Evaluate(p *user.Profile) []string {
	var ids []string
	for _, r := range Rules {
		if statValue(p, r.Stat) >= r.Threshold {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Missing returns the qualified badges the profile does not hold yet.
// Granting is append-only, so calling this twice in a row yields nothing
// the second time.
func Missing(p *user.Profile) []string {
	var ids []string
	for _, id := range Evaluate(p) {
		if !p.HasBadge(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Grant unions the missing badges into the profile and returns the ones
// added. It never removes a badge.
func Grant(p *user.Profile) []string {
	added := Missing(p)
	p.Badges = append(p.Badges, added...)
	return added
}

// Lookup returns the rule for a badge id, for display purposes.
func Lookup(id string) (Rule, bool) {
	for _, r := range Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
