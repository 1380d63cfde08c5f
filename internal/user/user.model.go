package user

import "time"

type Profile struct {
	ID                  string     `json:"id"`
	ClerkID             string     `json:"clerkId"`
	Username            string     `json:"username"`
	ImageURL            string     `json:"imageUrl,omitempty"`
	XP                  int        `json:"xp"`
	Level               int        `json:"level"`
	SpotsAdded          int        `json:"spotsAdded"`
	ChallengesCompleted int        `json:"challengesCompleted"`
	Streak              int        `json:"streak"`
	LastCompleted       *time.Time `json:"lastCompleted,omitempty"`
	Badges              []string   `json:"badges"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// HasBadge reports whether the badge was already granted. Badges are
// never revoked, so a true result is permanent.
func (p *Profile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}
