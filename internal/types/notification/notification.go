package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeCalloutReceived  NotificationType = "callout_received"
	TypeCalloutCompleted NotificationType = "callout_completed"
	TypeBadgeUnlocked    NotificationType = "badge_unlocked"
	TypeStreakMilestone  NotificationType = "streak_milestone"
)

type DeviceToken struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	Token      string    `json:"token"`
	Platform   string    `json:"platform"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

type Push struct {
	UserID string           `json:"user_id"`
	Type   NotificationType `json:"type"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Data   map[string]any   `json:"data,omitempty"`
}
