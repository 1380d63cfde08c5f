package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	fcm "skateQuestAPI/internal/notification"
	"skateQuestAPI/internal/types/notification"
)

// NotificationDispatcher resolves a user's registered devices and pushes
// through FCM. A nil fcm client turns every send into a no-op, which is
// how local development runs without Firebase credentials.
type NotificationDispatcher struct {
	db  *pgxpool.Pool
	fcm *fcm.FCMService
}

func NewNotificationDispatcher(db *pgxpool.Pool, fcmService *fcm.FCMService) *NotificationDispatcher {
	return &NotificationDispatcher{db: db, fcm: fcmService}
}

// RegisterDevice upserts a device token for the user. Re-registering an
// existing token just bumps last_seen_at.
func (d *NotificationDispatcher) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	if req.Token == "" {
		return fmt.Errorf("token is required")
	}
	switch req.Platform {
	case "ios", "android", "web":
	default:
		return fmt.Errorf("platform must be ios, android or web")
	}

	query := `
	INSERT INTO device_tokens (id, user_id, token, platform, created_at, last_seen_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (token) DO UPDATE
	SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, last_seen_at = NOW()
	`

	_, err := d.db.Exec(ctx, query, uuid.New(), clerkID, req.Token, req.Platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// UnregisterDevice drops a token, for sign-out or uninstall.
func (d *NotificationDispatcher) UnregisterDevice(ctx context.Context, clerkID, token string) error {
	_, err := d.db.Exec(ctx, `DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`, clerkID, token)
	if err != nil {
		return fmt.Errorf("failed to unregister device: %w", err)
	}
	return nil
}

// SendToUser delivers the push to every device the user has registered.
// Best-effort: failures are logged, never bubbled to the caller's
// request path.
func (d *NotificationDispatcher) SendToUser(ctx context.Context, push *notification.Push) {
	if d.fcm == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tokens, err := d.tokensForUser(ctx, push.UserID)
	if err != nil {
		log.Printf("notifications: failed to load tokens for %s: %v", push.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	data := map[string]any{"type": string(push.Type)}
	for k, v := range push.Data {
		data[k] = v
	}

	if err := d.fcm.SendPush(ctx, tokens, push.Title, push.Body, data); err != nil {
		log.Printf("notifications: push to %s failed: %v", push.UserID, err)
	}
}

func (d *NotificationDispatcher) tokensForUser(ctx context.Context, clerkID string) ([]notification.DeviceToken, error) {
	query := `
	SELECT id, user_id, token, platform, created_at, last_seen_at
	FROM device_tokens
	WHERE user_id = $1
	`

	rows, err := d.db.Query(ctx, query, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt, &t.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
