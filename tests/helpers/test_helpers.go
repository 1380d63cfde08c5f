package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SetupTestDB connects to the test database, skipping the test when no
// database is configured.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CleanupTestDB removes rows created by the tests and closes the pool.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM users WHERE clerk_id LIKE 'user_test_%'")
	if err != nil {
		t.Logf("Warning: failed to cleanup users: %v", err)
	}
	_, err = pool.Exec(ctx, "DELETE FROM challenges WHERE challenger_id LIKE 'user_test_%'")
	if err != nil {
		t.Logf("Warning: failed to cleanup challenges: %v", err)
	}
	_, err = pool.Exec(ctx, "DELETE FROM spots WHERE added_by LIKE 'user_test_%'")
	if err != nil {
		t.Logf("Warning: failed to cleanup spots: %v", err)
	}
	pool.Close()
}

// TestClerkID builds a unique clerk id so parallel runs never collide.
func TestClerkID(prefix string) string {
	return fmt.Sprintf("user_test_%s_%d", prefix, time.Now().UnixNano())
}

// GenerateMockClerkJWT generates a mock JWT token for testing
func GenerateMockClerkJWT(clerkID string) (string, error) {
	secretKey := []byte("test-secret-key-for-testing-only")

	claims := jwt.MapClaims{
		"sub": clerkID,
		"iss": "https://clerk.test",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
		"azp": "test-app-id",
		"sid": "sess_test123",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// MockClerkWebhookPayload creates a mock webhook payload
func MockClerkWebhookPayload(eventType string, clerkID string) []byte {
	payload := ""

	switch eventType {
	case "user.created":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Test",
				"last_name": "Skater",
				"username": "testskater",
				"image_url": "https://example.com/image.jpg",
				"email_addresses": [{
					"id": "email_123",
					"email_address": "test.skater@example.com",
					"verification": {"status": "verified"}
				}]
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)

	case "user.updated":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Updated",
				"last_name": "Skater",
				"username": "updatedskater",
				"image_url": "https://example.com/new-image.jpg"
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)

	case "user.deleted":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"deleted": true
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)
	}

	return []byte(payload)
}
