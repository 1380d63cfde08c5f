package integration

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skateQuestAPI/handlers"
	"skateQuestAPI/services"
	"skateQuestAPI/tests/helpers"
)

func postWebhook(t *testing.T, handler *handlers.WebhookHandler, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	// No CLERK_WEBHOOK_SECRET in the test env means signature checks are
	// skipped.
	os.Unsetenv("CLERK_WEBHOOK_SECRET")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.HandleClerkWebhook(rr, req)
	return rr
}

func TestClerkWebhook_UserCreated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	webhookHandler := handlers.NewWebhookHandler(userService)

	clerkID := helpers.TestClerkID("wh_create")
	payload := helpers.MockClerkWebhookPayload("user.created", clerkID)

	rr := postWebhook(t, webhookHandler, payload)
	assert.Equal(t, http.StatusOK, rr.Code)

	profile, err := userService.GetProfileByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	assert.Equal(t, "testskater", profile.Username)
	assert.Equal(t, 0, profile.XP)
	assert.Equal(t, 1, profile.Level)
}

func TestClerkWebhook_UserCreated_Idempotent(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	webhookHandler := handlers.NewWebhookHandler(userService)

	clerkID := helpers.TestClerkID("wh_dup")
	payload := helpers.MockClerkWebhookPayload("user.created", clerkID)

	rr := postWebhook(t, webhookHandler, payload)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Clerk redelivers webhooks; a duplicate must not fail or reset the
	// profile.
	rr = postWebhook(t, webhookHandler, payload)
	assert.Equal(t, http.StatusOK, rr.Code)

	profile, err := userService.GetProfileByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	assert.Equal(t, clerkID, profile.ClerkID)
}

func TestClerkWebhook_UserDeleted(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	webhookHandler := handlers.NewWebhookHandler(userService)

	clerkID := helpers.TestClerkID("wh_delete")

	rr := postWebhook(t, webhookHandler, helpers.MockClerkWebhookPayload("user.created", clerkID))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postWebhook(t, webhookHandler, helpers.MockClerkWebhookPayload("user.deleted", clerkID))
	assert.Equal(t, http.StatusOK, rr.Code)

	_, err := userService.GetProfileByClerkID(context.Background(), clerkID)
	assert.Error(t, err)
}
