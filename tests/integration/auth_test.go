package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skateQuestAPI/handlers"
	"skateQuestAPI/internal/user"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"
	"skateQuestAPI/tests/helpers"
)

func TestGetProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	userHandler := handlers.NewUserHandler(userService)

	clerkID := helpers.TestClerkID("auth")

	// GetProfile lazily creates the profile, so no seeding needed.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	userHandler.GetProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response user.Profile
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, clerkID, response.ClerkID)
	assert.Equal(t, 0, response.XP)
	assert.Equal(t, 1, response.Level)
	assert.NotEmpty(t, response.Username)
}

func TestGetProfile_Unauthenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	userHandler := handlers.NewUserHandler(userService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	rr := httptest.NewRecorder()

	userHandler.GetProfile(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var response map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Contains(t, response["error"], "not authenticated")
}

func TestUpdateProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	userHandler := handlers.NewUserHandler(userService)

	clerkID := helpers.TestClerkID("update")

	_, err := userService.GetOrCreateProfile(context.Background(), clerkID)
	require.NoError(t, err)

	body, _ := json.Marshal(user.UpdateProfileRequest{Username: "railslayer"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/user/update-profile", bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	userHandler.UpdateProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response user.Profile
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "railslayer", response.Username)
}

func TestGetBadges_EmptyProfile(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	userHandler := handlers.NewUserHandler(userService)

	clerkID := helpers.TestClerkID("badges")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/badges", nil)
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	userHandler.GetBadges(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response []*services.BadgeWithStatus
	err := json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	require.NotEmpty(t, response)
	for _, b := range response {
		assert.False(t, b.Unlocked, "fresh profile holds no badges")
	}
}
