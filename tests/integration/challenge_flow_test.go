package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skateQuestAPI/handlers"
	"skateQuestAPI/internal/types/challenge"
	"skateQuestAPI/internal/types/spot"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"
	"skateQuestAPI/tests/helpers"
)

func authedRequest(method, target string, body []byte, clerkID string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	return req.WithContext(ctx)
}

// Full lifecycle: add a spot, post a challenge on it, complete it, then
// watch a second completer bounce off.
func TestChallengeFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	spotService := services.NewSpotService(pool)
	challengeService := services.NewChallengeService(pool, services.NewPgProgressionStore(pool), nil)

	spotHandler := handlers.NewSpotHandler(spotService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/spots", spotHandler.AddSpot).Methods("POST")
	router.HandleFunc("/api/v1/challenges", challengeHandler.CreateChallenge).Methods("POST")
	router.HandleFunc("/api/v1/challenges/{id}/complete", challengeHandler.CompleteChallenge).Methods("POST")
	router.HandleFunc("/api/v1/spots/{id}/challenges", challengeHandler.GetSpotChallenges).Methods("GET")

	creator := helpers.TestClerkID("flow_creator")
	completer := helpers.TestClerkID("flow_completer")
	loser := helpers.TestClerkID("flow_loser")

	// Spot contribution pays out immediately.
	spotBody, _ := json.Marshal(spot.CreateSpotRequest{
		Name:      "Ledge Plaza",
		Latitude:  42.6977,
		Longitude: 23.3219,
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/spots", spotBody, creator))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var createdSpot spot.Spot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &createdSpot))

	creatorProfile, err := userService.GetProfileByClerkID(context.Background(), creator)
	require.NoError(t, err)
	assert.Equal(t, services.SpotXPReward, creatorProfile.XP)
	assert.Equal(t, 1, creatorProfile.SpotsAdded)
	assert.Contains(t, creatorProfile.Badges, "first-spot")
	assert.Contains(t, creatorProfile.Badges, "100-xp")

	// Post a challenge on the spot.
	chBody, _ := json.Marshal(challenge.CreateChallengeRequest{
		SpotID: createdSpot.ID.String(),
		Trick:  "nollie heelflip",
		XP:     100,
	})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/challenges", chBody, creator))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created challenge.Challenge
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, challenge.StatusPending, created.Status)

	// First completer wins the XP.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/challenges/"+created.ID.String()+"/complete", nil, completer))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result challenge.CompletionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 100, result.XPAwarded)
	assert.Equal(t, 100, result.NewXP)
	assert.Equal(t, 1, result.NewStreak)

	// Second completer is told it is gone, and pays nothing.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/challenges/"+created.ID.String()+"/complete", nil, loser))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, challenge.ReasonAlreadyCompleted, result.Reason)

	loserProfile, err := userService.GetProfileByClerkID(context.Background(), loser)
	require.NoError(t, err)
	assert.Equal(t, 0, loserProfile.XP)

	// The spot's challenge list reflects the completion.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/api/v1/spots/"+createdSpot.ID.String()+"/challenges", nil, creator))
	require.Equal(t, http.StatusOK, rr.Code)

	var challenges []*challenge.Challenge
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &challenges))
	require.Len(t, challenges, 1)
	assert.Equal(t, challenge.StatusComplete, challenges[0].Status)
	require.NotNil(t, challenges[0].CompletedBy)
	assert.Equal(t, completer, *challenges[0].CompletedBy)
}

func TestCompleteChallenge_UnknownID(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	challengeService := services.NewChallengeService(pool, services.NewPgProgressionStore(pool), nil)
	challengeHandler := handlers.NewChallengeHandler(challengeService)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/challenges/{id}/complete", challengeHandler.CompleteChallenge).Methods("POST")

	clerkID := helpers.TestClerkID("flow_missing")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/api/v1/challenges/00000000-0000-0000-0000-000000000000/complete", nil, clerkID))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var result challenge.CompletionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, challenge.ReasonNotFound, result.Reason)
}
