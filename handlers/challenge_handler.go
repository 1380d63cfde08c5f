package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"skateQuestAPI/internal/progression"
	"skateQuestAPI/internal/types/challenge"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.challengeService.CreateChallenge(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// CompleteChallenge maps the completion outcomes onto HTTP. A challenge
// that was already completed is a 200 with success=false, matching what
// the mobile client expects; only the terminal failures are errors.
func (h *ChallengeHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		middleware.ChallengeCompletions.WithLabelValues("unauthenticated").Inc()
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID := mux.Vars(r)["id"]

	result, err := h.challengeService.CompleteChallenge(ctx, challengeID, clerkID)
	if err != nil {
		switch {
		case errors.Is(err, progression.ErrChallengeNotFound):
			middleware.ChallengeCompletions.WithLabelValues("not_found").Inc()
			respondWithJSON(w, http.StatusNotFound, &challenge.CompletionResult{
				Success: false,
				Reason:  challenge.ReasonNotFound,
			})
		case errors.Is(err, progression.ErrConflict):
			middleware.ChallengeCompletions.WithLabelValues("conflict").Inc()
			w.Header().Set("Retry-After", "1")
			respondWithError(w, http.StatusServiceUnavailable, "Completion contended, try again")
		default:
			middleware.ChallengeCompletions.WithLabelValues("error").Inc()
			respondWithError(w, http.StatusInternalServerError, "Failed to complete challenge")
		}
		return
	}

	if result.Success {
		middleware.ChallengeCompletions.WithLabelValues("completed").Inc()
		middleware.XPAwarded.WithLabelValues("challenge").Add(float64(result.XPAwarded))
	} else {
		middleware.ChallengeCompletions.WithLabelValues(result.Reason).Inc()
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ChallengeHandler) GetSpotChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	spotID := mux.Vars(r)["id"]

	challenges, err := h.challengeService.GetSpotChallenges(ctx, spotID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetMyChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challenges, err := h.challengeService.GetMyChallenges(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}
