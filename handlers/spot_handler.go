package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"skateQuestAPI/internal/types/spot"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"
)

type SpotHandler struct {
	spotService *services.SpotService
}

func NewSpotHandler(spotService *services.SpotService) *SpotHandler {
	return &SpotHandler{
		spotService: spotService,
	}
}

func (h *SpotHandler) AddSpot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req spot.CreateSpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.spotService.AddSpot(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.XPAwarded.WithLabelValues("spot").Add(float64(services.SpotXPReward))

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *SpotHandler) GetSpots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	spots, err := h.spotService.GetSpots(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load spots")
		return
	}

	respondWithJSON(w, http.StatusOK, spots)
}

// GetNearbySpots expects lat and lng query params, radius_km optional.
func (h *SpotHandler) GetNearbySpots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil {
		respondWithError(w, http.StatusBadRequest, "lat and lng query parameters are required")
		return
	}

	radiusKm := 10.0
	if s := r.URL.Query().Get("radius_km"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			radiusKm = v
		}
	}

	spots, err := h.spotService.GetNearbySpots(ctx, lat, lng, radiusKm)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load nearby spots")
		return
	}

	respondWithJSON(w, http.StatusOK, spots)
}

func (h *SpotHandler) GetSpot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sp, err := h.spotService.GetSpot(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Spot not found")
		return
	}

	respondWithJSON(w, http.StatusOK, sp)
}

func (h *SpotHandler) ShareSpot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	share, err := h.spotService.ShareSpot(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Spot not found")
		return
	}

	respondWithJSON(w, http.StatusOK, share)
}
