package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"skateQuestAPI/internal/types/notification"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"
)

type NotificationHandler struct {
	dispatcher *services.NotificationDispatcher
}

func NewNotificationHandler(dispatcher *services.NotificationDispatcher) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
	}
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req notification.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.dispatcher.RegisterDevice(ctx, clerkID, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}

func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.dispatcher.UnregisterDevice(ctx, clerkID, req.Token); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Device unregistered"})
}
