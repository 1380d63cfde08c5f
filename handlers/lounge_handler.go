package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"skateQuestAPI/internal/types/lounge"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type LoungeHandler struct {
	loungeManager *services.LoungeManager
}

func NewLoungeHandler(loungeManager *services.LoungeManager) *LoungeHandler {
	return &LoungeHandler{
		loungeManager: loungeManager,
	}
}

func (h *LoungeHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req lounge.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name is required")
		return
	}

	roomID := uuid.New().String()
	room := h.loungeManager.CreateRoom(ctx, roomID, req.Name, clerkID)

	respondWithJSON(w, http.StatusOK, lounge.RoomResponse{
		RoomID: room.ID,
		Name:   room.Name,
		HostID: room.HostID,
		WsURL:  "/api/v1/lounge/ws/" + room.ID,
	})
}

func (h *LoungeHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.loungeManager.GetPublicRooms()

	respondWithJSON(w, http.StatusOK, rooms)
}

func (h *LoungeHandler) GetRoomHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	roomID := mux.Vars(r)["roomID"]

	messages, err := h.loungeManager.RecentMessages(ctx, roomID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	respondWithJSON(w, http.StatusOK, messages)
}

// JoinRoom upgrades to a websocket and attaches the client to the room.
// Auth rides the token query parameter, handled by the middleware.
func (h *LoungeHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomID := mux.Vars(r)["roomID"]

	room, exists := h.loungeManager.GetRoom(roomID)
	if !exists {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}

	history, err := h.loungeManager.RecentMessages(r.Context(), roomID)
	if err != nil {
		log.Printf("lounge: failed to load history for %s: %v", roomID, err)
		history = nil
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &services.LoungeClient{
		Room:   room,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: clerkID,
	}

	room.Register <- client
	go client.WritePump()
	go client.ReadPump()

	if len(history) > 0 {
		if data, err := json.Marshal(map[string]interface{}{
			"action":   "history",
			"messages": history,
		}); err == nil {
			client.Send <- data
		}
	}
}
