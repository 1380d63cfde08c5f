package lounge

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID       uuid.UUID `json:"id"`
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type RoomResponse struct {
	RoomID  string `json:"room_id"`
	Name    string `json:"name"`
	HostID  string `json:"host"`
	Members int    `json:"members"`
	WsURL   string `json:"ws_url"`
}
