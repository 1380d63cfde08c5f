package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"

	"skateQuestAPI/internal/types/lounge"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// How many recent messages a client gets replayed on join.
	historyLimit = 50
)

// Room is one lounge chat. Clients register and unregister through
// channels; the Run loop owns the client map so no locking is needed
// around it.
type Room struct {
	ID          string
	Name        string
	HostID      string
	Manager     *LoungeManager
	Clients     map[*LoungeClient]bool
	Broadcast   chan []byte
	Register    chan *LoungeClient
	Unregister  chan *LoungeClient
	TriggerList chan bool
}

func newRoom(id, name, hostID string, manager *LoungeManager) *Room {
	return &Room{
		ID:          id,
		Name:        name,
		HostID:      hostID,
		Manager:     manager,
		Clients:     make(map[*LoungeClient]bool),
		Broadcast:   make(chan []byte),
		Register:    make(chan *LoungeClient),
		Unregister:  make(chan *LoungeClient),
		TriggerList: make(chan bool),
	}
}

type memberInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

// sendMemberListToAll is only called inside Run, so reading Clients is safe.
func (r *Room) sendMemberListToAll() {
	members := []memberInfo{}
	for client := range r.Clients {
		if client.Username != "" {
			members = append(members, memberInfo{
				ID:       client.UserID,
				Username: client.Username,
				IsHost:   client.UserID == r.HostID,
			})
		}
	}

	payload := map[string]interface{}{
		"action":  "update_member_list",
		"members": members,
	}

	data, _ := json.Marshal(payload)

	for client := range r.Clients {
		select {
		case client.Send <- data:
		default:
			close(client.Send)
			delete(r.Clients, client)
		}
	}
}

func (r *Room) Run() {
	defer func() {
		close(r.Broadcast)
		close(r.Register)
		close(r.Unregister)
		close(r.TriggerList)
	}()

	for {
		select {
		case client := <-r.Register:
			r.Clients[client] = true
			log.Printf("[Lounge %s] User connected. Count: %d", r.ID, len(r.Clients))

		case <-r.TriggerList:
			r.sendMemberListToAll()

		case client := <-r.Unregister:
			if _, ok := r.Clients[client]; ok {
				delete(r.Clients, client)
				close(client.Send)

				// Last one out closes the room.
				if len(r.Clients) == 0 {
					log.Printf("[Lounge %s] Empty, destroying.", r.ID)
					r.Manager.DeleteRoom(r.ID)
					return
				}
				r.sendMemberListToAll()
			}

		case message := <-r.Broadcast:
			for client := range r.Clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(r.Clients, client)
				}
			}
		}
	}
}

// LoungeManager holds all live rooms. Chat history is persisted so a
// room's messages survive the room going empty.
type LoungeManager struct {
	db    *pgxpool.Pool
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewLoungeManager(db *pgxpool.Pool) *LoungeManager {
	return &LoungeManager{
		db:    db,
		rooms: make(map[string]*Room),
	}
}

func (m *LoungeManager) CreateRoom(ctx context.Context, roomID, name, clerkID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[roomID]; ok {
		return r
	}

	r := newRoom(roomID, name, clerkID, m)
	m.rooms[roomID] = r
	go r.Run()
	return r
}

func (m *LoungeManager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

func (m *LoungeManager) GetPublicRooms() []lounge.RoomResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]lounge.RoomResponse, 0)
	for _, r := range m.rooms {
		rooms = append(rooms, lounge.RoomResponse{
			RoomID:  r.ID,
			Name:    r.Name,
			HostID:  r.HostID,
			Members: len(r.Clients),
		})
	}
	return rooms
}

func (m *LoungeManager) DeleteRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}

// saveMessage persists a chat line so it can be replayed to late joiners.
func (m *LoungeManager) saveMessage(ctx context.Context, msg *lounge.Message) {
	query := `
	INSERT INTO lounge_messages (id, room_id, user_id, username, content, sent_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := m.db.Exec(ctx, query, msg.ID, msg.RoomID, msg.UserID, msg.Username, msg.Content, msg.SentAt)
	if err != nil {
		log.Printf("[Lounge %s] failed to persist message: %v", msg.RoomID, err)
	}
}

// RecentMessages returns the last historyLimit messages for a room,
// oldest first.
func (m *LoungeManager) RecentMessages(ctx context.Context, roomID string) ([]*lounge.Message, error) {
	query := `
	SELECT id, room_id, user_id, username, content, sent_at
	FROM (
		SELECT id, room_id, user_id, username, content, sent_at
		FROM lounge_messages
		WHERE room_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	) recent
	ORDER BY sent_at
	`

	rows, err := m.db.Query(ctx, query, roomID, historyLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*lounge.Message{}
	for rows.Next() {
		msg := &lounge.Message{}
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Username, &msg.Content, &msg.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LoungeClient sits between one websocket connection and the room.
type LoungeClient struct {
	Room     *Room
	Conn     *websocket.Conn
	Send     chan []byte
	UserID   string
	Username string
}

type wsPayload struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`
}

func (c *LoungeClient) ReadPump() {
	defer func() {
		c.Room.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Lounge %s] read error: %v", c.Room.ID, err)
			}
			break
		}

		var payload wsPayload
		if err := json.Unmarshal(message, &payload); err != nil {
			continue
		}

		switch payload.Action {
		case "join_room":
			c.Username = payload.Username
			c.Room.Broadcast <- message
			c.Room.TriggerList <- true

		case "chat":
			if payload.Content == "" {
				continue
			}
			msg := &lounge.Message{
				ID:       uuid.New(),
				RoomID:   c.Room.ID,
				UserID:   c.UserID,
				Username: c.Username,
				Content:  payload.Content,
				SentAt:   time.Now(),
			}
			c.Room.Manager.saveMessage(context.Background(), msg)

			out, err := json.Marshal(map[string]interface{}{
				"action":  "chat",
				"message": msg,
			})
			if err != nil {
				continue
			}
			c.Room.Broadcast <- out
		}
	}
}

// WritePump handles messages going to the client, plus heartbeats.
func (c *LoungeClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The room closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
