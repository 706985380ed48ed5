package realtime

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shashank8536/Campus-MarketPlace/db"
	"github.com/shashank8536/Campus-MarketPlace/models"
	"github.com/shashank8536/Campus-MarketPlace/services"
)

// Hub keeps the registries of live connections and their rooms: one room
// per conversation and one per user (all of that user's devices). The
// registries are routing state only — nothing here is durable or
// authoritative, and presence answers are best-effort.
type Hub struct {
	mu                sync.RWMutex
	clients           map[*Client]struct{}
	userRooms         map[uuid.UUID]map[*Client]struct{}
	conversationRooms map[uuid.UUID]map[*Client]struct{}

	service  services.MessageService
	authRepo db.AuthRepository
	notifier services.Notifier
}

// NewHub creates a hub. notifier may be nil when push is not configured.
func NewHub(service services.MessageService, authRepo db.AuthRepository, notifier services.Notifier) *Hub {
	return &Hub{
		clients:           make(map[*Client]struct{}),
		userRooms:         make(map[uuid.UUID]map[*Client]struct{}),
		conversationRooms: make(map[uuid.UUID]map[*Client]struct{}),
		service:           service,
		authRepo:          authRepo,
		notifier:          notifier,
	}
}

// HandleConnection registers an upgraded websocket connection and starts its
// pumps. userID is uuid.Nil when the session credential did not resolve; the
// client may still bind via the authenticate event.
func (h *Hub) HandleConnection(conn *websocket.Conn, userID uuid.UUID) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	if userID != uuid.Nil {
		h.bindUser(client)
	}

	go client.writePump()
	go client.readPump()
}

// bindUser joins the client to its personal room.
func (h *Hub) bindUser(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.userRooms[c.userID]
	if !ok {
		room = make(map[*Client]struct{})
		h.userRooms[c.userID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if room, ok := h.userRooms[c.userID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.userRooms, c.userID)
		}
	}
	for id, room := range h.conversationRooms {
		delete(room, c)
		if len(room) == 0 {
			delete(h.conversationRooms, id)
		}
	}
	close(c.send)
}

func (h *Hub) joinConversation(c *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.conversationRooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.conversationRooms[conversationID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) leaveConversation(c *Client, conversationID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.conversationRooms[conversationID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.conversationRooms, conversationID)
	}
}

// broadcastToConversation fans an event out to every connection in the
// conversation room, optionally excluding one.
func (h *Hub) broadcastToConversation(conversationID uuid.UUID, event string, payload interface{}, except *Client) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("could not marshal %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.conversationRooms[conversationID] {
		if client == except {
			continue
		}
		client.enqueue(data)
	}
}

// broadcastToUser fans an event out to all of a user's connections,
// independent of conversation-room membership.
func (h *Hub) broadcastToUser(userID uuid.UUID, event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("could not marshal %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.userRooms[userID] {
		client.enqueue(data)
	}
}

// BroadcastMessage fans a stored message out the same way the realtime send
// path does, for messages that arrived over REST. receiverID may be uuid.Nil
// when the caller does not know the counterpart.
func (h *Hub) BroadcastMessage(msg *models.Message, receiverID uuid.UUID) {
	payload := NewMessagePayload(msg)
	h.broadcastToConversation(msg.ConversationID, EventReceiveMessage, ReceiveMessagePayload{
		Message:        payload,
		ConversationID: msg.ConversationID,
	}, nil)

	if receiverID == uuid.Nil {
		return
	}
	h.broadcastToUser(receiverID, EventNewMessageNotification, NewMessageNotificationPayload{
		Message:        payload,
		ConversationID: msg.ConversationID,
		Sender:         payload.Sender,
	})
	h.pushIfOffline(receiverID, msg)
}

// BroadcastRead tells the conversation room that readerID has caught up.
func (h *Hub) BroadcastRead(conversationID, readerID uuid.UUID) {
	h.broadcastToConversation(conversationID, EventMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		ReadBy:         readerID,
	}, nil)
}

// pushIfOffline forwards the message to the recipient's registered device
// when no live connection of theirs would have seen the broadcast.
func (h *Hub) pushIfOffline(receiverID uuid.UUID, msg *models.Message) {
	if h.notifier == nil || h.IsUserOnline(receiverID) {
		return
	}
	recipient, err := h.authRepo.FindUserByID(receiverID)
	if err != nil {
		log.Printf("could not load push recipient %s: %v", receiverID, err)
		return
	}
	if err := h.notifier.NotifyNewMessage(recipient, msg); err != nil {
		log.Printf("could not push to user %s: %v", receiverID, err)
	}
}

// IsUserOnline reports whether the user has at least one live connection.
// Advisory only: a user can miss a broadcast between this check and the
// fan-out.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userRooms[userID]) > 0
}

// OnlineUserCount returns the number of distinct users with a live
// connection.
func (h *Hub) OnlineUserCount() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return int64(len(h.userRooms))
}
