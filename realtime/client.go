package realtime

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	errs "github.com/shashank8536/Campus-MarketPlace/errors"
	"github.com/shashank8536/Campus-MarketPlace/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256

	// Bounded retry for store calls that look transient (5xx). Validation
	// and authorization failures are surfaced immediately.
	maxStoreAttempts = 3
	storeRetryDelay  = 100 * time.Millisecond
)

// Client mediates between one websocket connection and the hub. All inbound
// events for a connection are handled serially in its readPump, which is
// what preserves per-sender ordering; outbound writes go through the
// buffered send channel so fan-out never blocks on a slow peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// uuid.Nil until an identity is bound. Only readPump writes it, so no
	// lock is needed.
	userID uuid.UUID
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readPump error: %v", err)
			}
			return
		}
		c.handleEvent(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(env Envelope) {
	if env.Event == EventAuthenticate {
		c.handleAuthenticate(env)
		return
	}
	if c.userID == uuid.Nil {
		c.sendError("Not authenticated")
		return
	}

	switch env.Event {
	case EventJoinConversation:
		c.handleJoinConversation(env)
	case EventLeaveConversation:
		c.handleLeaveConversation(env)
	case EventSendMessage:
		c.handleSendMessage(env)
	case EventTyping:
		c.handleTyping(env)
	case EventMarkRead:
		c.handleMarkRead(env)
	default:
		c.sendError("Unknown event: " + env.Event)
	}
}

// handleAuthenticate is the manual fallback for clients whose session
// credential did not reach the upgrade request. A session-bound identity is
// authoritative and is never overridden.
func (c *Client) handleAuthenticate(env Envelope) {
	if c.userID != uuid.Nil {
		return
	}

	var payload AuthenticatePayload
	if err := decodePayload(env.Data, &payload); err != nil {
		c.sendError("Invalid authenticate payload")
		return
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		c.sendError("Invalid authenticate payload")
		return
	}

	c.userID = userID
	c.hub.bindUser(c)
}

func (c *Client) handleJoinConversation(env Envelope) {
	var payload JoinConversationPayload
	if err := decodePayload(env.Data, &payload); err != nil {
		c.sendError("Invalid join_conversation payload")
		return
	}
	conversationID := uuid.MustParse(payload.ConversationID)

	if _, err := c.hub.service.ConversationForParticipant(conversationID, c.userID); err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.joinConversation(c, conversationID)
}

func (c *Client) handleLeaveConversation(env Envelope) {
	var payload JoinConversationPayload
	if err := decodePayload(env.Data, &payload); err != nil {
		c.sendError("Invalid leave_conversation payload")
		return
	}
	c.hub.leaveConversation(c, uuid.MustParse(payload.ConversationID))
}

func (c *Client) handleSendMessage(env Envelope) {
	var payload SendMessagePayload
	if err := decodePayload(env.Data, &payload); err != nil {
		c.sendError("Invalid send_message payload")
		return
	}
	conversationID := uuid.MustParse(payload.ConversationID)

	var msg *models.Message
	err := retryStore(func() error {
		var serr error
		msg, serr = c.hub.service.SendMessage(conversationID, c.userID, payload.Content)
		return serr
	})
	if err != nil {
		c.sendError(err.Error())
		return
	}
	message := NewMessagePayload(msg)

	// The sender's room copy is the authoritative echo the client
	// reconciles its optimistic message against, so no exclusion here.
	c.hub.broadcastToConversation(conversationID, EventReceiveMessage, ReceiveMessagePayload{
		Message:        message,
		ConversationID: conversationID,
	}, nil)

	if payload.ReceiverID == "" {
		return
	}
	receiverID := uuid.MustParse(payload.ReceiverID)
	c.hub.broadcastToUser(receiverID, EventNewMessageNotification, NewMessageNotificationPayload{
		Message:        message,
		ConversationID: conversationID,
		Sender:         message.Sender,
	})
	c.hub.pushIfOffline(receiverID, msg)
}

func (c *Client) handleTyping(env Envelope) {
	var payload TypingPayload
	if err := decodePayload(env.Data, &payload); err != nil {
		c.sendError("Invalid typing payload")
		return
	}
	// Ephemeral: relayed, never persisted.
	c.hub.broadcastToConversation(uuid.MustParse(payload.ConversationID), EventUserTyping, UserTypingPayload{
		UserID:   c.userID,
		IsTyping: payload.IsTyping,
	}, c)
}

func (c *Client) handleMarkRead(env Envelope) {
	var payload MarkReadPayload
	if err := decodePayload(env.Data, &payload); err != nil {
		c.sendError("Invalid mark_read payload")
		return
	}
	conversationID := uuid.MustParse(payload.ConversationID)

	err := retryStore(func() error {
		_, merr := c.hub.service.MarkConversationRead(conversationID, c.userID)
		return merr
	})
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.hub.broadcastToConversation(conversationID, EventMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		ReadBy:         c.userID,
	}, c)
}

// retryStore runs a store call, retrying only when the failure looks
// transient. Client errors (4xx) come back immediately.
func retryStore(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxStoreAttempts; attempt++ {
		if err = fn(); err == nil || errs.Status(err) < http.StatusInternalServerError {
			return err
		}
		time.Sleep(storeRetryDelay)
	}
	return err
}

// enqueue hands data to the write pump without blocking the caller. A full
// buffer means a stalled consumer; the event is dropped and the connection
// left to the ping/pong deadline.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("dropping event for slow connection (user %s)", c.userID)
	}
}

func (c *Client) sendEvent(event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("could not marshal %s event: %v", event, err)
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventError, ErrorPayload{Message: message})
}
