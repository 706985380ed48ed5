// Package client implements the chat client used by campus frontends: a
// websocket session against the realtime gateway with optimistic sends
// reconciled against the authoritative broadcast, and a REST fallback for
// when the socket is down.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/shashank8536/Campus-MarketPlace/models"
	"github.com/shashank8536/Campus-MarketPlace/realtime"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
	defaultMaxReconnects  = 10
	requestTimeout        = 10 * time.Second
)

// Message is the client's local view of a chat message. A pending message
// exists only locally, identified by TempID until the authoritative copy
// replaces it.
type Message struct {
	ID             uuid.UUID      `json:"id"`
	TempID         string         `json:"tempId,omitempty"`
	ConversationID uuid.UUID      `json:"conversationId"`
	Sender         models.UserRef `json:"sender"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"createdAt"`
	Pending        bool           `json:"pending"`
}

// Options configures a Client. All callbacks are optional and are invoked
// from the client's read loop; they must not block.
type Options struct {
	BaseURL   string
	SocketURL string
	Token     string
	UserID    uuid.UUID
	UserName  string

	OnUpdate          func(conversationID uuid.UUID, messages []Message)
	OnSendFailed      func(conversationID uuid.UUID, draft string)
	OnMessagesRead    func(conversationID, readBy uuid.UUID)
	OnTyping          func(userID uuid.UUID, isTyping bool)
	OnNotification    func(conversationID uuid.UUID, message Message)
	OnConnectionState func(connected bool)

	MaxReconnectAttempts int
}

type Client struct {
	opts       Options
	httpClient *http.Client
	dialer     *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	// messages holds each conversation's local timeline; pending FIFOs track
	// optimistic sends awaiting their authoritative echo, oldest first.
	messages map[uuid.UUID][]Message
	pending  map[uuid.UUID][]string
}

func New(opts Options) *Client {
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = defaultMaxReconnects
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: requestTimeout},
		dialer:     websocket.DefaultDialer,
		messages:   make(map[uuid.UUID][]Message),
		pending:    make(map[uuid.UUID][]string),
	}
}

// Connect dials the gateway and starts the read loop. Reconnection after a
// dropped connection is automatic with doubling backoff.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.setConn(conn)
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	url := c.opts.SocketURL + "?token=" + c.opts.Token
	conn, _, err := c.dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dialing gateway")
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if c.opts.OnConnectionState != nil {
		c.opts.OnConnectionState(true)
	}
}

func (c *Client) dropConn() {
	c.mu.Lock()
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if c.opts.OnConnectionState != nil {
		c.opts.OnConnectionState(false)
	}
}

// Close shuts the client down; no reconnection is attempted afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			conn.Close()
			c.dropConn()
			c.reconnect()
			return
		}
		c.handleEvent(env)
	}
}

// reconnect retries with doubling backoff until it succeeds, the attempt
// budget runs out, or the client is closed. The disconnected indicator stays
// up the whole time; sends fall back to REST meanwhile.
func (c *Client) reconnect() {
	delay := initialReconnectDelay
	for attempt := 0; attempt < c.opts.MaxReconnectAttempts; attempt++ {
		time.Sleep(delay)
		if delay < maxReconnectDelay {
			delay *= 2
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}

		conn, err := c.dial()
		if err != nil {
			continue
		}
		c.setConn(conn)
		go c.readLoop(conn)
		return
	}
}

func (c *Client) handleEvent(env realtime.Envelope) {
	switch env.Event {
	case realtime.EventReceiveMessage:
		var payload realtime.ReceiveMessagePayload
		if json.Unmarshal(env.Data, &payload) == nil {
			c.mergeAuthoritative(payload.Message)
		}
	case realtime.EventNewMessageNotification:
		var payload realtime.NewMessageNotificationPayload
		if json.Unmarshal(env.Data, &payload) == nil && c.opts.OnNotification != nil {
			c.opts.OnNotification(payload.ConversationID, fromWire(payload.Message))
		}
	case realtime.EventMessagesRead:
		var payload realtime.MessagesReadPayload
		if json.Unmarshal(env.Data, &payload) == nil && c.opts.OnMessagesRead != nil {
			c.opts.OnMessagesRead(payload.ConversationID, payload.ReadBy)
		}
	case realtime.EventUserTyping:
		var payload realtime.UserTypingPayload
		if json.Unmarshal(env.Data, &payload) == nil && c.opts.OnTyping != nil {
			c.opts.OnTyping(payload.UserID, payload.IsTyping)
		}
	}
}

func fromWire(m realtime.MessagePayload) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// mergeAuthoritative folds a broadcast message into the local timeline. The
// client's own echo replaces its oldest pending send in place; sends are
// delivered in submission order per connection, so FIFO pairing is exact.
// Replacement never matches on content.
func (c *Client) mergeAuthoritative(wire realtime.MessagePayload) {
	msg := fromWire(wire)
	conversationID := msg.ConversationID

	c.mu.Lock()
	if msg.Sender.ID == c.opts.UserID {
		if queue := c.pending[conversationID]; len(queue) > 0 {
			tempID := queue[0]
			c.pending[conversationID] = queue[1:]
			c.replaceLocked(conversationID, tempID, msg)
			c.notifyUpdateLocked(conversationID)
			return
		}
	}
	c.messages[conversationID] = append(c.messages[conversationID], msg)
	c.notifyUpdateLocked(conversationID)
}

// replaceLocked swaps the provisional entry for the authoritative one,
// keeping its position in the timeline. Caller holds c.mu.
func (c *Client) replaceLocked(conversationID uuid.UUID, tempID string, msg Message) {
	timeline := c.messages[conversationID]
	for i := range timeline {
		if timeline[i].TempID == tempID {
			timeline[i] = msg
			return
		}
	}
	c.messages[conversationID] = append(timeline, msg)
}

// notifyUpdateLocked releases c.mu and fires OnUpdate with a copy.
func (c *Client) notifyUpdateLocked(conversationID uuid.UUID) {
	var snapshot []Message
	if c.opts.OnUpdate != nil {
		snapshot = append(snapshot, c.messages[conversationID]...)
	}
	c.mu.Unlock()
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(conversationID, snapshot)
	}
}

// Send renders the message optimistically and delivers it over exactly one
// path: the socket when connected, otherwise the REST fallback. It returns
// the temporary id of the provisional message.
func (c *Client) Send(conversationID, receiverID uuid.UUID, content string) (string, error) {
	tempID := "tmp-" + uuid.NewString()
	provisional := Message{
		TempID:         tempID,
		ConversationID: conversationID,
		Sender:         models.UserRef{ID: c.opts.UserID, Name: c.opts.UserName},
		Content:        content,
		CreatedAt:      time.Now(),
		Pending:        true,
	}

	c.mu.Lock()
	connected := c.connected
	c.messages[conversationID] = append(c.messages[conversationID], provisional)
	if connected {
		c.pending[conversationID] = append(c.pending[conversationID], tempID)
	}
	c.notifyUpdateLocked(conversationID)

	if connected {
		err := c.writeEvent(realtime.EventSendMessage, realtime.SendMessagePayload{
			ConversationID: conversationID.String(),
			Content:        content,
			ReceiverID:     receiverID.String(),
		})
		if err != nil {
			c.failSend(conversationID, tempID, content)
			return "", err
		}
		return tempID, nil
	}

	msg, err := c.sendOverREST(conversationID, receiverID, content)
	if err != nil {
		c.failSend(conversationID, tempID, content)
		return "", err
	}
	c.mu.Lock()
	c.replaceLocked(conversationID, tempID, msg)
	c.notifyUpdateLocked(conversationID)
	return tempID, nil
}

// failSend removes the provisional message and hands the draft back so the
// user can retry.
func (c *Client) failSend(conversationID uuid.UUID, tempID, draft string) {
	c.mu.Lock()
	timeline := c.messages[conversationID]
	for i := range timeline {
		if timeline[i].TempID == tempID {
			c.messages[conversationID] = append(timeline[:i], timeline[i+1:]...)
			break
		}
	}
	queue := c.pending[conversationID]
	for i := range queue {
		if queue[i] == tempID {
			c.pending[conversationID] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	c.notifyUpdateLocked(conversationID)

	if c.opts.OnSendFailed != nil {
		c.opts.OnSendFailed(conversationID, draft)
	}
}

type restEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  string          `json:"errors"`
}

type wireMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversationId"`
	Sender         struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Client) sendOverREST(conversationID, receiverID uuid.UUID, content string) (Message, error) {
	body, err := json.Marshal(map[string]string{
		"conversationId": conversationID.String(),
		"content":        content,
		"receiverId":     receiverID.String(),
	})
	if err != nil {
		return Message{}, err
	}

	req, err := http.NewRequest(http.MethodPost, c.opts.BaseURL+"/api/v1/messages/send", bytes.NewReader(body))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Message{}, errors.Wrap(err, "posting message")
	}
	defer resp.Body.Close()

	var envelope restEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Message{}, errors.Wrap(err, "decoding send response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Message{}, fmt.Errorf("send rejected: %s", envelope.Errors)
	}

	var wire wireMessage
	if err := json.Unmarshal(envelope.Data, &wire); err != nil {
		return Message{}, errors.Wrap(err, "decoding stored message")
	}
	return Message{
		ID:             wire.ID,
		ConversationID: wire.ConversationID,
		Sender:         models.UserRef{ID: wire.Sender.ID, Name: wire.Sender.Name},
		Content:        wire.Content,
		CreatedAt:      wire.CreatedAt,
	}, nil
}

func (c *Client) writeEvent(event string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(realtime.Envelope{Event: event, Data: data})
}

func (c *Client) JoinConversation(conversationID uuid.UUID) error {
	return c.writeEvent(realtime.EventJoinConversation, realtime.JoinConversationPayload{
		ConversationID: conversationID.String(),
	})
}

func (c *Client) LeaveConversation(conversationID uuid.UUID) error {
	return c.writeEvent(realtime.EventLeaveConversation, realtime.JoinConversationPayload{
		ConversationID: conversationID.String(),
	})
}

func (c *Client) Typing(conversationID uuid.UUID, isTyping bool) error {
	return c.writeEvent(realtime.EventTyping, realtime.TypingPayload{
		ConversationID: conversationID.String(),
		IsTyping:       isTyping,
	})
}

func (c *Client) MarkRead(conversationID uuid.UUID) error {
	return c.writeEvent(realtime.EventMarkRead, realtime.MarkReadPayload{
		ConversationID: conversationID.String(),
	})
}

// Messages returns a copy of the local timeline for the conversation.
func (c *Client) Messages(conversationID uuid.UUID) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages[conversationID]...)
}

// IsConnected reports whether the realtime channel is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
