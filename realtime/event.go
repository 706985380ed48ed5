package realtime

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shashank8536/Campus-MarketPlace/models"
)

// Client-to-gateway and gateway-to-client event names. Payload field names
// are part of the wire contract with the web frontend.
const (
	EventAuthenticate           = "authenticate"
	EventJoinConversation       = "join_conversation"
	EventLeaveConversation      = "leave_conversation"
	EventSendMessage            = "send_message"
	EventTyping                 = "typing"
	EventMarkRead               = "mark_read"
	EventReceiveMessage         = "receive_message"
	EventNewMessageNotification = "new_message_notification"
	EventUserTyping             = "user_typing"
	EventMessagesRead           = "messages_read"
	EventError                  = "error"
)

var validate = validator.New()

// Envelope is the tagged wire shape of every realtime event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatePayload struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	Content        string `json:"content" validate:"required"`
	ReceiverID     string `json:"receiverId" validate:"omitempty,uuid"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
	IsTyping       bool   `json:"isTyping"`
}

type MarkReadPayload struct {
	ConversationID string `json:"conversationId" validate:"required,uuid"`
}

// MessagePayload is the authoritative message shape broadcast after
// persistence.
type MessagePayload struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID uuid.UUID      `json:"conversationId"`
	Sender         models.UserRef `json:"sender"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type ReceiveMessagePayload struct {
	Message        MessagePayload `json:"message"`
	ConversationID uuid.UUID      `json:"conversationId"`
}

type NewMessageNotificationPayload struct {
	Message        MessagePayload `json:"message"`
	ConversationID uuid.UUID      `json:"conversationId"`
	Sender         models.UserRef `json:"sender"`
}

type UserTypingPayload struct {
	UserID   uuid.UUID `json:"userId"`
	IsTyping bool      `json:"isTyping"`
}

type MessagesReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReadBy         uuid.UUID `json:"readBy"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessagePayload projects a persisted message onto the wire shape.
func NewMessagePayload(m *models.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender.Ref(),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}

// decodePayload unmarshals and validates an inbound event payload before it
// reaches any handler.
func decodePayload(data json.RawMessage, out interface{}) error {
	if len(data) == 0 {
		return validate.Struct(out)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return validate.Struct(out)
}

func marshalEvent(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
