package models

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/shashank8536/Campus-MarketPlace/errors"
)

// MaxMessageLength bounds message content after trimming.
const MaxMessageLength = 1000

// Message is one entry in a conversation's append-only log. Creation order
// is the canonical chat order; messages are never edited or deleted.
type Message struct {
	Model
	ConversationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"conversationId"`
	SenderID       uuid.UUID     `gorm:"type:uuid;not null" json:"-"`
	Sender         User          `gorm:"foreignKey:SenderID" json:"sender"`
	Content        string        `gorm:"size:1000;not null" json:"content" conform:"trim"`
	Reads          []MessageRead `gorm:"foreignKey:MessageID" json:"-"`
	ReadBy         []uuid.UUID   `gorm:"-" json:"readBy"`
}

// MessageRead records that a user has seen a message. The composite primary
// key makes the readBy set grow-only and idempotent under concurrent marking.
type MessageRead struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateContent trims the content in place and enforces the non-empty and
// length bounds.
func (m *Message) ValidateContent() error {
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return errors.New("message content is required", http.StatusBadRequest)
	}
	if utf8.RuneCountInString(m.Content) > MaxMessageLength {
		return errors.New("message cannot be more than 1000 characters", http.StatusBadRequest)
	}
	return nil
}

// FillReadBy projects the read rows into the readBy id set for JSON output.
func (m *Message) FillReadBy() {
	m.ReadBy = make([]uuid.UUID, 0, len(m.Reads))
	for _, r := range m.Reads {
		m.ReadBy = append(m.ReadBy, r.UserID)
	}
}

func (m *Message) HasRead(userID uuid.UUID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	for _, r := range m.Reads {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
