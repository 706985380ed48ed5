package models

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shashank8536/Campus-MarketPlace/errors"
)

// Conversation is a thread between exactly two users about one listing.
// The participant pair is stored in lexicographic order so that lookups are
// order-insensitive, and the composite unique index guarantees at most one
// conversation per (pair, listing).
type Conversation struct {
	Model
	ParticipantOneID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair_listing,priority:1" json:"-"`
	ParticipantTwoID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair_listing,priority:2" json:"-"`
	ParticipantOne   User       `gorm:"foreignKey:ParticipantOneID" json:"-"`
	ParticipantTwo   User       `gorm:"foreignKey:ParticipantTwoID" json:"-"`
	ListingID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_pair_listing,priority:3" json:"subject"`
	Listing          Listing    `gorm:"foreignKey:ListingID" json:"listing"`
	LastMessageID    *uuid.UUID `gorm:"type:uuid" json:"lastMessageRef,omitempty"`
	LastMessage      *Message   `gorm:"foreignKey:LastMessageID" json:"-"`
	LastMessageAt    time.Time  `gorm:"index" json:"lastMessageAt"`
}

// NormalizeParticipants orders a participant pair for storage and lookup.
func NormalizeParticipants(a, b uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return uuid.Nil, uuid.Nil, errors.New("both participants are required", http.StatusBadRequest)
	}
	if a == b {
		return uuid.Nil, uuid.Nil, errors.New("a conversation needs two distinct participants", http.StatusBadRequest)
	}
	if strings.Compare(a.String(), b.String()) > 0 {
		a, b = b, a
	}
	return a, b, nil
}

func (c *Conversation) Participants() [2]uuid.UUID {
	return [2]uuid.UUID{c.ParticipantOneID, c.ParticipantTwoID}
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantOneID == userID || c.ParticipantTwoID == userID
}

// OtherParticipant returns the counterpart of userID in the pair.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantOneID == userID {
		return c.ParticipantTwoID
	}
	return c.ParticipantOneID
}

// ConversationSummary is the inbox row returned by GET /conversations.
type ConversationSummary struct {
	ID            uuid.UUID  `json:"id"`
	Participants  [2]UserRef `json:"participants"`
	Listing       Listing    `json:"listing"`
	LastMessage   *Message   `json:"lastMessage,omitempty"`
	LastMessageAt time.Time  `json:"lastMessageAt"`
	UnreadCount   int64      `json:"unreadCount"`
}
