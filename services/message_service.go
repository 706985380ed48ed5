package services

import (
	stderrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/leebenson/conform"
	"gorm.io/gorm"

	"github.com/shashank8536/Campus-MarketPlace/config"
	"github.com/shashank8536/Campus-MarketPlace/db"
	errs "github.com/shashank8536/Campus-MarketPlace/errors"
	"github.com/shashank8536/Campus-MarketPlace/models"
)

// MessageService is the messaging core's single mutation and query surface.
// Both the REST handlers and the realtime gateway go through it, so the two
// paths persist identical state.
type MessageService interface {
	StartConversation(userID, receiverID, listingID uuid.UUID) (*models.ConversationSummary, error)
	ListConversations(userID uuid.UUID) ([]models.ConversationSummary, error)
	// GetConversationMessages returns the conversation's messages oldest
	// first and marks them read for the caller as a side effect.
	GetConversationMessages(conversationID, userID uuid.UUID, limit, offset int) ([]models.Message, error)
	SendMessage(conversationID, senderID uuid.UUID, content string) (*models.Message, error)
	MarkConversationRead(conversationID, userID uuid.UUID) (int64, error)
	UnreadCount(conversationID, userID uuid.UUID) (int64, error)
	UnreadTotal(userID uuid.UUID) (int64, error)
	// ConversationForParticipant loads a conversation and enforces that
	// userID is one of its two participants.
	ConversationForParticipant(conversationID, userID uuid.UUID) (*models.Conversation, error)
}

type messageService struct {
	Config      *config.Config
	convRepo    db.ConversationRepository
	messageRepo db.MessageRepository
	authRepo    db.AuthRepository
	listingRepo db.ListingRepository
}

func NewMessageService(convRepo db.ConversationRepository, messageRepo db.MessageRepository, authRepo db.AuthRepository, listingRepo db.ListingRepository, conf *config.Config) MessageService {
	return &messageService{
		Config:      conf,
		convRepo:    convRepo,
		messageRepo: messageRepo,
		authRepo:    authRepo,
		listingRepo: listingRepo,
	}
}

func (m *messageService) StartConversation(userID, receiverID, listingID uuid.UUID) (*models.ConversationSummary, error) {
	if _, err := m.authRepo.FindUserByID(receiverID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("receiver not found", http.StatusNotFound)
		}
		return nil, err
	}
	if _, err := m.listingRepo.FindListingByID(listingID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("listing not found", http.StatusNotFound)
		}
		return nil, err
	}

	conv, _, err := m.convRepo.FindOrCreateConversation(userID, receiverID, listingID)
	if err != nil {
		return nil, err
	}
	return m.summarize(conv, userID)
}

func (m *messageService) ListConversations(userID uuid.UUID) ([]models.ConversationSummary, error) {
	conversations, err := m.convRepo.GetConversationsForUser(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for i := range conversations {
		summary, err := m.summarize(&conversations[i], userID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (m *messageService) GetConversationMessages(conversationID, userID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if _, err := m.ConversationForParticipant(conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := m.messageRepo.GetConversationMessages(conversationID, limit, offset)
	if err != nil {
		return nil, err
	}

	// Opening a thread counts as reading it.
	if _, err := m.messageRepo.MarkMessagesRead(conversationID, userID); err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *messageService) SendMessage(conversationID, senderID uuid.UUID, content string) (*models.Message, error) {
	conv, err := m.ConversationForParticipant(conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := conform.Strings(msg); err != nil {
		return nil, errs.New("invalid message", http.StatusBadRequest)
	}
	if err := msg.ValidateContent(); err != nil {
		return nil, err
	}

	if err := m.messageRepo.SaveMessage(msg); err != nil {
		return nil, err
	}

	if conv.ParticipantOneID == senderID {
		msg.Sender = conv.ParticipantOne
	} else {
		msg.Sender = conv.ParticipantTwo
	}
	return msg, nil
}

func (m *messageService) MarkConversationRead(conversationID, userID uuid.UUID) (int64, error) {
	if _, err := m.ConversationForParticipant(conversationID, userID); err != nil {
		return 0, err
	}
	return m.messageRepo.MarkMessagesRead(conversationID, userID)
}

func (m *messageService) UnreadCount(conversationID, userID uuid.UUID) (int64, error) {
	return m.messageRepo.UnreadCount(conversationID, userID)
}

func (m *messageService) UnreadTotal(userID uuid.UUID) (int64, error) {
	return m.messageRepo.UnreadTotalForUser(userID)
}

func (m *messageService) ConversationForParticipant(conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := m.convRepo.FindConversationByID(conversationID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.New("conversation not found", http.StatusNotFound)
		}
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errs.New("not a participant in this conversation", http.StatusForbidden)
	}
	return conv, nil
}

func (m *messageService) summarize(conv *models.Conversation, userID uuid.UUID) (*models.ConversationSummary, error) {
	unread, err := m.messageRepo.UnreadCount(conv.ID, userID)
	if err != nil {
		return nil, err
	}
	if conv.LastMessage != nil {
		conv.LastMessage.FillReadBy()
	}
	return &models.ConversationSummary{
		ID:            conv.ID,
		Participants:  [2]models.UserRef{conv.ParticipantOne.Ref(), conv.ParticipantTwo.Ref()},
		Listing:       conv.Listing,
		LastMessage:   conv.LastMessage,
		LastMessageAt: conv.LastMessageAt,
		UnreadCount:   unread,
	}, nil
}
