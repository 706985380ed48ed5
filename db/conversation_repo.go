package db

import (
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/shashank8536/Campus-MarketPlace/models"
)

type ConversationRepository interface {
	// FindOrCreateConversation returns the conversation between the two
	// users about the listing, creating it if absent. The second return
	// value reports whether this call created the row.
	FindOrCreateConversation(userA, userB, listingID uuid.UUID) (*models.Conversation, bool, error)
	FindConversationByID(id uuid.UUID) (*models.Conversation, error)
	GetConversationsForUser(userID uuid.UUID) ([]models.Conversation, error)
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) FindOrCreateConversation(userA, userB, listingID uuid.UUID) (*models.Conversation, bool, error) {
	one, two, err := models.NormalizeParticipants(userA, userB)
	if err != nil {
		return nil, false, err
	}

	existing, err := r.findByKey(one, two, listingID)
	if err == nil {
		return existing, false, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, errors.Wrap(err, "could not look up conversation")
	}

	conv := &models.Conversation{
		ParticipantOneID: one,
		ParticipantTwoID: two,
		ListingID:        listingID,
		LastMessageAt:    time.Now(),
	}
	if err := r.DB.Create(conv).Error; err != nil {
		// A concurrent create from the other participant won the unique
		// index; collapse to the winner's row.
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			winner, ferr := r.findByKey(one, two, listingID)
			if ferr != nil {
				return nil, false, errors.Wrap(ferr, "could not load conversation after duplicate create")
			}
			return winner, false, nil
		}
		return nil, false, errors.Wrap(err, "could not create conversation")
	}

	created, err := r.findByKey(one, two, listingID)
	if err != nil {
		return nil, false, errors.Wrap(err, "could not reload created conversation")
	}
	return created, true, nil
}

func (r *conversationRepo) findByKey(one, two, listingID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.withAssociations().
		Where("participant_one_id = ? AND participant_two_id = ? AND listing_id = ?", one, two, listingID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) FindConversationByID(id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.withAssociations().Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) GetConversationsForUser(userID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.withAssociations().
		Where("participant_one_id = ? OR participant_two_id = ?", userID, userID).
		Order("last_message_at DESC, id").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "could not list conversations")
	}
	return conversations, nil
}

func (r *conversationRepo) withAssociations() *gorm.DB {
	return r.DB.
		Preload("ParticipantOne").
		Preload("ParticipantTwo").
		Preload("Listing").
		Preload("LastMessage").
		Preload("LastMessage.Sender")
}
