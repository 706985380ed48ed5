package db

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/shashank8536/Campus-MarketPlace/models"
)

type MessageRepository interface {
	// SaveMessage appends the message, records the sender's own read and
	// touches the conversation's last-message pointer, all in one
	// transaction so the touch is never visible before the message is.
	SaveMessage(msg *models.Message) error
	GetConversationMessages(conversationID uuid.UUID, limit, offset int) ([]models.Message, error)
	// MarkMessagesRead adds reader to the readBy set of every message in
	// the conversation sent by someone else. Idempotent; returns the
	// number of newly marked messages.
	MarkMessagesRead(conversationID, readerID uuid.UUID) (int64, error)
	UnreadCount(conversationID, userID uuid.UUID) (int64, error)
	UnreadTotalForUser(userID uuid.UUID) (int64, error)
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

func (r *messageRepo) SaveMessage(msg *models.Message) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		read := models.MessageRead{MessageID: msg.ID, UserID: msg.SenderID, CreatedAt: msg.CreatedAt}
		if err := tx.Create(&read).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"last_message_at": msg.CreatedAt,
			}).Error
	})
	if err != nil {
		return errors.Wrap(err, "could not save message")
	}
	msg.ReadBy = []uuid.UUID{msg.SenderID}
	return nil
}

func (r *messageRepo) GetConversationMessages(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	query := r.DB.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Preload("Sender").
		Preload("Reads")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, errors.Wrap(err, "could not list messages")
	}
	for i := range messages {
		messages[i].FillReadBy()
	}
	return messages, nil
}

func (r *messageRepo) MarkMessagesRead(conversationID, readerID uuid.UUID) (int64, error) {
	result := r.DB.Exec(`
		INSERT INTO message_reads (message_id, user_id, created_at)
		SELECT m.id, ?, NOW()
		FROM messages m
		WHERE m.conversation_id = ?
		  AND m.sender_id <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM message_reads r
			WHERE r.message_id = m.id AND r.user_id = ?
		  )
		ON CONFLICT DO NOTHING`,
		readerID, conversationID, readerID, readerID)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "could not mark messages read")
	}
	return result.RowsAffected, nil
}

func (r *messageRepo) UnreadCount(conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = messages.id AND r.user_id = ?)", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "could not count unread messages")
	}
	return count, nil
}

func (r *messageRepo) UnreadTotalForUser(userID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Message{}).
		Joins("JOIN conversations c ON c.id = messages.conversation_id").
		Where("c.participant_one_id = ? OR c.participant_two_id = ?", userID, userID).
		Where("messages.sender_id <> ?", userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = messages.id AND r.user_id = ?)", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "could not count unread messages")
	}
	return count, nil
}
