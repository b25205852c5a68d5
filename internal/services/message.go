package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ListOptions pages history backwards from BeforeID (exclusive).
type ListOptions struct {
	BeforeID uint
	Limit    int
}

// MessageStore owns message mutations. Every mutation reads the prior row, applies the
// change and commits in one transaction, then derives the resulting event from the
// before/after pair and publishes it. Publishing is best-effort and never undoes a write.
type MessageStore struct {
	db        *gorm.DB
	publisher Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewMessageStore(db *gorm.DB, publisher Publisher) *MessageStore {
	return &MessageStore{
		db:        db,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.Component("messages"),
	}
}

func (s *MessageStore) Create(ctx context.Context, conversationID, senderID uint, content string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := participantExists(tx, conversationID, senderID, true)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCannotPost
		}

		content = strings.TrimSpace(content)
		if content == "" {
			return ErrEmptyContent
		}

		msg = models.Message{
			ConversationID: conversationID,
			SenderID:       senderID,
			Content:        content,
			CreatedAt:      s.now(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Preload("Sender").First(&msg, msg.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, nil, &msg)
	return &msg, nil
}

func (s *MessageStore) Edit(ctx context.Context, messageID, conversationID, senderID uint, content string) (*models.Message, error) {
	var (
		msg  models.Message
		prev *MessageSnapshot
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwnMessage(tx, &msg, messageID, conversationID, senderID); err != nil {
			return err
		}
		if msg.IsDeleted {
			return ErrMessageDeleted
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return ErrEmptyContent
		}

		prev = SnapshotOf(&msg)
		if content == msg.Content {
			return nil
		}

		editedAt := s.now()
		res := liveMessage(tx, msg.ID).Updates(map[string]interface{}{
			"content":   content,
			"edited_at": editedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// deleted by a concurrent transaction after the read
			return ErrMessageDeleted
		}
		msg.Content = content
		msg.EditedAt = &editedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, prev, &msg)
	return &msg, nil
}

// SoftDelete marks the message deleted and keeps its content. Deleting an already
// deleted message succeeds for its author and emits nothing.
func (s *MessageStore) SoftDelete(ctx context.Context, messageID, conversationID, senderID uint) (*models.Message, error) {
	var (
		msg  models.Message
		prev *MessageSnapshot
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadOwnMessage(tx, &msg, messageID, conversationID, senderID); err != nil {
			return err
		}

		prev = SnapshotOf(&msg)
		if msg.IsDeleted {
			return nil
		}

		deletedOn := s.now()
		res := liveMessage(tx, msg.ID).Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_on": deletedOn,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// a concurrent delete won; it already emitted the event
			prev.IsDeleted = true
			msg.IsDeleted = true
			return nil
		}
		msg.IsDeleted = true
		msg.DeletedOn = &deletedOn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, prev, &msg)
	return &msg, nil
}

// loadOwnMessage reads the message inside tx and checks the caller may modify it:
// still a participant, the message belongs to the conversation, and the caller wrote it.
func loadOwnMessage(tx *gorm.DB, msg *models.Message, messageID, conversationID, senderID uint) error {
	ok, err := participantExists(tx, conversationID, senderID, false)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}

	err = tx.Preload("Sender").
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return ErrNotSender
	}
	return nil
}

// liveMessage scopes an update to a message that is still not deleted, so a write
// racing a soft delete affects no rows.
func liveMessage(tx *gorm.DB, messageID uint) *gorm.DB {
	return tx.Model(&models.Message{}).Where("id = ? AND is_deleted = ?", messageID, false)
}

func (s *MessageStore) publish(ctx context.Context, prev *MessageSnapshot, msg *models.Message) {
	ev, ok := DeriveEvent(prev, msg)
	if !ok || s.publisher == nil {
		return
	}
	// the write has committed; a cancelled caller must not suppress the broadcast
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.Publish(ctx, models.GroupKey(msg.ConversationID), ev); err != nil {
		s.log.Error().Err(err).
			Uint("conversation_id", msg.ConversationID).
			Uint("message_id", msg.ID).
			Str("event", ev.Event).
			Msg("broadcast failed")
	}
}

// List returns history in ascending order for a participant. Deleted rows keep their
// place with content blanked. next is the BeforeID for the previous page, or nil.
func (s *MessageStore) List(ctx context.Context, conversationID, userID uint, opts ListOptions) (msgs []models.Message, next *uint, err error) {
	db := s.db.WithContext(ctx)
	ok, err := participantExists(db, conversationID, userID, false)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotParticipant
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := db.Preload("Sender").Where("conversation_id = ?", conversationID)
	if opts.BeforeID > 0 {
		query = query.Where("id < ?", opts.BeforeID)
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&msgs).Error; err != nil {
		return nil, nil, err
	}

	if len(msgs) > limit {
		msgs = msgs[:limit]
		cursor := msgs[limit-1].ID
		next = &cursor
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	for i := range msgs {
		if msgs[i].IsDeleted {
			msgs[i].Content = ""
		}
	}
	return msgs, next, nil
}

// Latest returns the newest non-deleted message, or nil when there is none.
func (s *MessageStore) Latest(ctx context.Context, conversationID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
