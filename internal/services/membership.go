package services

import (
	"context"
	"errors"

	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipStore answers participant questions from current table state. Nothing is
// cached, so a user removed mid-session is rejected on the next check.
type MembershipStore struct {
	db *gorm.DB
}

func NewMembershipStore(db *gorm.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	return participantExists(s.db.WithContext(ctx), conversationID, userID, false)
}

func (s *MembershipStore) CanPost(ctx context.Context, conversationID, userID uint) (bool, error) {
	return participantExists(s.db.WithContext(ctx), conversationID, userID, true)
}

// Participants lists the roster with user rows preloaded, admins first.
func (s *MembershipStore) Participants(ctx context.Context, conversationID uint) ([]models.ConversationParticipant, error) {
	var rows []models.ConversationParticipant
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("conversation_id = ?", conversationID).
		Order("is_admin DESC, id ASC").
		Find(&rows).Error
	return rows, err
}

// participantExists runs on whatever handle it is given so callers inside a
// transaction see their own snapshot. userID 0 is the anonymous caller.
func participantExists(db *gorm.DB, conversationID, userID uint, requirePost bool) (bool, error) {
	if userID == 0 || conversationID == 0 {
		return false, nil
	}
	query := db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID)
	if requirePost {
		query = query.Where("can_post = ?", true)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Membership sync operations.
const (
	SyncOpAdded   = "added"
	SyncOpRemoved = "removed"
	SyncOpCleared = "cleared"
)

// MembershipSync keeps participant rows in step with rosters owned by other domains
// (team members, judge pools). Owners call it after their own mutations.
type MembershipSync struct {
	db *gorm.DB
}

func NewMembershipSync(db *gorm.DB) *MembershipSync {
	return &MembershipSync{db: db}
}

// SyncAdded inserts rows for users not yet in the conversation. Users listed in
// adminIDs are inserted as admins; existing rows are left untouched.
func (s *MembershipSync) SyncAdded(ctx context.Context, conversationID uint, userIDs, adminIDs []uint) (int64, error) {
	admins := make(map[uint]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	seen := make(map[uint]bool)
	var rows []models.ConversationParticipant
	for _, ids := range [][]uint{userIDs, adminIDs} {
		for _, id := range ids {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			rows = append(rows, models.ConversationParticipant{
				ConversationID: conversationID,
				UserID:         id,
				IsAdmin:        admins[id],
				CanPost:        true,
			})
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureConversation(tx, conversationID); err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		inserted = res.RowsAffected
		return res.Error
	})
	return inserted, err
}

// SyncRemoved deletes the rows of the given users.
func (s *MembershipSync) SyncRemoved(ctx context.Context, conversationID uint, userIDs []uint) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id IN ?", conversationID, userIDs).
		Delete(&models.ConversationParticipant{})
	return res.RowsAffected, res.Error
}

// SyncCleared deletes every participant row of the conversation.
func (s *MembershipSync) SyncCleared(ctx context.Context, conversationID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&models.ConversationParticipant{})
	return res.RowsAffected, res.Error
}

// Apply runs a queued sync task. AdminIDs are re-ensured after removals so a roster
// change never drops the conversation's organizers.
func (s *MembershipSync) Apply(ctx context.Context, task *MembershipTask) error {
	var (
		affected int64
		err      error
	)
	switch task.Op {
	case SyncOpAdded:
		affected, err = s.SyncAdded(ctx, task.ConversationID, task.UserIDs, task.AdminIDs)
	case SyncOpRemoved:
		affected, err = s.SyncRemoved(ctx, task.ConversationID, task.UserIDs)
	case SyncOpCleared:
		affected, err = s.SyncCleared(ctx, task.ConversationID)
	default:
		return ErrInvalidSyncOp
	}
	if err != nil {
		return err
	}
	if task.Op != SyncOpAdded && len(task.AdminIDs) > 0 {
		if _, err := s.SyncAdded(ctx, task.ConversationID, nil, task.AdminIDs); err != nil {
			return err
		}
	}

	logger.Info().
		Uint("conversation_id", task.ConversationID).
		Str("op", task.Op).
		Int64("affected", affected).
		Msg("membership synced")
	return nil
}

func ensureConversation(db *gorm.DB, conversationID uint) error {
	var conv models.Conversation
	err := db.Select("id").First(&conv, conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}
