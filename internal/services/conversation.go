package services

import (
	"context"
	"errors"
	"strings"

	"github.com/vortexis/hackhub/backend/internal/models"
	"gorm.io/gorm"
)

// ConversationSummary is a conversation with a preview of its newest message.
type ConversationSummary struct {
	models.Conversation
	LastMessage *MessagePayload `json:"last_message"`
}

// ScopedRequest identifies the team or judges conversation of an owning domain.
type ScopedRequest struct {
	Type           string `json:"type" binding:"required,oneof=team judges"`
	TeamID         *uint  `json:"team_id"`
	HackathonID    *uint  `json:"hackathon_id"`
	OrganizationID *uint  `json:"organization_id"`
	Title          string `json:"title"`
}

type ConversationService struct {
	db       *gorm.DB
	members  *MembershipStore
	messages *MessageStore
}

func NewConversationService(db *gorm.DB, members *MembershipStore, messages *MessageStore) *ConversationService {
	return &ConversationService{db: db, members: members, messages: messages}
}

// ListForUser returns every conversation userID participates in, most recently
// updated first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uint) ([]ConversationSummary, error) {
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.updated_at DESC, conversations.id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ConversationSummary{Conversation: conv}
		latest, err := s.messages.Latest(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			p := NewMessagePayload(latest)
			summary.LastMessage = &p
		}
		out = append(out, summary)
	}
	return out, nil
}

// Get loads a conversation with its roster. Only participants may see it.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).First(&conv, conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	conv.Participants, err = s.members.Participants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetOrCreateDM returns the direct conversation between userID and targetID,
// creating it with userID as admin when none exists.
func (s *ConversationService) GetOrCreateDM(ctx context.Context, userID, targetID uint) (*models.Conversation, bool, error) {
	if targetID == 0 {
		return nil, false, ErrInvalidScope
	}
	if targetID == userID {
		return nil, false, ErrSelfDM
	}

	var (
		conv    models.Conversation
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		err := tx.Model(&models.ConversationParticipant{}).
			Joins("JOIN conversations ON conversations.id = conversation_participants.conversation_id").
			Where("conversations.type = ?", models.ConversationDM).
			Group("conversation_participants.conversation_id").
			Having("COUNT(*) = 2 AND SUM(CASE WHEN conversation_participants.user_id IN ? THEN 1 ELSE 0 END) = 2", []uint{userID, targetID}).
			Limit(1).
			Pluck("conversation_participants.conversation_id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return tx.First(&conv, ids[0]).Error
		}

		conv = models.Conversation{
			Type:      models.ConversationDM,
			CreatedBy: userID,
			Participants: []models.ConversationParticipant{
				{UserID: userID, IsAdmin: true, CanPost: true},
				{UserID: targetID, CanPost: true},
			},
		}
		created = true
		return tx.Create(&conv).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

// EnsureScoped returns the team or judges conversation for a scope, creating it when
// missing. Participants are seeded separately through MembershipSync.
func (s *ConversationService) EnsureScoped(ctx context.Context, createdBy uint, req ScopedRequest) (*models.Conversation, bool, error) {
	query := s.db.WithContext(ctx).Where("type = ?", req.Type)
	switch req.Type {
	case models.ConversationTeam:
		if req.TeamID == nil {
			return nil, false, ErrInvalidScope
		}
		query = query.Where("team_id = ?", *req.TeamID)
	case models.ConversationJudges:
		if req.HackathonID == nil {
			return nil, false, ErrInvalidScope
		}
		query = query.Where("hackathon_id = ?", *req.HackathonID)
	default:
		return nil, false, ErrInvalidScope
	}

	var conv models.Conversation
	err := query.First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = models.Conversation{
		Type:           req.Type,
		Title:          strings.TrimSpace(req.Title),
		TeamID:         req.TeamID,
		HackathonID:    req.HackathonID,
		OrganizationID: req.OrganizationID,
		CreatedBy:      createdBy,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, false, err
	}
	return &conv, true, nil
}

// Delete removes a conversation with its roster and messages in one transaction.
func (s *ConversationService) Delete(ctx context.Context, conversationID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureConversation(tx, conversationID); err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.ConversationParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, conversationID).Error
	})
}

func (s *ConversationService) Exists(ctx context.Context, conversationID uint) (bool, error) {
	err := ensureConversation(s.db.WithContext(ctx), conversationID)
	if errors.Is(err, ErrConversationNotFound) {
		return false, nil
	}
	return err == nil, err
}
