package models

import (
	"strconv"
	"time"
)

// Conversation kinds
const (
	ConversationDM     = "dm"
	ConversationTeam   = "team"
	ConversationJudges = "judges"
)

// Conversation is a chat channel scoped to a DM pair, a team or a hackathon's judge pool.
// Team, hackathon and organization references are informative only; membership is
// defined by ConversationParticipant rows.
type Conversation struct {
	ID             uint                      `gorm:"primaryKey" json:"id"`
	Type           string                    `gorm:"size:16;index;not null" json:"type"`
	Title          string                    `gorm:"size:200" json:"title"`
	TeamID         *uint                     `gorm:"index" json:"team_id"`
	HackathonID    *uint                     `gorm:"index" json:"hackathon_id"`
	OrganizationID *uint                     `json:"organization_id"`
	CreatedBy      uint                      `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	Participants   []ConversationParticipant `json:"participants,omitempty"`
}

// ConversationParticipant is the membership row for one user in one conversation.
type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`
	UserID         uint      `gorm:"uniqueIndex:idx_conversation_user;not null" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IsAdmin        bool      `gorm:"default:false" json:"is_admin"`
	CanPost        bool      `gorm:"default:true" json:"can_post"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Message is one entry of a conversation log. Messages are soft-deleted only.
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"index:idx_conversation_created,priority:1;not null" json:"conversation_id"`
	SenderID       uint       `gorm:"not null" json:"sender_id"`
	Sender         *User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time  `gorm:"index:idx_conversation_created,priority:2" json:"created_at"`
	EditedAt       *time.Time `json:"edited_at"`
	IsDeleted      bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedOn      *time.Time `json:"-"` // when the soft delete happened
}

func (Conversation) TableName() string            { return "conversations" }
func (ConversationParticipant) TableName() string { return "conversation_participants" }
func (Message) TableName() string                 { return "messages" }

// GroupKey is the broadcast group name for a conversation.
func GroupKey(conversationID uint) string {
	return "conversation_" + strconv.FormatUint(uint64(conversationID), 10)
}

// SenderUsername returns the preloaded sender's username, or "" when not loaded.
func (m *Message) SenderUsername() string {
	if m.Sender == nil {
		return ""
	}
	return m.Sender.Username
}
