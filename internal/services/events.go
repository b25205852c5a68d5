package services

import (
	"encoding/json"
	"time"

	"github.com/vortexis/hackhub/backend/internal/models"
)

// Outbound event names.
const (
	EventMessage        = "message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventError          = "error"
)

// Event is one outbound WebSocket frame.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// MessagePayload is the public projection of a message.
type MessagePayload struct {
	ID             uint       `json:"id"`
	SenderID       uint       `json:"sender_id"`
	SenderUsername string     `json:"sender_username"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at"`
}

// DeletedPayload omits content even though storage keeps it.
type DeletedPayload struct {
	ID        uint `json:"id"`
	MessageID uint `json:"message_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// MessageSnapshot is the persisted state of a message read before a mutation.
type MessageSnapshot struct {
	Content   string
	IsDeleted bool
}

func SnapshotOf(m *models.Message) *MessageSnapshot {
	return &MessageSnapshot{Content: m.Content, IsDeleted: m.IsDeleted}
}

func NewMessagePayload(m *models.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername(),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
	}
}

func ErrorEvent(msg string) Event {
	return Event{Event: EventError, Data: ErrorPayload{Message: msg}}
}

// DeriveEvent picks the single event a mutation produces. prev is nil for a newly
// created row. The second return is false when nothing observable changed.
func DeriveEvent(prev *MessageSnapshot, next *models.Message) (Event, bool) {
	switch {
	case prev == nil && !next.IsDeleted:
		return Event{Event: EventMessage, Data: NewMessagePayload(next)}, true
	case prev == nil:
		return Event{}, false
	case !prev.IsDeleted && next.IsDeleted:
		return Event{Event: EventMessageDeleted, Data: DeletedPayload{ID: next.ID, MessageID: next.ID}}, true
	case !next.IsDeleted && prev.Content != next.Content:
		return Event{Event: EventMessageUpdated, Data: NewMessagePayload(next)}, true
	}
	return Event{}, false
}

// EncodeEvent renders an event as a text frame.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
