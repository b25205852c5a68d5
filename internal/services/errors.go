package services

import "net/http"

// ErrorKind classifies chat failures. Every kind is reported to the acting caller only.
type ErrorKind string

const (
	KindPermission ErrorKind = "permission"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
)

// ChatError is a user-facing failure of a chat operation. Message is safe to send to clients.
type ChatError struct {
	Kind    ErrorKind
	Message string
}

func (e *ChatError) Error() string { return e.Message }

// StatusCode maps the kind onto an HTTP status for the REST surface.
func (e *ChatError) StatusCode() int {
	switch e.Kind {
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func newChatError(kind ErrorKind, msg string) *ChatError {
	return &ChatError{Kind: kind, Message: msg}
}

var (
	ErrNotParticipant       = newChatError(KindPermission, "you are not a participant of this conversation")
	ErrCannotPost           = newChatError(KindPermission, "you are not allowed to post in this conversation")
	ErrNotSender            = newChatError(KindPermission, "you can only modify your own messages")
	ErrEmptyContent         = newChatError(KindValidation, "content cannot be empty")
	ErrMessageDeleted       = newChatError(KindValidation, "message has been deleted")
	ErrSelfDM               = newChatError(KindValidation, "cannot create a direct conversation with yourself")
	ErrInvalidScope         = newChatError(KindValidation, "conversation scope is invalid")
	ErrInvalidSyncOp        = newChatError(KindValidation, "unknown membership sync operation")
	ErrMessageNotFound      = newChatError(KindNotFound, "message not found")
	ErrConversationNotFound = newChatError(KindNotFound, "conversation not found")
)
