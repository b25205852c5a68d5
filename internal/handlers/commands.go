package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/internal/services"
	"github.com/vortexis/hackhub/backend/pkg/logger"
	"golang.org/x/time/rate"
)

// Inbound actions.
const (
	ActionSendMessage   = "send_message"
	ActionEditMessage   = "edit_message"
	ActionDeleteMessage = "delete_message"
)

const commandTimeout = 5 * time.Second

// MessageMutator is the part of the message store commands need.
type MessageMutator interface {
	Create(ctx context.Context, conversationID, senderID uint, content string) (*models.Message, error)
	Edit(ctx context.Context, messageID, conversationID, senderID uint, content string) (*models.Message, error)
	SoftDelete(ctx context.Context, messageID, conversationID, senderID uint) (*models.Message, error)
}

// Caller is the connection a command arrived on.
type Caller struct {
	ConversationID uint
	UserID         uint
}

// Command is one decoded inbound frame. Commands never broadcast themselves; the
// store publishes the resulting change.
type Command interface {
	Validate() error
	Execute(ctx context.Context, store MessageMutator, caller Caller) error
}

type SendMessageCommand struct {
	Content *string `json:"content"`
}

func (c *SendMessageCommand) Validate() error {
	if c.Content == nil {
		return errMissingContent
	}
	return nil
}

func (c *SendMessageCommand) Execute(ctx context.Context, store MessageMutator, caller Caller) error {
	_, err := store.Create(ctx, caller.ConversationID, caller.UserID, *c.Content)
	return err
}

type EditMessageCommand struct {
	MessageID *uint   `json:"message_id"`
	Content   *string `json:"content"`
}

func (c *EditMessageCommand) Validate() error {
	if c.MessageID == nil {
		return errMissingMessageID
	}
	if c.Content == nil {
		return errMissingContent
	}
	return nil
}

func (c *EditMessageCommand) Execute(ctx context.Context, store MessageMutator, caller Caller) error {
	_, err := store.Edit(ctx, *c.MessageID, caller.ConversationID, caller.UserID, *c.Content)
	return err
}

type DeleteMessageCommand struct {
	MessageID *uint `json:"message_id"`
}

func (c *DeleteMessageCommand) Validate() error {
	if c.MessageID == nil {
		return errMissingMessageID
	}
	return nil
}

func (c *DeleteMessageCommand) Execute(ctx context.Context, store MessageMutator, caller Caller) error {
	_, err := store.SoftDelete(ctx, *c.MessageID, caller.ConversationID, caller.UserID)
	return err
}

// commandTable maps an action to a constructor for its command variant.
var commandTable = map[string]func() Command{
	ActionSendMessage:   func() Command { return &SendMessageCommand{} },
	ActionEditMessage:   func() Command { return &EditMessageCommand{} },
	ActionDeleteMessage: func() Command { return &DeleteMessageCommand{} },
}

var (
	errInvalidJSON      = &services.ChatError{Kind: services.KindValidation, Message: "invalid JSON"}
	errMissingAction    = &services.ChatError{Kind: services.KindValidation, Message: "action is required"}
	errUnknownAction    = &services.ChatError{Kind: services.KindValidation, Message: "unknown action"}
	errInvalidPayload   = &services.ChatError{Kind: services.KindValidation, Message: "invalid command payload"}
	errMissingContent   = &services.ChatError{Kind: services.KindValidation, Message: "content is required"}
	errMissingMessageID = &services.ChatError{Kind: services.KindValidation, Message: "message_id is required"}
	errRateLimited      = &services.ChatError{Kind: services.KindValidation, Message: "too many commands, slow down"}
)

// DecodeCommand parses one frame into its command variant.
func DecodeCommand(frame []byte) (Command, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, errInvalidJSON
	}
	if envelope.Action == "" {
		return nil, errMissingAction
	}
	newCommand, ok := commandTable[envelope.Action]
	if !ok {
		return nil, errUnknownAction
	}

	cmd := newCommand()
	if err := json.Unmarshal(frame, cmd); err != nil {
		return nil, errInvalidPayload
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// CommandSession is the per-connection state of the dispatcher.
type CommandSession struct {
	Caller  Caller
	limiter *rate.Limiter
}

// CommandDispatcher runs inbound frames against the message store.
type CommandDispatcher struct {
	store MessageMutator
	rps   rate.Limit
	burst int
}

func NewCommandDispatcher(store MessageMutator, commandsPerSecond float64, burst int) *CommandDispatcher {
	limit := rate.Limit(commandsPerSecond)
	if commandsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &CommandDispatcher{store: store, rps: limit, burst: burst}
}

func (d *CommandDispatcher) NewSession(caller Caller) *CommandSession {
	return &CommandSession{Caller: caller, limiter: rate.NewLimiter(d.rps, d.burst)}
}

// Dispatch handles one frame. The returned event, when non-nil, is an error for the
// originating connection only.
func (d *CommandDispatcher) Dispatch(ctx context.Context, session *CommandSession, frame []byte) *services.Event {
	if !session.limiter.Allow() {
		return errorEventFor(errRateLimited)
	}

	cmd, err := DecodeCommand(frame)
	if err != nil {
		return errorEventFor(err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := cmd.Execute(ctx, d.store, session.Caller); err != nil {
		var chatErr *services.ChatError
		if !errors.As(err, &chatErr) {
			logger.Error().Err(err).
				Uint("conversation_id", session.Caller.ConversationID).
				Uint("user_id", session.Caller.UserID).
				Msg("command failed")
		}
		return errorEventFor(err)
	}
	return nil
}

func errorEventFor(err error) *services.Event {
	msg := "internal error"
	var chatErr *services.ChatError
	if errors.As(err, &chatErr) {
		msg = chatErr.Message
	}
	ev := services.ErrorEvent(msg)
	return &ev
}
