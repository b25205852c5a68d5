package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vortexis/hackhub/backend/internal/middleware"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/internal/services"
	"github.com/vortexis/hackhub/backend/pkg/response"
)

// ConversationHandler serves the participant-facing REST surface.
type ConversationHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageStore
	users         *services.UserService
}

func NewConversationHandler(conversations *services.ConversationService, messages *services.MessageStore, users *services.UserService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages, users: users}
}

type CreateDMRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

type CreateMessageRequest struct {
	Content string `json:"content"`
}

// MessageView is the history projection of a message.
type MessageView struct {
	ID             uint       `json:"id"`
	ConversationID uint       `json:"conversation_id"`
	SenderID       uint       `json:"sender_id"`
	SenderUsername string     `json:"sender_username"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at"`
	IsDeleted      bool       `json:"is_deleted"`
}

func toMessageView(m *models.Message) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername(),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
		IsDeleted:      m.IsDeleted,
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// List returns the caller's conversations with a last-message preview.
func (h *ConversationHandler) List(c *gin.Context) {
	list, err := h.conversations.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	conv, err := h.conversations.Get(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

// CreateDM returns the existing DM with the target user, or creates it.
func (h *ConversationHandler) CreateDM(c *gin.Context) {
	var req CreateDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	me := middleware.GetIdentity(c)
	_ = h.users.EnsureFromClaims(c.Request.Context(), me.UserID, me.Username)

	conv, created, err := h.conversations.GetOrCreateDM(c.Request.Context(), me.UserID, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, conv)
		return
	}
	response.Success(c, conv)
}

// ListMessages pages history backwards with ?before_id=&limit=.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var opts services.ListOptions
	if v := c.Query("before_id"); v != "" {
		before, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid before_id")
			return
		}
		opts.BeforeID = uint(before)
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	msgs, next, err := h.messages.List(c.Request.Context(), id, middleware.GetUserID(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		views = append(views, toMessageView(&msgs[i]))
	}
	response.List(c, views, next)
}

// CreateMessage posts without a socket; the store broadcasts it like any other message.
func (h *ConversationHandler) CreateMessage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	me := middleware.GetIdentity(c)
	_ = h.users.EnsureFromClaims(c.Request.Context(), me.UserID, me.Username)

	msg, err := h.messages.Create(c.Request.Context(), id, me.UserID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toMessageView(msg))
}
