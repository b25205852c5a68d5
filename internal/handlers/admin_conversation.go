package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vortexis/hackhub/backend/internal/middleware"
	"github.com/vortexis/hackhub/backend/internal/services"
	"github.com/vortexis/hackhub/backend/pkg/response"
)

// AdminConversationHandler exposes the roster hooks owning domains call after their
// own mutations (team membership, judge assignment).
type AdminConversationHandler struct {
	conversations *services.ConversationService
	queue         services.MembershipQueue
}

func NewAdminConversationHandler(conversations *services.ConversationService, queue services.MembershipQueue) *AdminConversationHandler {
	return &AdminConversationHandler{conversations: conversations, queue: queue}
}

type SyncMembersRequest struct {
	Op       string `json:"op" binding:"required,oneof=added removed cleared"`
	UserIDs  []uint `json:"user_ids"`
	AdminIDs []uint `json:"admin_ids"`
}

// EnsureScoped gets or creates the team or judges conversation of a scope.
func (h *AdminConversationHandler) EnsureScoped(c *gin.Context) {
	var req services.ScopedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	conv, created, err := h.conversations.EnsureScoped(c.Request.Context(), middleware.GetUserID(c), req)
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

// SyncMembers queues a roster change. In sync mode it has been applied on return.
func (h *AdminConversationHandler) SyncMembers(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SyncMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Op == services.SyncOpRemoved && len(req.UserIDs) == 0 {
		response.BadRequest(c, "user_ids is required for removed")
		return
	}

	exists, err := h.conversations.Exists(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !exists {
		response.Error(c, services.ErrConversationNotFound)
		return
	}

	task := &services.MembershipTask{
		ConversationID: id,
		Op:             req.Op,
		UserIDs:        req.UserIDs,
		AdminIDs:       req.AdminIDs,
	}
	if err := h.queue.Enqueue(c.Request.Context(), task); err != nil {
		response.Error(c, err)
		return
	}

	mode := "sync"
	if h.queue.IsAsync() {
		mode = "async"
	}
	response.Accepted(c, gin.H{"conversation_id": id, "op": req.Op, "mode": mode})
}

func (h *AdminConversationHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}
