package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/vortexis/hackhub/backend/internal/middleware"
	"github.com/vortexis/hackhub/backend/internal/models"
	"github.com/vortexis/hackhub/backend/internal/realtime"
	"github.com/vortexis/hackhub/backend/internal/services"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

// ParticipantChecker answers the connect-time membership question.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
}

// IdentityRecorder keeps the username projection current for connecting users.
type IdentityRecorder interface {
	EnsureFromClaims(ctx context.Context, userID uint, username string) error
}

// ChatSocketHandler is the per-conversation WebSocket gateway.
type ChatSocketHandler struct {
	members    ParticipantChecker
	users      IdentityRecorder
	broker     services.Broadcaster
	dispatcher *CommandDispatcher
	opts       realtime.Options
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewChatSocketHandler(
	members ParticipantChecker,
	users IdentityRecorder,
	broker services.Broadcaster,
	dispatcher *CommandDispatcher,
	opts realtime.Options,
	allowOrigins []string,
) *ChatSocketHandler {
	return &ChatSocketHandler{
		members:    members,
		users:      users,
		broker:     broker,
		dispatcher: dispatcher,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowOrigins),
		},
		log: logger.Component("gateway"),
	}
}

// originChecker allows any origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[u.Scheme+"://"+u.Host]
	}
}

// Connect upgrades the request, checks membership and runs the session until the
// peer disconnects. A malformed conversation id is rejected with 400 before the upgrade. Callers without a valid token connect as anonymous and are
// closed with 4403 like any other non-participant.
func (h *ChatSocketHandler) Connect(c *gin.Context) {
	convID, ok := parseIDParam(c, "conversation_id")
	if !ok {
		return
	}
	id := middleware.ResolveIdentity(c.Request)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response
		h.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	ctx := c.Request.Context()
	conn := realtime.NewConnection(ws, id.UserID, convID, h.opts)
	log := h.log.With().
		Str("conn_id", conn.ID).
		Uint("conversation_id", convID).
		Uint("user_id", id.UserID).
		Logger()

	isMember, err := h.members.IsParticipant(ctx, convID, id.UserID)
	if err != nil {
		log.Error().Err(err).Msg("membership lookup failed")
		conn.Close(websocket.CloseInternalServerErr, "internal error")
		return
	}
	if !isMember {
		log.Info().Bool("anonymous", id.Anonymous()).Msg("connection rejected")
		conn.Close(realtime.CloseForbidden, "forbidden")
		return
	}

	if err := h.users.EnsureFromClaims(ctx, id.UserID, id.Username); err != nil {
		log.Warn().Err(err).Msg("user projection not updated")
	}

	conn.Start()
	unsubscribe := h.broker.Subscribe(models.GroupKey(convID), conn)
	defer func() {
		unsubscribe()
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()
	log.Info().Int("subscribers", h.broker.SubscriberCount()).Msg("connection joined")

	session := h.dispatcher.NewSession(Caller{ConversationID: convID, UserID: id.UserID})
	err = conn.ReadLoop(func(frame []byte) {
		ev := h.dispatcher.Dispatch(ctx, session, frame)
		if ev == nil {
			return
		}
		out, err := services.EncodeEvent(*ev)
		if err != nil {
			return
		}
		conn.Send(out)
	})

	if realtime.IsExpectedClose(err) {
		log.Info().Msg("connection left")
	} else {
		log.Info().Err(err).Msg("connection dropped")
	}
}
