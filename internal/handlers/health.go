package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vortexis/hackhub/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, the roster queue and the broker.
type HealthHandler struct {
	db     *gorm.DB
	broker services.Broadcaster
	queue  services.MembershipQueue
}

func NewHealthHandler(db *gorm.DB, broker services.Broadcaster, queue services.MembershipQueue) *HealthHandler {
	return &HealthHandler{db: db, broker: broker, queue: queue}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	if err := h.pingDB(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "hackhub-chat",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"broker_mode": h.broker.Mode(),
			"connections": h.broker.SubscriberCount(),
		},
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
