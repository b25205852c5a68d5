package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vortexis/hackhub/backend/pkg/logger"
)

const auditBodyLimit = 1000

// AuditLog writes one structured log line per admin write (POST or DELETE). Rosters
// and scoped conversations are changed through these routes, so the body is kept.
func AuditLog() gin.HandlerFunc {
	log := logger.Component("audit")
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = string(raw)
			if len(body) > auditBodyLimit {
				body = body[:auditBodyLimit] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 400 {
			event = log.Warn()
		}
		event.
			Uint("user_id", GetUserID(c)).
			Str("username", GetUsername(c)).
			Str("action", auditAction(c.FullPath(), method)).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("body", body).
			Msg("admin action")
	}
}

// auditAction names a route, e.g. POST /api/admin/conversations/:id/members/sync
// becomes "conversations.members.sync".
func auditAction(fullPath, method string) string {
	path := strings.TrimPrefix(fullPath, "/api/admin/")
	var parts []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || strings.HasPrefix(seg, ":") {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return strings.ToLower(method)
	}
	if method == http.MethodDelete {
		parts = append(parts, "delete")
	}
	return strings.Join(parts, ".")
}
