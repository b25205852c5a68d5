package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vortexis/hackhub/backend/internal/utils"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// Identity is the caller resolved from an access token. The zero value is anonymous.
type Identity struct {
	UserID   uint
	Username string
	Role     string
}

func (i Identity) Anonymous() bool { return i.UserID == 0 }

func (i Identity) IsAdmin() bool { return i.Role == utils.RoleAdmin }

// TokenFromRequest returns the access token from the "token" query parameter, falling
// back to an "Authorization: Bearer" header. Browsers cannot set headers on a
// WebSocket handshake, so the query parameter wins.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ResolveIdentity never fails: a missing, malformed or expired token yields the
// anonymous identity.
func ResolveIdentity(r *http.Request) Identity {
	claims, err := utils.ParseToken(TokenFromRequest(r))
	if err != nil {
		return Identity{}
	}
	return Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(ContextUserID, id.UserID)
	c.Set(ContextUsername, id.Username)
	c.Set(ContextRole, id.Role)
}

// AuthRequired is a middleware that checks for a valid JWT token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if TokenFromRequest(c.Request) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "authentication required"})
			c.Abort()
			return
		}

		id := ResolveIdentity(c.Request)
		if id.Anonymous() {
			c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "message": "invalid or expired token"})
			c.Abort()
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

// OptionalAuth sets the caller identity when a valid token is present and lets
// anonymous requests through.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		setIdentity(c, ResolveIdentity(c.Request))
		c.Next()
	}
}

// AdminRequired is a middleware that checks for admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != utils.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"code": 403, "message": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetIdentity reads the identity set by AuthRequired or OptionalAuth.
func GetIdentity(c *gin.Context) Identity {
	return Identity{UserID: GetUserID(c), Username: GetUsername(c), Role: GetRole(c)}
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

// GetUsername gets the current username from context
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

// GetRole gets the current user role from context
func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
