package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/models"
)

// Identity headers set by the authenticating proxy in front of the server.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const senderKey = "switchboard.sender"

// identity resolves the caller from the identity headers.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		setSender(c, c.GetHeader(HeaderUserID), c.GetHeader(HeaderUserRole))
	}
}

// socketIdentity is identity for the websocket endpoint. Browsers cannot set
// headers on an upgrade request, so when both headers are absent the
// user_id and role query parameters are used instead.
func socketIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderUserID)
		role := c.GetHeader(HeaderUserRole)
		if id == "" && role == "" {
			id, role = c.Query("user_id"), c.Query("role")
		}
		setSender(c, id, role)
	}
}

func setSender(c *gin.Context, id, role string) {
	if id == "" || role == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "caller identity is required"})
		return
	}
	c.Set(senderKey, chat.Sender{ID: id, Role: models.Role(role)})
	c.Next()
}

// requireRole rejects callers whose role is not role.
func requireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if senderFrom(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requires role " + string(role)})
			return
		}
		c.Next()
	}
}

func senderFrom(c *gin.Context) chat.Sender {
	v, _ := c.Get(senderKey)
	s, _ := v.(chat.Sender)
	return s
}

// statusFor maps a chat error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrActionNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chat.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, chat.ErrAborted):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
