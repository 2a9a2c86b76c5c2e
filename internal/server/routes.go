package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/realtime"
)

// registerRoutes sets up all routes on the gin router.
func registerRoutes(router *gin.Engine, m *chat.Mediator, hub *realtime.Hub) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/chat", identity())
	api.POST("/assign/:conversationID", requireRole(models.RoleFederationManager), handleAssign(m))
	api.POST("/release/:conversationID", requireRole(models.RoleFederationManager), handleRelease(m))
	api.POST("/messages", handleSend(m))
	api.GET("/history/:conversationID", handleHistory(m))
	api.GET("/summaries", requireRole(models.RoleFederationManager), handleSummaries(m))
	api.GET("/events/:conversationID", handleEvents(m, hub))

	router.GET("/ws/chat", socketIdentity(), handleSocket(m, hub))
}

type sendRequest struct {
	ConversationID string `json:"chat_user_id"`
	Message        string `json:"message"`
}

type assignResponse struct {
	SessionID       uint   `json:"session_id"`
	ConversationID  string `json:"chat_user_id"`
	AdministratorID string `json:"admin_id"`
}

func handleAssign(m *chat.Mediator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sender := senderFrom(c)
		session, err := m.TakeCharge(c.Request.Context(), c.Param("conversationID"), sender.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, assignResponse{
			SessionID:       session.ID,
			ConversationID:  session.ConversationID,
			AdministratorID: session.AdministratorID,
		})
	}
}

func handleRelease(m *chat.Mediator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.ReleaseChat(c.Request.Context(), c.Param("conversationID")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chat_user_id": c.Param("conversationID"), "status": chat.StatusFree})
	}
}

func handleSend(m *chat.Mediator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		msg, err := m.RouteMessage(c.Request.Context(),
			chat.Inbound{ConversationID: req.ConversationID, Content: req.Message}, senderFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleHistory(m *chat.Mediator) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := m.History(c.Request.Context(), c.Param("conversationID"), senderFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		if msgs == nil {
			msgs = []models.ChatMessage{}
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func handleSummaries(m *chat.Mediator) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := m.Summaries(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summaries)
	}
}
