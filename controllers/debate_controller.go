package controllers

import (
	"errors"
	"net/http"

	"geminijoust/db"
	"geminijoust/middlewares"
	"geminijoust/models"
	"geminijoust/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// DebateController serves debate sessions: reads, message submission and exit.
type DebateController struct {
	store   *db.Store
	debates *services.DebateService
}

func NewDebateController(store *db.Store, debates *services.DebateService) *DebateController {
	return &DebateController{store: store, debates: debates}
}

// ListSessions handles GET /sessions and returns the caller's active sessions.
func (dc *DebateController) ListSessions(c *gin.Context) {
	sessions, err := dc.store.ActiveSessionsFor(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.DebateSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession handles GET /sessions/:id.
func (dc *DebateController) GetSession(c *gin.Context) {
	session, err := dc.store.SessionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListMessages handles GET /sessions/:id/messages, ordered oldest first.
func (dc *DebateController) ListMessages(c *gin.Context) {
	messages, err := dc.store.SessionMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

type submitMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SubmitMessage handles POST /sessions/:id/messages.
func (dc *DebateController) SubmitMessage(c *gin.Context) {
	var req submitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: text is required"})
		return
	}

	msg, err := dc.debates.SubmitMessage(c.Request.Context(), c.Param("id"), middlewares.UserID(c), req.Text)
	if err != nil {
		dc.writeDebateError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Exit handles POST /sessions/:id/exit.
func (dc *DebateController) Exit(c *gin.Context) {
	err := dc.debates.Exit(c.Request.Context(), c.Param("id"), middlewares.UserID(c))
	if err != nil {
		dc.writeDebateError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exited"})
}

// writeDebateError maps service errors to HTTP responses. Rejections carry
// their reason code so clients can distinguish turn, budget and status
// violations.
func (dc *DebateController) writeDebateError(c *gin.Context, err error) {
	if rej, ok := services.AsRejected(err); ok {
		c.JSON(http.StatusConflict, gin.H{"error": rej.Error(), "reason": string(rej.Reason)})
		return
	}
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, services.ErrSendFailed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "send failed, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
