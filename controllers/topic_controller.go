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

// TopicController serves topic CRUD and interest signaling.
type TopicController struct {
	store       *db.Store
	matchmaking *services.MatchmakingService
}

func NewTopicController(store *db.Store, matchmaking *services.MatchmakingService) *TopicController {
	return &TopicController{store: store, matchmaking: matchmaking}
}

type createTopicRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateTopic handles POST /topics.
func (tc *TopicController) CreateTopic(c *gin.Context) {
	var req createTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: name is required"})
		return
	}

	topic := models.Topic{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   middlewares.UserID(c),
	}
	id, err := tc.store.CreateTopic(c.Request.Context(), &topic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create topic"})
		return
	}
	topic.ID = id
	c.JSON(http.StatusCreated, topic)
}

// ListTopics handles GET /topics.
func (tc *TopicController) ListTopics(c *gin.Context) {
	topics, err := tc.store.ListTopics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list topics"})
		return
	}
	if topics == nil {
		topics = []models.Topic{}
	}
	c.JSON(http.StatusOK, topics)
}

// GetTopic handles GET /topics/:id.
func (tc *TopicController) GetTopic(c *gin.Context) {
	topic, err := tc.store.TopicByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch topic"})
		return
	}
	c.JSON(http.StatusOK, topic)
}

// SignalInterest handles POST /topics/:id/interest. The caller either gets
// paired into a new session or joins the waiting pool.
func (tc *TopicController) SignalInterest(c *gin.Context) {
	userID := middlewares.UserID(c)
	sessionID, err := tc.matchmaking.SignalInterest(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTopicNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
		case errors.Is(err, services.ErrJoinFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "join failed, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to signal interest"})
		}
		return
	}

	if sessionID == "" {
		c.JSON(http.StatusOK, gin.H{"waiting": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID})
}
