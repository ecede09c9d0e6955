package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/queue"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/utils"
)

type createTopicRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=100"`
	Query string `json:"query" binding:"required,min=1,max=500"`
}

func SetupTopicRoutes(router *gin.Engine, topics *store.TopicStore, enqueuer *queue.Enqueuer) {
	api := router.Group("/api")

	api.GET("/topics", func(c *gin.Context) {
		result, err := topics.ListTopics(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list topics", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"topics": result, "count": len(result)})
	})

	api.POST("/topics", func(c *gin.Context) {
		var req createTopicRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		topic, err := topics.AddTopic(c.Request.Context(), req.Name, req.Query)
		if errors.Is(err, store.ErrDuplicateTopic) {
			utils.RespondWithError(c, http.StatusConflict, "bad_request", "Topic name already exists", nil)
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create topic", nil)
			return
		}

		// Pull papers for the new topic right away rather than waiting for
		// the daily fetch.
		if err := enqueuer.EnqueueFetchQuery(topic.Query, 0); err != nil {
			logger.Warn("Failed to enqueue initial topic fetch", "topic", topic.Name, "error", err)
		}

		c.JSON(http.StatusCreated, topic)
	})

	api.DELETE("/topics/:id", func(c *gin.Context) {
		err := topics.DeleteTopic(c.Request.Context(), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "Topic not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete topic", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})
}
