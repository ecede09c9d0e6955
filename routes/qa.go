package routes

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/models"
	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
	"github.com/qwe111-didna/auto-get-arxiv-papers/utils"
)

func SetupQARoutes(router *gin.Engine, answers *services.AnswerService, conversations *services.ConversationManager) {
	api := router.Group("/api")

	api.POST("/qa/ask", func(c *gin.Context) {
		var req models.AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		result, err := answers.Answer(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	// Server-sent events: each event is a JSON StreamEvent. The stream ends
	// with a "sources" event, or an "error" event on failure.
	api.POST("/qa/ask-stream", func(c *gin.Context) {
		var req models.AnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		events := answers.AnswerStream(c.Request.Context(), req)

		c.Stream(func(w io.Writer) bool {
			ev, ok := <-events
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return true
		})
	})

	api.POST("/conversations", func(c *gin.Context) {
		id := conversations.Create()
		c.JSON(http.StatusCreated, gin.H{"conversation_id": id})
	})

	api.GET("/conversations/:id", func(c *gin.Context) {
		msgs, err := conversations.Get(c.Param("id"))
		if errors.Is(err, services.ErrConversationNotFound) {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": c.Param("id"),
			"messages":        msgs,
		})
	})

	api.POST("/conversations/:id/clear", func(c *gin.Context) {
		err := conversations.Clear(c.Param("id"))
		if errors.Is(err, services.ErrConversationNotFound) {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": c.Param("id"), "cleared": true})
	})

	api.DELETE("/conversations/:id", func(c *gin.Context) {
		err := conversations.Delete(c.Param("id"))
		if errors.Is(err, services.ErrConversationNotFound) {
			utils.RespondWithNotFound(c, "Conversation not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": c.Param("id"), "deleted": true})
	})
}
