package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/ai"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/vector"
	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
)

func SetupSystemRoutes(router *gin.Engine, gateway *ai.Gateway, papers *store.PaperStore, topics *store.TopicStore, index vector.Index, scheduler *services.Scheduler, conversations *services.ConversationManager) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/status", func(c *gin.Context) {
		ctx := c.Request.Context()

		paperCount, _ := papers.CountPapers(ctx)
		unindexed, _ := papers.CountUnindexed(ctx)
		topicList, _ := topics.ListTopics(ctx)
		chunkCount, _ := index.Count(ctx)

		c.JSON(http.StatusOK, gin.H{
			"llm_available": gateway.IsAvailable(),
			"papers": gin.H{
				"total":     paperCount,
				"unindexed": unindexed,
			},
			"topics": len(topicList),
			"index": gin.H{
				"chunks": chunkCount,
			},
			"conversations": conversations.Count(),
			"scheduler":     scheduler.Status(),
		})
	})

	router.GET("/api/index/stats", func(c *gin.Context) {
		chunkCount, err := index.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error_code": "internal_error", "message": "Failed to read index stats"})
			return
		}
		unindexed, _ := papers.CountUnindexed(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"chunks": chunkCount, "pending": unindexed})
	})
}
