package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/logger"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/queue"
	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
	"github.com/qwe111-didna/auto-get-arxiv-papers/utils"
)

type arxivSearchRequest struct {
	Query      string `json:"query" binding:"required,min=1,max=500"`
	MaxResults int    `json:"max_results"`
}

func SetupArxivRoutes(router *gin.Engine, search *services.SearchService, indexing *services.IndexingService, enqueuer *queue.Enqueuer) {
	api := router.Group("/api")

	// Fetch papers for an ad-hoc query, then hand indexing to the worker.
	api.POST("/arxiv/search", func(c *gin.Context) {
		var req arxivSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		added, err := search.FetchQuery(c.Request.Context(), req.Query, req.MaxResults)
		if err != nil {
			utils.RespondWithInternalError(c, "arXiv fetch failed", gin.H{"error": err.Error()})
			return
		}

		if added > 0 {
			if err := enqueuer.EnqueueIndexPapers(0); err != nil {
				logger.Warn("Failed to enqueue indexing task", "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"query": req.Query, "new_papers": added})
	})

	// Fetch all saved topics now instead of waiting for the daily job.
	api.POST("/arxiv/fetch-all", func(c *gin.Context) {
		results, err := search.FetchAllTopics(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Topic fetch failed", gin.H{"error": err.Error()})
			return
		}

		total := 0
		for _, n := range results {
			total += n
		}
		if total > 0 {
			if err := enqueuer.EnqueueIndexPapers(0); err != nil {
				logger.Warn("Failed to enqueue indexing task", "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"results": results, "new_papers": total})
	})

	// Synchronous index build for operators who want to wait for it.
	api.POST("/index/build", func(c *gin.Context) {
		indexed, err := indexing.IndexPending(c.Request.Context(), 0)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"indexed": indexed})
	})

	// Drop the index and queue a full rebuild.
	api.POST("/index/reset", func(c *gin.Context) {
		if err := indexing.Reset(c.Request.Context()); err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		if err := enqueuer.EnqueueIndexPapers(0); err != nil {
			logger.Warn("Failed to enqueue rebuild after reset", "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"reset": true})
	})
}
