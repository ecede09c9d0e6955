package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/store"
	"github.com/qwe111-didna/auto-get-arxiv-papers/internal/vector"
	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
	"github.com/qwe111-didna/auto-get-arxiv-papers/utils"
)

func SetupPaperRoutes(router *gin.Engine, papers *store.PaperStore, index vector.Index, export *services.ExportService) {
	api := router.Group("/api")

	api.GET("/papers", func(c *gin.Context) {
		filter, err := paperFilterFromQuery(c)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}

		result, err := papers.ListPapers(c.Request.Context(), filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list papers", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"papers": result, "count": len(result)})
	})

	api.GET("/papers/search", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			utils.RespondWithBadRequest(c, "Query parameter q is required", nil)
			return
		}
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

		result, err := papers.SearchPapers(c.Request.Context(), q, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"papers": result, "count": len(result)})
	})

	api.GET("/papers/export", func(c *gin.Context) {
		filter, err := paperFilterFromQuery(c)
		if err != nil {
			utils.RespondWithBadRequest(c, err.Error(), nil)
			return
		}

		data, count, err := export.ExportPapers(c.Request.Context(), filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Export failed", nil)
			return
		}

		c.Header("Content-Disposition", "attachment; filename=papers.xlsx")
		c.Header("X-Record-Count", strconv.Itoa(count))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})

	api.GET("/papers/:id", func(c *gin.Context) {
		paper, err := papers.GetPaper(c.Request.Context(), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "Paper not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load paper", nil)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	api.DELETE("/papers/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")

		err := papers.DeletePaper(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithNotFound(c, "Paper not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to delete paper", nil)
			return
		}
		if err := index.Remove(ctx, id); err != nil {
			utils.RespondWithInternalError(c, "Paper deleted but index cleanup failed", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
	})

	api.GET("/favorites", func(c *gin.Context) {
		favorite := true
		result, err := papers.ListPapers(c.Request.Context(), store.PaperFilter{Favorite: &favorite})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list favorites", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"papers": result, "count": len(result)})
	})

	api.POST("/favorites/:id", func(c *gin.Context) {
		setFavorite(c, papers, true)
	})

	api.DELETE("/favorites/:id", func(c *gin.Context) {
		setFavorite(c, papers, false)
	})
}

func setFavorite(c *gin.Context, papers *store.PaperStore, favorite bool) {
	err := papers.SetFavorite(c.Request.Context(), c.Param("id"), favorite)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithNotFound(c, "Paper not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to update favorite", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "favorite": favorite})
}

func paperFilterFromQuery(c *gin.Context) (store.PaperFilter, error) {
	filter := store.PaperFilter{
		Category: c.Query("category"),
	}

	if v := c.Query("favorite"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("favorite must be true or false")
		}
		filter.Favorite = &b
	}
	if v := c.Query("indexed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("indexed must be true or false")
		}
		filter.Indexed = &b
	}

	filter.Limit, _ = strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	filter.Skip, _ = strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
	return filter, nil
}
