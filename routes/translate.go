package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qwe111-didna/auto-get-arxiv-papers/services"
	"github.com/qwe111-didna/auto-get-arxiv-papers/utils"
)

type translateRequest struct {
	Text       string `json:"text" binding:"required,min=1,max=10000"`
	TargetLang string `json:"target_lang"`
}

func SetupTranslateRoutes(router *gin.Engine, translation *services.TranslationService) {
	api := router.Group("/api")

	api.POST("/translate", func(c *gin.Context) {
		var req translateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		translated, err := translation.Translate(c.Request.Context(), req.Text, req.TargetLang)
		if err != nil {
			utils.RespondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"translated": translated})
	})
}
