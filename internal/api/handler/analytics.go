package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/leadscout/internal/repository"
)

// AnalyticsHandler serves aggregate pipeline metrics.
type AnalyticsHandler struct {
	questions *repository.QuestionRepository
	responses *repository.ResponseRepository
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(questions *repository.QuestionRepository, responses *repository.ResponseRepository) *AnalyticsHandler {
	return &AnalyticsHandler{
		questions: questions,
		responses: responses,
	}
}

// Summary handles GET /api/v1/analytics/summary.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.questions.Count(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	byStatus, err := h.questions.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	byPlatform, err := h.questions.CountByPlatform(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	respTotal, posted, avgConfidence, err := h.responses.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	postRate := 0.0
	if respTotal > 0 {
		postRate = float64(posted) / float64(respTotal)
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": gin.H{
			"total":       total,
			"by_status":   byStatus,
			"by_platform": byPlatform,
		},
		"responses": gin.H{
			"total":          respTotal,
			"posted":         posted,
			"post_rate":      postRate,
			"avg_confidence": avgConfidence,
		},
	})
}
