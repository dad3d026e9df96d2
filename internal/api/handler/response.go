package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/leadscout/internal/repository"
	"github.com/timmy/leadscout/internal/service"
	"gorm.io/gorm"
)

// ResponseHandler handles agent response endpoints.
type ResponseHandler struct {
	responses *repository.ResponseRepository
	posting   *service.PostingService
}

// NewResponseHandler creates a new response handler.
func NewResponseHandler(responses *repository.ResponseRepository, posting *service.PostingService) *ResponseHandler {
	return &ResponseHandler{
		responses: responses,
		posting:   posting,
	}
}

// ListResponses handles GET /api/v1/responses. With pending=true only drafts
// awaiting posting are returned.
func (h *ResponseHandler) ListResponses(c *gin.Context) {
	pendingOnly := c.Query("pending") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	responses, err := h.responses.List(c.Request.Context(), pendingOnly, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list responses: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"responses": responses,
		"count":     len(responses),
		"limit":     limit,
		"offset":    offset,
	})
}

// GetResponse handles GET /api/v1/questions/:id/response.
func (h *ResponseHandler) GetResponse(c *gin.Context) {
	questionID := c.Param("id")

	resp, err := h.responses.GetByQuestionID(c.Request.Context(), questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No response for question"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// PostResponse handles POST /api/v1/questions/:id/post. Calling this endpoint
// is the explicit approval for publishing the draft.
func (h *ResponseHandler) PostResponse(c *gin.Context) {
	questionID := c.Param("id")

	resp, err := h.posting.Post(c.Request.Context(), questionID, true)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Question or response not found"})
		case errors.Is(err, service.ErrNoDraft):
			c.JSON(http.StatusConflict, gin.H{"error": "Response has no draft to post"})
		case errors.Is(err, service.ErrAlreadyPosted):
			c.JSON(http.StatusConflict, gin.H{"error": "Response already posted"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Posting failed: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}
