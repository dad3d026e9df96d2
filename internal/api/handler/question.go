package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/leadscout/internal/domain"
	"github.com/timmy/leadscout/internal/repository"
	"gorm.io/gorm"
)

// QuestionHandler handles question-related endpoints.
type QuestionHandler struct {
	questions *repository.QuestionRepository
	comments  *repository.CommentRepository
	responses *repository.ResponseRepository
}

// NewQuestionHandler creates a new question handler.
func NewQuestionHandler(
	questions *repository.QuestionRepository,
	comments *repository.CommentRepository,
	responses *repository.ResponseRepository,
) *QuestionHandler {
	return &QuestionHandler{
		questions: questions,
		comments:  comments,
		responses: responses,
	}
}

// ListQuestions handles GET /api/v1/questions.
// Optional filters: status, market. Paginated via limit/offset.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	status := domain.QuestionStatus(c.Query("status"))
	if status != "" && !validStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status: " + string(status),
		})
		return
	}
	market := c.Query("market")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	questions, err := h.questions.List(c.Request.Context(), status, market, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list questions: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"count":     len(questions),
		"limit":     limit,
		"offset":    offset,
	})
}

// GetQuestion handles GET /api/v1/questions/:id. The payload includes the
// question's comments and its agent response when one exists.
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := c.Param("id")

	q, err := h.questions.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	comments, err := h.comments.ListByQuestion(c.Request.Context(), id)
	if err == nil {
		q.Comments = comments
	}

	payload := gin.H{"question": q}
	if resp, err := h.responses.GetByQuestionID(c.Request.Context(), id); err == nil {
		payload["response"] = resp
	}

	c.JSON(http.StatusOK, payload)
}

type updateStatusRequest struct {
	Status domain.QuestionStatus `json:"status" binding:"required"`
}

// UpdateStatus handles PUT /api/v1/questions/:id/status. Manual overrides are
// limited to ignored and pending; processing is pipeline-internal and the
// other terminal states are set by the pipeline itself.
func (h *QuestionHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	switch req.Status {
	case domain.QuestionStatusIgnored, domain.QuestionStatusPending:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Status can only be set to ignored or pending",
		})
		return
	}

	if err := h.questions.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func validStatus(s domain.QuestionStatus) bool {
	switch s {
	case domain.QuestionStatusPending, domain.QuestionStatusProcessing,
		domain.QuestionStatusAnswered, domain.QuestionStatusIgnored,
		domain.QuestionStatusError:
		return true
	}
	return false
}
