package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
	"github.com/timmy/leadscout/internal/service"
)

// CrawlHandler handles crawl trigger and audit endpoints.
type CrawlHandler struct {
	scheduler *service.Scheduler
	crawlLogs *repository.CrawlLogRepository
	markets   *config.Registry
}

// NewCrawlHandler creates a new crawl handler.
func NewCrawlHandler(scheduler *service.Scheduler, crawlLogs *repository.CrawlLogRepository, markets *config.Registry) *CrawlHandler {
	return &CrawlHandler{
		scheduler: scheduler,
		crawlLogs: crawlLogs,
		markets:   markets,
	}
}

type triggerCrawlRequest struct {
	Market string `json:"market" binding:"required"`
	Limit  int    `json:"limit"`
}

// TriggerCrawl handles POST /api/v1/crawls. The crawl runs in the background;
// the response acknowledges the trigger and the run is tracked in crawl logs.
func (h *CrawlHandler) TriggerCrawl(c *gin.Context) {
	var req triggerCrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if h.markets.Get(req.Market) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown market: " + req.Market})
		return
	}

	// Detach from the request context; the crawl outlives this request.
	ctx := logger.FromContext(c.Request.Context()).WithContext(context.Background())
	go func() {
		if err := h.scheduler.Trigger(ctx, req.Market, req.Limit); err != nil && !errors.Is(err, service.ErrCrawlInFlight) {
			logger.FromContext(ctx).WithError(err).
				WithField(logger.FieldMarket, req.Market).
				Error("Manual crawl failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"market": req.Market,
		"status": "triggered",
	})
}

// ListCrawlLogs handles GET /api/v1/crawls, newest first, optionally filtered
// by market.
func (h *CrawlHandler) ListCrawlLogs(c *gin.Context) {
	market := c.Query("market")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.crawlLogs.List(c.Request.Context(), market, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list crawl logs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"crawls": logs,
		"count":  len(logs),
		"limit":  limit,
		"offset": offset,
	})
}

// ListMarkets handles GET /api/v1/markets.
func (h *CrawlHandler) ListMarkets(c *gin.Context) {
	names := h.markets.Names()
	markets := make([]gin.H, 0, len(names))
	for _, name := range names {
		m := h.markets.Get(name)
		markets = append(markets, gin.H{
			"name":              m.Name,
			"description":       m.Description,
			"crawl_interval":    m.CrawlInterval.String(),
			"min_confidence":    h.markets.MinConfidence(name),
			"max_posts_per_day": m.MaxPostsPerDay,
		})
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets})
}
