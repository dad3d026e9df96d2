package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/leadscout/internal/api/handler"
	"github.com/timmy/leadscout/internal/api/middleware"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
	"github.com/timmy/leadscout/internal/service"
	"gorm.io/gorm"
)

// Dependencies bundles everything the router wires into handlers.
type Dependencies struct {
	DB        *gorm.DB
	Questions *repository.QuestionRepository
	Comments  *repository.CommentRepository
	Responses *repository.ResponseRepository
	CrawlLogs *repository.CrawlLogRepository
	Markets   *config.Registry
	Scheduler *service.Scheduler
	Posting   *service.PostingService
	Agent     handler.AgentHealthChecker
	Logger    *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps *Dependencies, serverCfg *config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch serverCfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  serverCfg.CORS.AllowedOrigins,
		AllowAllOrigins: serverCfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.DB, deps.Agent)
	questionHandler := handler.NewQuestionHandler(deps.Questions, deps.Comments, deps.Responses)
	responseHandler := handler.NewResponseHandler(deps.Responses, deps.Posting)
	crawlHandler := handler.NewCrawlHandler(deps.Scheduler, deps.CrawlLogs, deps.Markets)
	analyticsHandler := handler.NewAnalyticsHandler(deps.Questions, deps.Responses)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Questions
		v1.GET("/questions", questionHandler.ListQuestions)
		v1.GET("/questions/:id", questionHandler.GetQuestion)
		v1.PUT("/questions/:id/status", questionHandler.UpdateStatus)

		// Responses
		v1.GET("/responses", responseHandler.ListResponses)
		v1.GET("/questions/:id/response", responseHandler.GetResponse)
		v1.POST("/questions/:id/post", responseHandler.PostResponse)

		// Crawls
		v1.POST("/crawls", crawlHandler.TriggerCrawl)
		v1.GET("/crawls", crawlHandler.ListCrawlLogs)
		v1.GET("/markets", crawlHandler.ListMarkets)

		// Analytics
		v1.GET("/analytics/summary", analyticsHandler.Summary)
	}

	return r
}
