package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dealsense-team/dealsense/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg                  *config.Config
	transcriptController *TranscriptController
	pipelineController   *PipelineController
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, transcriptController *TranscriptController, pipelineController *PipelineController) *Router {
	return &Router{
		cfg:                  cfg,
		transcriptController: transcriptController,
		pipelineController:   pipelineController,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupTranscriptRoutes(v1)
	rt.setupPipelineRoutes(v1)
}

// setupTranscriptRoutes configures transcript record routes
func (rt *Router) setupTranscriptRoutes(g *echo.Group) {
	transcriptGroup := g.Group("/transcripts")

	transcriptGroup.POST("", rt.transcriptController.Ingest)
	transcriptGroup.GET("", rt.transcriptController.List)
	transcriptGroup.GET("/:id", rt.transcriptController.Get)
	transcriptGroup.POST("/:id/retry-parsing", rt.transcriptController.RetryParsing)
	transcriptGroup.POST("/:id/analyze-risk", rt.transcriptController.AnalyzeRisk)
}

// setupPipelineRoutes configures operator pipeline routes
func (rt *Router) setupPipelineRoutes(g *echo.Group) {
	pipelineGroup := g.Group("/pipeline")

	pipelineGroup.POST("/recover-stuck", rt.pipelineController.RecoverStuck)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
