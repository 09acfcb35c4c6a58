package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dealsense-team/dealsense/errors"
	"github.com/dealsense-team/dealsense/internal/usecase/pipeline"
)

// PipelineController handles operator-facing pipeline endpoints
type PipelineController struct {
	svc    pipeline.Service
	logger *zap.Logger
}

// NewPipelineController creates a new pipeline controller
func NewPipelineController(svc pipeline.Service, logger *zap.Logger) *PipelineController {
	return &PipelineController{svc: svc, logger: logger}
}

// RecoverStuck runs one stuck-job recovery sweep and returns the report.
// Meant for a single operator or scheduler; one sweep at a time.
func (pc *PipelineController) RecoverStuck(c echo.Context) error {
	report, err := pc.svc.RecoverStuck(c.Request().Context())
	if err != nil {
		return HandleError(pc.logger, c, errors.ErrSweepFailed(err))
	}
	return HandleSuccess(pc.logger, c, report)
}
