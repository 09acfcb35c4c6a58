package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dealsense-team/dealsense/errors"
	"github.com/dealsense-team/dealsense/internal/adapter/dto/transcript"
	"github.com/dealsense-team/dealsense/internal/adapter/presenter"
	"github.com/dealsense-team/dealsense/internal/domain/entities"
	"github.com/dealsense-team/dealsense/internal/domain/repositories"
	usecaseErrors "github.com/dealsense-team/dealsense/internal/usecase/errors"
	"github.com/dealsense-team/dealsense/internal/usecase/pipeline"
)

// TranscriptController handles transcript record endpoints
type TranscriptController struct {
	svc    pipeline.Service
	logger *zap.Logger
}

// NewTranscriptController creates a new transcript controller
func NewTranscriptController(svc pipeline.Service, logger *zap.Logger) *TranscriptController {
	return &TranscriptController{svc: svc, logger: logger}
}

// Ingest creates a transcript record and dispatches processing
func (tc *TranscriptController) Ingest(c echo.Context) error {
	var req transcript.IngestTranscriptRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	input := pipeline.IngestInput{
		SourceKind:       entities.SourceKind(req.SourceKind),
		TranscriptText:   req.TranscriptText,
		ExternalSourceID: req.ExternalSourceID,
	}
	if req.LinkedOpportunityID != nil {
		oppID, err := uuid.Parse(*req.LinkedOpportunityID)
		if err != nil {
			return HandleError(tc.logger, c, errors.ErrInvalidArgument("linked_opportunity_id must be a UUID"))
		}
		input.LinkedOpportunityID = &oppID
	}

	record, err := tc.svc.IngestTranscript(c.Request().Context(), input)
	if err != nil {
		if stdErrors.Is(err, usecaseErrors.ErrDispatchFailed) {
			// The record was stored but the job never ran
			return HandleError(tc.logger, c, errors.ErrDispatchFailed(err).WithDetail("record_id", record.ID.String()))
		}
		return HandleError(tc.logger, c, errors.ErrInternal(err))
	}

	return HandleSuccessWithStatus(tc.logger, c, http.StatusCreated, presenter.ToTranscriptRecordResponse(record))
}

// List returns transcript records matching optional status and source filters
func (tc *TranscriptController) List(c echo.Context) error {
	var req transcript.ListTranscriptsRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	filters := repositories.RecordFilters{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if req.Status != nil {
		status := entities.ParsingStatus(*req.Status)
		filters.Status = &status
	}
	if req.SourceKind != nil {
		kind := entities.SourceKind(*req.SourceKind)
		filters.SourceKind = &kind
	}

	records, err := tc.svc.ListRecords(c.Request().Context(), filters)
	if err != nil {
		return HandleError(tc.logger, c, errors.ErrDBQueryFailed("list transcript records", err))
	}

	return HandleSuccess(tc.logger, c, presenter.ToTranscriptListResponse(records))
}

// Get returns one transcript record by ID
func (tc *TranscriptController) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidArgument("id must be a UUID"))
	}

	record, err := tc.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		if stdErrors.Is(err, usecaseErrors.ErrRecordNotFound) {
			return HandleError(tc.logger, c, errors.ErrTranscriptNotFound(id.String()))
		}
		return HandleError(tc.logger, c, errors.ErrInternal(err))
	}

	return HandleSuccess(tc.logger, c, presenter.ToTranscriptRecordResponse(record))
}

// RetryParsing resets a record to pending and re-dispatches processing
func (tc *TranscriptController) RetryParsing(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidArgument("id must be a UUID"))
	}

	if err := tc.svc.RetryParsing(c.Request().Context(), id); err != nil {
		switch {
		case stdErrors.Is(err, usecaseErrors.ErrRecordNotFound):
			return HandleError(tc.logger, c, errors.ErrTranscriptNotFound(id.String()))
		case stdErrors.Is(err, usecaseErrors.ErrRecordIneligible):
			return HandleError(tc.logger, c, errors.ErrTranscriptIneligible(id.String()))
		case stdErrors.Is(err, usecaseErrors.ErrDispatchFailed):
			return HandleError(tc.logger, c, errors.ErrDispatchFailed(err).WithDetail("record_id", id.String()))
		default:
			return HandleError(tc.logger, c, errors.ErrInternal(err))
		}
	}

	return HandleSuccessWithStatus(tc.logger, c, http.StatusAccepted, map[string]interface{}{
		"record_id": id.String(),
		"status":    "retry_dispatched",
	})
}

// AnalyzeRisk runs the risk assessment stage for one record synchronously
func (tc *TranscriptController) AnalyzeRisk(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return HandleError(tc.logger, c, errors.ErrInvalidArgument("id must be a UUID"))
	}

	summary, err := tc.svc.AnalyzeRisk(c.Request().Context(), id)
	if err != nil {
		switch {
		case stdErrors.Is(err, usecaseErrors.ErrRecordNotFound):
			return HandleError(tc.logger, c, errors.ErrTranscriptNotFound(id.String()))
		case stdErrors.Is(err, usecaseErrors.ErrRecordIneligible):
			return HandleError(tc.logger, c, errors.ErrTranscriptIneligible(id.String()))
		case stdErrors.Is(err, usecaseErrors.ErrRiskAssessmentFailed):
			return HandleError(tc.logger, c, errors.ErrRiskAssessmentFailed(err).WithDetail("record_id", id.String()))
		default:
			return HandleError(tc.logger, c, errors.ErrInternal(err))
		}
	}

	return HandleSuccess(tc.logger, c, summary)
}
