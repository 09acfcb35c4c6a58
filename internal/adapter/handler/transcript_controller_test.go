package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
	"github.com/dealsense-team/dealsense/internal/domain/repositories"
	usecaseErrors "github.com/dealsense-team/dealsense/internal/usecase/errors"
	"github.com/dealsense-team/dealsense/internal/usecase/pipeline"
	pkgvalidator "github.com/dealsense-team/dealsense/pkg/validator"
)

// stubService implements pipeline.Service with canned behavior per test
type stubService struct {
	ingestRecord *entities.TranscriptRecord
	ingestErr    error
	getRecord    *entities.TranscriptRecord
	getErr       error
	retryErr     error
	riskSummary  *entities.RiskSummary
	riskErr      error
	sweepReport  *pipeline.SweepReport
	sweepErr     error
}

func (s *stubService) IngestTranscript(ctx context.Context, input pipeline.IngestInput) (*entities.TranscriptRecord, error) {
	return s.ingestRecord, s.ingestErr
}
func (s *stubService) GetRecord(ctx context.Context, id uuid.UUID) (*entities.TranscriptRecord, error) {
	return s.getRecord, s.getErr
}
func (s *stubService) ListRecords(ctx context.Context, filters repositories.RecordFilters) ([]entities.TranscriptRecord, error) {
	return nil, nil
}
func (s *stubService) Process(ctx context.Context, evt pipeline.ParseEvent) (pipeline.ProcessOutcome, error) {
	return pipeline.OutcomeCompleted, nil
}
func (s *stubService) RetryParsing(ctx context.Context, id uuid.UUID) error {
	return s.retryErr
}
func (s *stubService) AnalyzeRisk(ctx context.Context, id uuid.UUID) (*entities.RiskSummary, error) {
	return s.riskSummary, s.riskErr
}
func (s *stubService) RecoverStuck(ctx context.Context) (*pipeline.SweepReport, error) {
	return s.sweepReport, s.sweepErr
}
func (s *stubService) StartWorkerPool(ctx context.Context, workerCount int) error { return nil }
func (s *stubService) StopWorkerPool() error                                      { return nil }

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = pkgvalidator.New()
	return e
}

func TestIngest_Created(t *testing.T) {
	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "hello")
	tc := NewTranscriptController(&stubService{ingestRecord: record}, zap.NewNop())

	e := newTestEcho()
	body := `{"source_kind": "call_recording", "transcript_text": "hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := tc.Ingest(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			ID            string `json:"id"`
			ParsingStatus string `json:"parsing_status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Data.ID != record.ID.String() {
		t.Fatalf("response id mismatch")
	}
	if resp.Data.ParsingStatus != "pending" {
		t.Fatalf("expected pending, got %s", resp.Data.ParsingStatus)
	}
}

func TestIngest_UnknownSourceKindRejected(t *testing.T) {
	tc := NewTranscriptController(&stubService{}, zap.NewNop())

	e := newTestEcho()
	body := `{"source_kind": "carrier_pigeon", "transcript_text": "coo"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := tc.Ingest(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngest_DispatchFailureMapsTo503(t *testing.T) {
	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "hello")
	svc := &stubService{
		ingestRecord: record,
		ingestErr:    fmt.Errorf("%w: connection refused", usecaseErrors.ErrDispatchFailed),
	}
	tc := NewTranscriptController(svc, zap.NewNop())

	e := newTestEcho()
	body := `{"source_kind": "call_recording", "transcript_text": "hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := tc.Ingest(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	// The job never ran: 503, not a processing failure
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Details["record_id"] != record.ID.String() {
		t.Fatalf("response must identify the stored record, got %+v", resp.Details)
	}
}

func TestRetryParsing_DispatchFailureMapsTo503(t *testing.T) {
	svc := &stubService{retryErr: fmt.Errorf("%w: connection refused", usecaseErrors.ErrDispatchFailed)}
	tc := NewTranscriptController(svc, zap.NewNop())

	e := newTestEcho()
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts/"+id.String()+"/retry-parsing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := tc.RetryParsing(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGet_NotFound(t *testing.T) {
	tc := NewTranscriptController(&stubService{getErr: usecaseErrors.ErrRecordNotFound}, zap.NewNop())

	e := newTestEcho()
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/transcripts/"+id.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := tc.Get(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGet_BadID(t *testing.T) {
	tc := NewTranscriptController(&stubService{}, zap.NewNop())

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodGet, "/v1/transcripts/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := tc.Get(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRetryParsing_IneligibleMapsTo422(t *testing.T) {
	tc := NewTranscriptController(&stubService{retryErr: usecaseErrors.ErrRecordIneligible}, zap.NewNop())

	e := newTestEcho()
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts/"+id.String()+"/retry-parsing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := tc.RetryParsing(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRetryParsing_Accepted(t *testing.T) {
	tc := NewTranscriptController(&stubService{}, zap.NewNop())

	e := newTestEcho()
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/transcripts/"+id.String()+"/retry-parsing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := tc.RetryParsing(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestRecoverStuck_ReturnsReport(t *testing.T) {
	report := &pipeline.SweepReport{TotalFound: 2, Restarted: 1, Skipped: 1, Results: []pipeline.SweepResult{}}
	pc := NewPipelineController(&stubService{sweepReport: report}, zap.NewNop())

	e := newTestEcho()
	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/recover-stuck", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := pc.RecoverStuck(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data pipeline.SweepReport `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Data.TotalFound != 2 || resp.Data.Restarted != 1 {
		t.Fatalf("report not returned: %+v", resp.Data)
	}
}
