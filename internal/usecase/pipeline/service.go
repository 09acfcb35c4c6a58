package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
	"github.com/dealsense-team/dealsense/internal/domain/repositories"
	"github.com/dealsense-team/dealsense/internal/infrastructure/queue"
	usecaseErrors "github.com/dealsense-team/dealsense/internal/usecase/errors"
	"github.com/dealsense-team/dealsense/pkg/config"
	"github.com/dealsense-team/dealsense/pkg/jobcontext"
)

// ProcessOutcome classifies the result of one processing attempt
type ProcessOutcome string

const (
	OutcomeCompleted ProcessOutcome = "completed" // Payload stored
	OutcomeFailed    ProcessOutcome = "failed"    // Client failure recorded as data
	OutcomeSkipped   ProcessOutcome = "skipped"   // Ineligible, no text
	OutcomeRedundant ProcessOutcome = "redundant" // Duplicate delivery, not in pending
	OutcomeNotFound  ProcessOutcome = "not_found" // Record deleted since dispatch
)

// SweepResult is the per-record outcome of a recovery sweep
type SweepResult struct {
	RecordID uuid.UUID `json:"id"`
	Status   string    `json:"status"` // restarted | skipped | failed
	Reason   string    `json:"reason,omitempty"`
}

// SweepReport aggregates a recovery sweep run
type SweepReport struct {
	TotalFound int           `json:"total_found"`
	Restarted  int           `json:"restarted"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Results    []SweepResult `json:"results"`
}

// IngestInput carries a new transcript into the pipeline
type IngestInput struct {
	SourceKind          entities.SourceKind
	TranscriptText      string
	LinkedOpportunityID *uuid.UUID
	ExternalSourceID    *string
}

// ExtractionModel produces structured sales intelligence from raw text
type ExtractionModel interface {
	Extract(ctx context.Context, transcript string) (string, error)
}

// RiskModel produces a deal-risk summary from raw text
type RiskModel interface {
	AssessRisk(ctx context.Context, transcript string) (string, error)
}

// Service drives the transcript enrichment pipeline
type Service interface {
	IngestTranscript(ctx context.Context, input IngestInput) (*entities.TranscriptRecord, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*entities.TranscriptRecord, error)
	ListRecords(ctx context.Context, filters repositories.RecordFilters) ([]entities.TranscriptRecord, error)

	Process(ctx context.Context, evt ParseEvent) (ProcessOutcome, error)
	RetryParsing(ctx context.Context, id uuid.UUID) error
	AnalyzeRisk(ctx context.Context, id uuid.UUID) (*entities.RiskSummary, error)
	RecoverStuck(ctx context.Context) (*SweepReport, error)

	StartWorkerPool(ctx context.Context, workerCount int) error
	StopWorkerPool() error
}

type pipelineService struct {
	recordRepo repositories.TranscriptRecordRepository
	queue      queue.Queue
	extraction ExtractionModel
	risk       RiskModel
	parser     *Parser
	cfg        *config.Config
	logger     *zap.Logger

	workerStopChan      chan struct{}
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewService constructs the pipeline service
func NewService(
	recordRepo repositories.TranscriptRecordRepository,
	q queue.Queue,
	extraction ExtractionModel,
	risk RiskModel,
	cfg *config.Config,
	logger *zap.Logger,
) Service {
	return &pipelineService{
		recordRepo: recordRepo,
		queue:      q,
		extraction: extraction,
		risk:       risk,
		parser:     NewParser(),
		cfg:        cfg,
		logger:     logger,
	}
}

// IngestTranscript creates a record in pending and dispatches a parse
// event. Records without text are persisted but never dispatched; they
// are ineligible and will be skipped, not retried.
func (s *pipelineService) IngestTranscript(ctx context.Context, input IngestInput) (*entities.TranscriptRecord, error) {
	if !entities.ValidSourceKind(input.SourceKind) {
		return nil, usecaseErrors.ErrInvalidSourceKind
	}

	record := entities.NewTranscriptRecord(input.SourceKind, input.TranscriptText)
	record.LinkedOpportunityID = input.LinkedOpportunityID
	record.ExternalSourceID = input.ExternalSourceID

	if err := s.recordRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create transcript record: %w", err)
	}

	if !record.Eligible() {
		s.logger.Warn("transcript ingested without text, skipping dispatch",
			zap.String("record_id", record.ID.String()),
			zap.String("source_kind", string(record.SourceKind)),
		)
		return record, nil
	}

	if err := s.dispatchParse(ctx, record); err != nil {
		// The record exists in pending; the caller learns the job was
		// never accepted, which is distinct from processing failure.
		return record, fmt.Errorf("%w: %v", usecaseErrors.ErrDispatchFailed, err)
	}

	s.logger.Info("transcript ingested",
		zap.String("record_id", record.ID.String()),
		zap.String("source_kind", string(record.SourceKind)),
		zap.Int("text_length", len(record.TranscriptText)),
	)

	return record, nil
}

// dispatchParse sends one parse event. Call-recording sources carry a
// denormalized copy of the text to avoid a second read under load.
func (s *pipelineService) dispatchParse(ctx context.Context, record *entities.TranscriptRecord) error {
	evt := ParseEvent{RecordID: record.ID}
	if record.SourceKind == entities.SourceKindCallRecording {
		evt.TranscriptText = record.TranscriptText
	}
	return s.queue.Send(ctx, EventTranscriptParse, evt)
}

// GetRecord retrieves one record
func (s *pipelineService) GetRecord(ctx context.Context, id uuid.UUID) (*entities.TranscriptRecord, error) {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, usecaseErrors.ErrRecordNotFound
	}
	return record, nil
}

// ListRecords retrieves records matching filters
func (s *pipelineService) ListRecords(ctx context.Context, filters repositories.RecordFilters) ([]entities.TranscriptRecord, error) {
	return s.recordRepo.List(ctx, filters)
}

// Process is the single transition operation of the parsing state
// machine. A client failure never propagates out of here as an error: it
// is recorded on the record as data. Returned errors are infrastructure
// failures only and leave the record rescuable by the recovery sweep.
func (s *pipelineService) Process(ctx context.Context, evt ParseEvent) (ProcessOutcome, error) {
	record, err := s.recordRepo.GetByID(ctx, evt.RecordID)
	if err != nil {
		return "", fmt.Errorf("failed to load record: %w", err)
	}
	if record == nil {
		s.logger.Warn("parse event for missing record, dropping",
			zap.String("record_id", evt.RecordID.String()),
		)
		return OutcomeNotFound, nil
	}

	// Precondition: missing text makes the record ineligible. Skipped is
	// not an error and the record stays pending.
	if !record.Eligible() {
		s.logger.Info("record has no transcript text, skipping",
			zap.String("record_id", record.ID.String()),
		)
		return OutcomeSkipped, nil
	}

	// Single-write claim: pending -> parsing, clearing the prior error.
	// A concurrent duplicate delivery observes non-pending and stops.
	claimed, err := s.recordRepo.ClaimForParsing(ctx, record.ID)
	if err != nil {
		return "", fmt.Errorf("failed to claim record: %w", err)
	}
	if !claimed {
		s.logger.Info("record not in pending, duplicate delivery is redundant",
			zap.String("record_id", record.ID.String()),
			zap.String("status", string(record.ParsingStatus)),
		)
		return OutcomeRedundant, nil
	}

	text := evt.TranscriptText
	if text == "" {
		text = record.TranscriptText
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.cfg.Extraction.Timeout)
	defer cancel()

	response, err := s.extraction.Extract(extractCtx, text)
	if err != nil {
		return s.recordFailure(ctx, record.ID, fmt.Sprintf("extraction call failed: %v", err))
	}

	// A payload that does not conform is a client failure, not a success
	payload, raw, err := s.parser.ParseExtractionResponse(response)
	if err != nil {
		return s.recordFailure(ctx, record.ID, fmt.Sprintf("extraction payload rejected: %v", err))
	}

	if err := s.recordRepo.MarkCompleted(ctx, record.ID, payload, raw); err != nil {
		return "", fmt.Errorf("failed to mark record completed: %w", err)
	}

	s.logger.Info("transcript extraction completed",
		zap.String("record_id", record.ID.String()),
		zap.Int("pain_points", len(payload.PainPoints)),
		zap.Int("goals", len(payload.Goals)),
		zap.Int("next_steps", len(payload.NextSteps)),
		zap.Int("people", len(payload.People)),
	)

	// Fire-and-forget: a lost notification never rolls back completion
	if err := s.queue.Send(ctx, EventTranscriptCompleted, CompletedEvent{RecordID: record.ID}); err != nil {
		s.logger.Warn("failed to emit completed notification",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
	}

	return OutcomeCompleted, nil
}

func (s *pipelineService) recordFailure(ctx context.Context, id uuid.UUID, msg string) (ProcessOutcome, error) {
	if err := s.recordRepo.MarkFailed(ctx, id, msg); err != nil {
		return "", fmt.Errorf("failed to mark record failed: %w", err)
	}
	s.logger.Error("transcript extraction failed",
		zap.String("record_id", id.String()),
		zap.String("reason", msg),
	)
	return OutcomeFailed, nil
}

// RetryParsing resets one record to pending and re-dispatches a parse
// event. Idempotent: repeated calls re-enqueue a harmless duplicate.
func (s *pipelineService) RetryParsing(ctx context.Context, id uuid.UUID) error {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return usecaseErrors.ErrRecordNotFound
	}
	if !record.Eligible() {
		return usecaseErrors.ErrRecordIneligible
	}

	if err := s.recordRepo.ResetToPending(ctx, id); err != nil {
		return fmt.Errorf("failed to reset record: %w", err)
	}
	record.ResetToPending()

	if err := s.dispatchParse(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", usecaseErrors.ErrDispatchFailed, err)
	}

	s.logger.Info("transcript parsing retry dispatched",
		zap.String("record_id", id.String()),
	)
	return nil
}

// AnalyzeRisk runs the risk assessment stage for one record. It is
// decoupled from the parsing lifecycle and only ever writes the risk
// fields; failures surface to the caller without mutating parsing state.
func (s *pipelineService) AnalyzeRisk(ctx context.Context, id uuid.UUID) (*entities.RiskSummary, error) {
	record, err := s.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, usecaseErrors.ErrRecordNotFound
	}
	if !record.Eligible() {
		return nil, usecaseErrors.ErrRecordIneligible
	}

	riskCtx, cancel := context.WithTimeout(ctx, s.cfg.Risk.Timeout)
	defer cancel()

	response, err := s.risk.AssessRisk(riskCtx, record.TranscriptText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecaseErrors.ErrRiskAssessmentFailed, err)
	}

	summary, err := s.parser.ParseRiskResponse(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecaseErrors.ErrRiskAssessmentFailed, err)
	}

	if err := s.recordRepo.SaveRiskAssessment(ctx, id, summary); err != nil {
		return nil, fmt.Errorf("failed to save risk assessment: %w", err)
	}

	s.logger.Info("risk assessment stored",
		zap.String("record_id", id.String()),
		zap.String("risk_level", string(summary.RiskLevel)),
	)
	return summary, nil
}

// RecoverStuck rescues records wedged in parsing: a lost delivery or a
// crashed worker leaves a record there forever otherwise. Every record is
// handled independently; one failure never aborts the rest. Safe to run
// at any time because the reset is conditional and re-dispatching an
// already-finished job is a harmless duplicate. Operational constraint:
// one sweep instance at a time.
func (s *pipelineService) RecoverStuck(ctx context.Context) (*SweepReport, error) {
	records, err := s.recordRepo.ListByStatus(ctx, entities.ParsingStatusParsing, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck records: %w", err)
	}

	var stuckBefore *time.Time
	if s.cfg.Pipeline.StuckAfter > 0 {
		cutoff := time.Now().Add(-s.cfg.Pipeline.StuckAfter)
		stuckBefore = &cutoff
	}

	report := &SweepReport{
		TotalFound: len(records),
		Results:    make([]SweepResult, 0, len(records)),
	}

	for _, record := range records {
		result := s.recoverOne(ctx, &record, stuckBefore)
		switch result.Status {
		case "restarted":
			report.Restarted++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}

	s.logger.Info("stuck-job recovery sweep finished",
		zap.Int("total_found", report.TotalFound),
		zap.Int("restarted", report.Restarted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *pipelineService) recoverOne(ctx context.Context, record *entities.TranscriptRecord, stuckBefore *time.Time) SweepResult {
	if !record.Eligible() {
		return SweepResult{RecordID: record.ID, Status: "skipped", Reason: "no transcript text"}
	}

	reset, err := s.recordRepo.ResetStuck(ctx, record.ID, stuckBefore)
	if err != nil {
		s.logger.Error("failed to reset stuck record",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
		return SweepResult{RecordID: record.ID, Status: "failed", Reason: err.Error()}
	}
	if !reset {
		// The record left parsing between listing and reset, or it is
		// younger than the staleness cutoff
		return SweepResult{RecordID: record.ID, Status: "skipped", Reason: "no longer stuck"}
	}

	if err := s.dispatchParse(ctx, record); err != nil {
		s.logger.Error("failed to re-dispatch stuck record",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
		return SweepResult{RecordID: record.ID, Status: "failed", Reason: fmt.Sprintf("dispatch failed: %v", err)}
	}

	return SweepResult{RecordID: record.ID, Status: "restarted"}
}

// StartWorkerPool starts the queue consumers: parse workers, the optional
// auto-risk consumer and the optional periodic recovery sweep
func (s *pipelineService) StartWorkerPool(ctx context.Context, workerCount int) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return usecaseErrors.ErrWorkerPoolRunning
	}

	s.isWorkerPoolRunning = true
	s.workerStopChan = make(chan struct{})

	s.logger.Info("starting pipeline worker pool",
		zap.Int("worker_count", workerCount),
		zap.Bool("auto_risk", s.cfg.Pipeline.AutoRisk),
		zap.Duration("sweep_interval", s.cfg.Pipeline.SweepInterval),
	)

	for i := 0; i < workerCount; i++ {
		s.workerWg.Add(1)
		go s.parseWorker(ctx, i)
	}

	if s.cfg.Pipeline.AutoRisk {
		s.workerWg.Add(1)
		go s.riskWorker(ctx)
	} else {
		// Nothing consumes completed notifications when auto risk is off;
		// drain them so the queue cannot grow without bound.
		s.workerWg.Add(1)
		go s.drainWorker(ctx, EventTranscriptCompleted)
	}

	if s.cfg.Pipeline.SweepInterval > 0 {
		s.workerWg.Add(1)
		go s.sweepWorker(ctx)
	}

	return nil
}

// StopWorkerPool gracefully stops all worker goroutines
func (s *pipelineService) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return usecaseErrors.ErrWorkerPoolStopped
	}

	s.logger.Info("stopping pipeline worker pool")

	close(s.workerStopChan)
	s.workerWg.Wait()
	s.isWorkerPoolRunning = false

	s.logger.Info("pipeline worker pool stopped")
	return nil
}

// parseWorker consumes parse events. Deliveries are acked after handling
// even when the outcome is failed: failure lives on the record, and the
// recovery sweep covers deliveries lost before the ack.
func (s *pipelineService) parseWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()

	s.logger.Info("parse worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-s.workerStopChan:
			s.logger.Info("parse worker stopping", zap.Int("worker_id", workerID))
			return
		default:
		}

		delivery, err := s.queue.Receive(parentCtx, EventTranscriptParse, 5*time.Second)
		if err != nil {
			if parentCtx.Err() != nil {
				return
			}
			s.logger.Error("failed to receive parse event",
				zap.Int("worker_id", workerID),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		var evt ParseEvent
		if err := json.Unmarshal(delivery.Payload, &evt); err != nil {
			s.logger.Error("malformed parse event, dropping",
				zap.String("message_id", delivery.ID.String()),
				zap.Error(err),
			)
			s.ack(parentCtx, delivery)
			continue
		}

		jobCtx, cancel := jobcontext.JobBegin(parentCtx, evt.RecordID, EventTranscriptParse, workerID, s.cfg.Pipeline.JobTimeout)
		err = jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
			outcome, processErr := s.Process(ctx, evt)
			if processErr != nil {
				return processErr
			}
			s.logger.Info("parse event handled",
				zap.Int("worker_id", workerID),
				zap.String("record_id", evt.RecordID.String()),
				zap.String("outcome", string(outcome)),
			)
			return nil
		})
		cancel()

		if err != nil {
			// The record stays in pending or parsing; the recovery sweep
			// re-drives it
			s.logger.Error("parse delivery failed after retries",
				zap.Int("worker_id", workerID),
				zap.String("record_id", evt.RecordID.String()),
				zap.Error(err),
			)
		}

		s.ack(parentCtx, delivery)
	}
}

// riskWorker consumes completed notifications and runs the risk stage
func (s *pipelineService) riskWorker(parentCtx context.Context) {
	defer s.workerWg.Done()

	s.logger.Info("risk worker started")

	for {
		select {
		case <-s.workerStopChan:
			s.logger.Info("risk worker stopping")
			return
		default:
		}

		delivery, err := s.queue.Receive(parentCtx, EventTranscriptCompleted, 5*time.Second)
		if err != nil {
			if parentCtx.Err() != nil {
				return
			}
			s.logger.Error("failed to receive completed event", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		var evt CompletedEvent
		if err := json.Unmarshal(delivery.Payload, &evt); err != nil {
			s.logger.Error("malformed completed event, dropping", zap.Error(err))
			s.ack(parentCtx, delivery)
			continue
		}

		jobCtx, cancel := jobcontext.JobBegin(parentCtx, evt.RecordID, EventTranscriptCompleted, -1, s.cfg.Pipeline.JobTimeout)
		if _, err := s.AnalyzeRisk(jobCtx, evt.RecordID); err != nil {
			// Risk failures never touch parsing state; log and move on
			s.logger.Warn("auto risk assessment failed",
				zap.String("record_id", evt.RecordID.String()),
				zap.Error(err),
			)
		}
		cancel()

		s.ack(parentCtx, delivery)
	}
}

// drainWorker consumes and discards deliveries of an event that has no
// active consumer, keeping the queue bounded
func (s *pipelineService) drainWorker(parentCtx context.Context, event string) {
	defer s.workerWg.Done()

	for {
		select {
		case <-s.workerStopChan:
			return
		default:
		}

		delivery, err := s.queue.Receive(parentCtx, event, 5*time.Second)
		if err != nil {
			if parentCtx.Err() != nil {
				return
			}
			s.logger.Error("failed to receive event for draining",
				zap.String("event", event),
				zap.Error(err),
			)
			time.Sleep(time.Second)
			continue
		}
		if delivery == nil {
			continue
		}

		s.ack(parentCtx, delivery)
	}
}

// sweepWorker periodically rescues records wedged in parsing
func (s *pipelineService) sweepWorker(parentCtx context.Context) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.cfg.Pipeline.SweepInterval)
	defer ticker.Stop()

	s.logger.Info("recovery sweep worker started")

	for {
		select {
		case <-s.workerStopChan:
			s.logger.Info("recovery sweep worker stopping")
			return
		case <-ticker.C:
			if _, err := s.RecoverStuck(parentCtx); err != nil {
				s.logger.Error("periodic recovery sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *pipelineService) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := s.queue.Ack(ctx, delivery); err != nil {
		s.logger.Warn("failed to ack delivery",
			zap.String("message_id", delivery.ID.String()),
			zap.Error(err),
		)
	}
}
