package pipeline

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
	"github.com/dealsense-team/dealsense/internal/domain/repositories"
	"github.com/dealsense-team/dealsense/internal/infrastructure/queue"
	usecaseErrors "github.com/dealsense-team/dealsense/internal/usecase/errors"
	"github.com/dealsense-team/dealsense/pkg/config"
)

// fakeRecordRepo is an in-memory repository with the same transition
// semantics as the GORM implementation
type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*entities.TranscriptRecord
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[uuid.UUID]*entities.TranscriptRecord)}
}

func (r *fakeRecordRepo) Create(ctx context.Context, record *entities.TranscriptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *fakeRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.TranscriptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRecordRepo) List(ctx context.Context, filters repositories.RecordFilters) ([]entities.TranscriptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entities.TranscriptRecord
	for _, record := range r.records {
		if filters.Status != nil && record.ParsingStatus != *filters.Status {
			continue
		}
		if filters.SourceKind != nil && record.SourceKind != *filters.SourceKind {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (r *fakeRecordRepo) ListByStatus(ctx context.Context, status entities.ParsingStatus, limit int) ([]entities.TranscriptRecord, error) {
	s := status
	return r.List(ctx, repositories.RecordFilters{Status: &s})
}

func (r *fakeRecordRepo) ClaimForParsing(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok || record.ParsingStatus != entities.ParsingStatusPending {
		return false, nil
	}
	record.MarkParsing()
	return true, nil
}

func (r *fakeRecordRepo) MarkCompleted(ctx context.Context, id uuid.UUID, payload *entities.ExtractedPayload, raw map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	record.MarkCompleted(payload)
	return nil
}

func (r *fakeRecordRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	record.MarkFailed(errMsg)
	return nil
}

func (r *fakeRecordRepo) ResetToPending(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	record.ResetToPending()
	return nil
}

func (r *fakeRecordRepo) ResetStuck(ctx context.Context, id uuid.UUID, stuckBefore *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok || record.ParsingStatus != entities.ParsingStatusParsing {
		return false, nil
	}
	if stuckBefore != nil && !record.UpdatedAt.Before(*stuckBefore) {
		return false, nil
	}
	record.ResetToPending()
	return true, nil
}

func (r *fakeRecordRepo) SaveRiskAssessment(ctx context.Context, id uuid.UUID, summary *entities.RiskSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	record.SetRiskAssessment(summary)
	return nil
}

// seed stores a record directly, bypassing ingestion
func (r *fakeRecordRepo) seed(record *entities.TranscriptRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
}

func (r *fakeRecordRepo) get(id uuid.UUID) *entities.TranscriptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[id]
}

// failingQueue rejects every send, simulating a queue transport outage
type failingQueue struct{}

func (q *failingQueue) Send(ctx context.Context, event string, payload interface{}) error {
	return fmt.Errorf("connection refused")
}

func (q *failingQueue) Receive(ctx context.Context, event string, wait time.Duration) (*queue.Delivery, error) {
	return nil, nil
}

func (q *failingQueue) Ack(ctx context.Context, delivery *queue.Delivery) error {
	return nil
}

// fakeExtractionModel returns a canned response or error
type fakeExtractionModel struct {
	response string
	err      error
	calls    int
	mu       sync.Mutex
}

func (m *fakeExtractionModel) Extract(ctx context.Context, transcript string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type fakeRiskModel struct {
	response string
	err      error
}

func (m *fakeRiskModel) AssessRisk(ctx context.Context, transcript string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

const validExtraction = `{
	"pain_points": ["slow deploys"],
	"goals": ["halve release time"],
	"next_steps": ["schedule POC"],
	"people": [{"name": "Sarah", "organization": "Northwind", "raw_role": "VP of Engineering", "classified_role": ""}]
}`

func testConfig() *config.Config {
	return &config.Config{
		Extraction: config.ExtractionConfig{Timeout: time.Second},
		Risk:       config.RiskConfig{Timeout: time.Second},
		Pipeline: config.PipelineConfig{
			WorkerCount: 1,
			JobTimeout:  5 * time.Second,
		},
	}
}

func newTestService(repo *fakeRecordRepo, q queue.Queue, extraction ExtractionModel, risk RiskModel) Service {
	if extraction == nil {
		extraction = &fakeExtractionModel{response: validExtraction}
	}
	if risk == nil {
		risk = &fakeRiskModel{response: `{"risk_level": "low", "summary": "healthy deal"}`}
	}
	return NewService(repo, q, extraction, risk, testConfig(), zap.NewNop())
}

func TestIngestTranscript_DispatchesParseEvent(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	record, err := svc.IngestTranscript(context.Background(), IngestInput{
		SourceKind:     entities.SourceKindCallRecording,
		TranscriptText: "Sarah: deploys are slow.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ParsingStatus != entities.ParsingStatusPending {
		t.Fatalf("ingested record should be pending, got %s", record.ParsingStatus)
	}
	if q.Len(EventTranscriptParse) != 1 {
		t.Fatalf("expected 1 parse event, got %d", q.Len(EventTranscriptParse))
	}

	// Call-recording events carry a denormalized copy of the text
	delivery, err := q.Receive(context.Background(), EventTranscriptParse, 100*time.Millisecond)
	if err != nil || delivery == nil {
		t.Fatalf("expected a delivery, got %v %v", delivery, err)
	}
	var evt ParseEvent
	if err := json.Unmarshal(delivery.Payload, &evt); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if evt.RecordID != record.ID {
		t.Fatalf("event record id mismatch")
	}
	if evt.TranscriptText == "" {
		t.Fatalf("call-recording event should carry transcript text")
	}
}

func TestIngestTranscript_NotesEventOmitsText(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	_, err := svc.IngestTranscript(context.Background(), IngestInput{
		SourceKind:     entities.SourceKindMeetingNotes,
		TranscriptText: "Attendees: Priya.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	delivery, _ := q.Receive(context.Background(), EventTranscriptParse, 100*time.Millisecond)
	var evt ParseEvent
	json.Unmarshal(delivery.Payload, &evt)
	if evt.TranscriptText != "" {
		t.Fatalf("meeting-notes event should not carry transcript text")
	}
}

func TestIngestTranscript_NoTextSkipsDispatch(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	record, err := svc.IngestTranscript(context.Background(), IngestInput{
		SourceKind: entities.SourceKindCallRecording,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ParsingStatus != entities.ParsingStatusPending {
		t.Fatalf("ineligible record still starts pending, got %s", record.ParsingStatus)
	}
	if q.Len(EventTranscriptParse) != 0 {
		t.Fatalf("ineligible record must not be dispatched")
	}
}

func TestIngestTranscript_UnknownSourceKind(t *testing.T) {
	svc := newTestService(newFakeRecordRepo(), queue.NewMemoryQueue(), nil, nil)

	_, err := svc.IngestTranscript(context.Background(), IngestInput{
		SourceKind:     "carrier_pigeon",
		TranscriptText: "coo",
	})
	if !stdErrors.Is(err, usecaseErrors.ErrInvalidSourceKind) {
		t.Fatalf("expected ErrInvalidSourceKind, got %v", err)
	}
}

func TestIngestTranscript_DispatchFailureSurfacedDistinctly(t *testing.T) {
	repo := newFakeRecordRepo()
	svc := newTestService(repo, &failingQueue{}, nil, nil)

	record, err := svc.IngestTranscript(context.Background(), IngestInput{
		SourceKind:     entities.SourceKindCallRecording,
		TranscriptText: "Sarah: deploys are slow.",
	})
	if !stdErrors.Is(err, usecaseErrors.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}
	if record == nil {
		t.Fatalf("record must be returned so the caller can identify it")
	}

	// The job never ran: the record is persisted and still pending
	stored := repo.get(record.ID)
	if stored == nil {
		t.Fatalf("record must be persisted despite the dispatch failure")
	}
	if stored.ParsingStatus != entities.ParsingStatusPending {
		t.Fatalf("record must stay pending, got %s", stored.ParsingStatus)
	}
	if stored.ParsingError != nil {
		t.Fatalf("a dispatch failure is not a processing failure")
	}
}

func TestRetryParsing_DispatchFailure(t *testing.T) {
	repo := newFakeRecordRepo()
	svc := newTestService(repo, &failingQueue{}, nil, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	record.MarkParsing()
	record.MarkFailed("model returned garbage")
	repo.seed(record)

	err := svc.RetryParsing(context.Background(), record.ID)
	if !stdErrors.Is(err, usecaseErrors.ErrDispatchFailed) {
		t.Fatalf("expected ErrDispatchFailed, got %v", err)
	}

	// The reset happened; the record waits in pending for the next attempt
	if got := repo.get(record.ID).ParsingStatus; got != entities.ParsingStatusPending {
		t.Fatalf("record should be pending after reset, got %s", got)
	}
}

func TestProcess_Success(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "Sarah: deploys are slow.")
	repo.seed(record)

	outcome, err := svc.Process(context.Background(), ParseEvent{RecordID: record.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome)
	}

	stored := repo.get(record.ID)
	if stored.ParsingStatus != entities.ParsingStatusCompleted {
		t.Fatalf("record not completed, got %s", stored.ParsingStatus)
	}
	if stored.ParsedAt == nil {
		t.Fatalf("parsed_at not set")
	}
	if stored.ExtractedPayload == nil || len(stored.ExtractedPayload.People) != 1 {
		t.Fatalf("payload not stored")
	}
	// Role is normalized from the free-text raw role
	if stored.ExtractedPayload.People[0].ClassifiedRole != entities.PersonRoleDecisionMaker {
		t.Fatalf("role not normalized, got %s", stored.ExtractedPayload.People[0].ClassifiedRole)
	}
	if q.Len(EventTranscriptCompleted) != 1 {
		t.Fatalf("completed notification not emitted")
	}
}

func TestProcess_IneligibleSkipped(t *testing.T) {
	repo := newFakeRecordRepo()
	svc := newTestService(repo, queue.NewMemoryQueue(), nil, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "")
	repo.seed(record)

	outcome, err := svc.Process(context.Background(), ParseEvent{RecordID: record.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if repo.get(record.ID).ParsingStatus != entities.ParsingStatusPending {
		t.Fatalf("skipped record must stay pending")
	}
}

func TestProcess_MissingRecordDropped(t *testing.T) {
	svc := newTestService(newFakeRecordRepo(), queue.NewMemoryQueue(), nil, nil)

	outcome, err := svc.Process(context.Background(), ParseEvent{RecordID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", outcome)
	}
}

func TestProcess_ExtractionErrorRecordedAsData(t *testing.T) {
	repo := newFakeRecordRepo()
	extraction := &fakeExtractionModel{err: fmt.Errorf("model timed out")}
	svc := newTestService(repo, queue.NewMemoryQueue(), extraction, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	repo.seed(record)

	outcome, err := svc.Process(context.Background(), ParseEvent{RecordID: record.ID})
	if err != nil {
		t.Fatalf("client failure must not surface as an error, got %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	stored := repo.get(record.ID)
	if stored.ParsingStatus != entities.ParsingStatusFailed {
		t.Fatalf("record not failed, got %s", stored.ParsingStatus)
	}
	if stored.ParsingError == nil {
		t.Fatalf("failure reason not recorded")
	}
}

func TestProcess_MalformedResponseFails(t *testing.T) {
	repo := newFakeRecordRepo()
	extraction := &fakeExtractionModel{response: "sorry, I cannot help with that"}
	svc := newTestService(repo, queue.NewMemoryQueue(), extraction, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	repo.seed(record)

	outcome, err := svc.Process(context.Background(), ParseEvent{RecordID: record.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
}

func TestProcess_DuplicateDeliveryRedundant(t *testing.T) {
	repo := newFakeRecordRepo()
	extraction := &fakeExtractionModel{response: validExtraction}
	svc := newTestService(repo, queue.NewMemoryQueue(), extraction, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	repo.seed(record)

	evt := ParseEvent{RecordID: record.ID}
	if outcome, _ := svc.Process(context.Background(), evt); outcome != OutcomeCompleted {
		t.Fatalf("first delivery should complete, got %s", outcome)
	}

	outcome, err := svc.Process(context.Background(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRedundant {
		t.Fatalf("second delivery should be redundant, got %s", outcome)
	}
	if extraction.calls != 1 {
		t.Fatalf("extraction must run exactly once, ran %d times", extraction.calls)
	}
	if repo.get(record.ID).ParsingStatus != entities.ParsingStatusCompleted {
		t.Fatalf("duplicate must not disturb the completed record")
	}
}

func TestRetryParsing_RoundTrip(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	record.MarkParsing()
	record.MarkFailed("model returned garbage")
	repo.seed(record)

	if err := svc.RetryParsing(context.Background(), record.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.get(record.ID)
	if stored.ParsingStatus != entities.ParsingStatusPending {
		t.Fatalf("retry should reset to pending, got %s", stored.ParsingStatus)
	}
	if stored.ParsingError != nil {
		t.Fatalf("retry must clear the parsing error")
	}
	if q.Len(EventTranscriptParse) != 1 {
		t.Fatalf("retry should dispatch a parse event")
	}

	// The re-dispatched event completes normally
	outcome, err := svc.Process(context.Background(), ParseEvent{RecordID: record.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed after retry, got %s", outcome)
	}
}

func TestRetryParsing_NotFound(t *testing.T) {
	svc := newTestService(newFakeRecordRepo(), queue.NewMemoryQueue(), nil, nil)
	err := svc.RetryParsing(context.Background(), uuid.New())
	if !stdErrors.Is(err, usecaseErrors.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRetryParsing_Ineligible(t *testing.T) {
	repo := newFakeRecordRepo()
	svc := newTestService(repo, queue.NewMemoryQueue(), nil, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "")
	repo.seed(record)

	err := svc.RetryParsing(context.Background(), record.ID)
	if !stdErrors.Is(err, usecaseErrors.ErrRecordIneligible) {
		t.Fatalf("expected ErrRecordIneligible, got %v", err)
	}
}

func TestAnalyzeRisk_Success(t *testing.T) {
	repo := newFakeRecordRepo()
	risk := &fakeRiskModel{response: `{"risk_level": "high", "score": 0.9, "summary": "budget freeze mentioned"}`}
	svc := newTestService(repo, queue.NewMemoryQueue(), nil, risk)

	record := entities.NewTranscriptRecord(entities.SourceKindEarningsCall, "CFO: spending pause this quarter.")
	record.MarkParsing()
	repo.seed(record)

	summary, err := svc.AnalyzeRisk(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RiskLevel != entities.RiskLevelHigh {
		t.Fatalf("unexpected risk level %s", summary.RiskLevel)
	}

	stored := repo.get(record.ID)
	if stored.RiskAssessment == nil || stored.RiskAssessedAt == nil {
		t.Fatalf("risk assessment not persisted")
	}
	// Risk stage never touches the parsing lifecycle
	if stored.ParsingStatus != entities.ParsingStatusParsing {
		t.Fatalf("risk stage mutated parsing status to %s", stored.ParsingStatus)
	}
}

func TestAnalyzeRisk_ModelFailure(t *testing.T) {
	repo := newFakeRecordRepo()
	risk := &fakeRiskModel{err: fmt.Errorf("rate limited")}
	svc := newTestService(repo, queue.NewMemoryQueue(), nil, risk)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	repo.seed(record)

	_, err := svc.AnalyzeRisk(context.Background(), record.ID)
	if !stdErrors.Is(err, usecaseErrors.ErrRiskAssessmentFailed) {
		t.Fatalf("expected ErrRiskAssessmentFailed, got %v", err)
	}
	if repo.get(record.ID).RiskAssessment != nil {
		t.Fatalf("failed assessment must not be persisted")
	}
}

func TestAnalyzeRisk_NotFound(t *testing.T) {
	svc := newTestService(newFakeRecordRepo(), queue.NewMemoryQueue(), nil, nil)
	_, err := svc.AnalyzeRisk(context.Background(), uuid.New())
	if !stdErrors.Is(err, usecaseErrors.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRecoverStuck_RestartsAndSkips(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	// Three wedged in parsing with text, one wedged without text
	stuckIDs := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, fmt.Sprintf("transcript %d", i))
		record.MarkParsing()
		repo.seed(record)
		stuckIDs = append(stuckIDs, record.ID)
	}
	ineligible := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "")
	ineligible.MarkParsing()
	repo.seed(ineligible)

	// A completed record must never be touched
	done := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "done")
	done.MarkParsing()
	done.MarkCompleted(&entities.ExtractedPayload{Goals: []string{"g"}})
	repo.seed(done)

	report, err := svc.RecoverStuck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalFound != 4 {
		t.Fatalf("expected 4 stuck records, found %d", report.TotalFound)
	}
	if report.Restarted != 3 {
		t.Fatalf("expected 3 restarted, got %d", report.Restarted)
	}
	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", report.Skipped)
	}
	if report.Failed != 0 {
		t.Fatalf("expected 0 failed, got %d", report.Failed)
	}
	if q.Len(EventTranscriptParse) != 3 {
		t.Fatalf("expected 3 re-dispatched events, got %d", q.Len(EventTranscriptParse))
	}

	for _, id := range stuckIDs {
		if repo.get(id).ParsingStatus != entities.ParsingStatusPending {
			t.Fatalf("restarted record %s not reset to pending", id)
		}
	}
	if repo.get(done.ID).ParsingStatus != entities.ParsingStatusCompleted {
		t.Fatalf("sweep must not touch completed records")
	}
}

func TestRecoverStuck_StalenessCutoff(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()

	cfg := testConfig()
	cfg.Pipeline.StuckAfter = time.Hour
	svc := NewService(repo, q, &fakeExtractionModel{response: validExtraction},
		&fakeRiskModel{response: `{"risk_level": "low", "summary": "healthy deal"}`}, cfg, zap.NewNop())

	stale := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "old transcript")
	stale.MarkParsing()
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	repo.seed(stale)

	fresh := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "live transcript")
	fresh.MarkParsing()
	repo.seed(fresh)

	report, err := svc.RecoverStuck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalFound != 2 {
		t.Fatalf("expected 2 records in parsing, found %d", report.TotalFound)
	}
	if report.Restarted != 1 {
		t.Fatalf("only the stale record should restart, got %d", report.Restarted)
	}
	if report.Skipped != 1 {
		t.Fatalf("the fresh record should be skipped, got %d", report.Skipped)
	}

	if got := repo.get(stale.ID).ParsingStatus; got != entities.ParsingStatusPending {
		t.Fatalf("stale record not reset, status %s", got)
	}
	// A record younger than the cutoff may still have a live worker
	if got := repo.get(fresh.ID).ParsingStatus; got != entities.ParsingStatusParsing {
		t.Fatalf("fresh record must be left alone, status %s", got)
	}
	if q.Len(EventTranscriptParse) != 1 {
		t.Fatalf("expected 1 re-dispatched event, got %d", q.Len(EventTranscriptParse))
	}
}

func TestRecoverStuck_DispatchFailureReported(t *testing.T) {
	repo := newFakeRecordRepo()
	svc := newTestService(repo, &failingQueue{}, nil, nil)

	record := entities.NewTranscriptRecord(entities.SourceKindCallRecording, "text")
	record.MarkParsing()
	repo.seed(record)

	report, err := svc.RecoverStuck(context.Background())
	if err != nil {
		t.Fatalf("transport failure on one record must not abort the sweep: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", report.Failed)
	}
	if len(report.Results) != 1 || report.Results[0].Status != "failed" {
		t.Fatalf("unexpected results %+v", report.Results)
	}
	if report.Results[0].Reason == "" {
		t.Fatalf("failed result must carry a reason")
	}
}

func TestRecoverStuck_EmptyPipeline(t *testing.T) {
	svc := newTestService(newFakeRecordRepo(), queue.NewMemoryQueue(), nil, nil)

	report, err := svc.RecoverStuck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalFound != 0 || len(report.Results) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestWorkerPool_ProcessesIngestedTranscript(t *testing.T) {
	repo := newFakeRecordRepo()
	q := queue.NewMemoryQueue()
	svc := newTestService(repo, q, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.StartWorkerPool(ctx, 2); err != nil {
		t.Fatalf("failed to start worker pool: %v", err)
	}
	if err := svc.StartWorkerPool(ctx, 2); !stdErrors.Is(err, usecaseErrors.ErrWorkerPoolRunning) {
		t.Fatalf("double start should fail, got %v", err)
	}

	record, err := svc.IngestTranscript(ctx, IngestInput{
		SourceKind:     entities.SourceKindCallRecording,
		TranscriptText: "Sarah: deploys are slow.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if repo.get(record.ID).ParsingStatus == entities.ParsingStatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := repo.get(record.ID).ParsingStatus; got != entities.ParsingStatusCompleted {
		t.Fatalf("worker did not complete the record, status %s", got)
	}

	// With auto risk off the completed notification is drained, not left
	// to accumulate
	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if q.Len(EventTranscriptCompleted) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := q.Len(EventTranscriptCompleted); n != 0 {
		t.Fatalf("completed notifications not drained, %d left", n)
	}

	if err := svc.StopWorkerPool(); err != nil {
		t.Fatalf("failed to stop worker pool: %v", err)
	}
	if err := svc.StopWorkerPool(); !stdErrors.Is(err, usecaseErrors.ErrWorkerPoolStopped) {
		t.Fatalf("double stop should fail, got %v", err)
	}
}
