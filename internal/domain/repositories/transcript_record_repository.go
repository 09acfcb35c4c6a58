package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
)

// RecordFilters narrows transcript record listings
type RecordFilters struct {
	Status     *entities.ParsingStatus
	SourceKind *entities.SourceKind
	Limit      int
	Offset     int
}

// TranscriptRecordRepository defines persistence operations for transcript
// records. All single-record mutations are atomic writes of the fields
// they own; the parsing state machine relies on that.
type TranscriptRecordRepository interface {
	Create(ctx context.Context, record *entities.TranscriptRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TranscriptRecord, error)
	List(ctx context.Context, filters RecordFilters) ([]entities.TranscriptRecord, error)
	ListByStatus(ctx context.Context, status entities.ParsingStatus, limit int) ([]entities.TranscriptRecord, error)

	// ClaimForParsing atomically moves pending -> parsing, clearing the
	// parsing error. Returns false when the record was not in pending,
	// which a consumer treats as a redundant duplicate delivery.
	ClaimForParsing(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkCompleted writes payload, parsed_at and completed status in one
	// update so no reader can observe a half-written record. raw is the
	// unvalidated model response, kept for debugging; may be nil.
	MarkCompleted(ctx context.Context, id uuid.UUID, payload *entities.ExtractedPayload, raw map[string]interface{}) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// ResetToPending is the explicit retry edge from any state.
	ResetToPending(ctx context.Context, id uuid.UUID) error

	// ResetStuck moves parsing -> pending only; returns false when the
	// record left parsing between listing and reset (benign race).
	ResetStuck(ctx context.Context, id uuid.UUID, stuckBefore *time.Time) (bool, error)

	// SaveRiskAssessment writes only the risk fields, never parsing state.
	SaveRiskAssessment(ctx context.Context, id uuid.UUID, summary *entities.RiskSummary) error
}
