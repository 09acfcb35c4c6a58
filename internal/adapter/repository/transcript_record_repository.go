package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
	"github.com/dealsense-team/dealsense/internal/domain/repositories"
)

// TranscriptRecordRepository handles transcript record data operations
type TranscriptRecordRepository struct {
	db *gorm.DB
}

var _ repositories.TranscriptRecordRepository = (*TranscriptRecordRepository)(nil)

// NewTranscriptRecordRepository creates a new transcript record repository
func NewTranscriptRecordRepository(db *gorm.DB) *TranscriptRecordRepository {
	return &TranscriptRecordRepository{db: db}
}

// GetDB exposes the underlying connection for advanced queries
func (r *TranscriptRecordRepository) GetDB() *gorm.DB {
	return r.db
}

// Create creates a new transcript record
func (r *TranscriptRecordRepository) Create(ctx context.Context, record *entities.TranscriptRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a transcript record by ID
func (r *TranscriptRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.TranscriptRecord, error) {
	var record entities.TranscriptRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List retrieves transcript records matching the given filters
func (r *TranscriptRecordRepository) List(ctx context.Context, filters repositories.RecordFilters) ([]entities.TranscriptRecord, error) {
	var records []entities.TranscriptRecord
	query := r.db.WithContext(ctx).Model(&entities.TranscriptRecord{})

	if filters.Status != nil {
		query = query.Where("parsing_status = ?", *filters.Status)
	}
	if filters.SourceKind != nil {
		query = query.Where("source_kind = ?", *filters.SourceKind)
	}
	if filters.Limit == 0 {
		filters.Limit = 100
	}

	if err := query.
		Order("created_at DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListByStatus retrieves all transcript records with a specific status
func (r *TranscriptRecordRepository) ListByStatus(ctx context.Context, status entities.ParsingStatus, limit int) ([]entities.TranscriptRecord, error) {
	var records []entities.TranscriptRecord
	if limit == 0 {
		limit = 500
	}
	if err := r.db.WithContext(ctx).
		Where("parsing_status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ClaimForParsing atomically claims a pending record for processing.
// The WHERE clause on the current status guarantees only one worker
// succeeds when the same event is delivered more than once.
func (r *TranscriptRecordRepository) ClaimForParsing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Where("id = ? AND parsing_status = ?", id, entities.ParsingStatusPending).
		Updates(map[string]interface{}{
			"parsing_status": entities.ParsingStatusParsing,
			"parsing_error":  nil,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCompleted writes the extracted payload, parsed timestamp and
// completed status in a single update
func (r *TranscriptRecordRepository) MarkCompleted(ctx context.Context, id uuid.UUID, payload *entities.ExtractedPayload, raw map[string]interface{}) error {
	if payload == nil {
		return errors.New("payload cannot be nil")
	}
	now := time.Now()
	updates := map[string]interface{}{
		"parsing_status":    entities.ParsingStatusCompleted,
		"extracted_payload": payload,
		"parsed_at":         now,
		"parsing_error":     nil,
		"updated_at":        now,
	}
	if raw != nil {
		updates["raw_extraction"] = datatypes.NewJSONType(raw)
	}
	return r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkFailed records the extraction error as data on the record
func (r *TranscriptRecordRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"parsing_status": entities.ParsingStatusFailed,
			"parsing_error":  errMsg,
			"updated_at":     now,
		}).Error
}

// ResetToPending resets a record for an explicit retry, clearing the error
func (r *TranscriptRecordRepository) ResetToPending(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"parsing_status": entities.ParsingStatusPending,
			"parsing_error":  nil,
			"updated_at":     now,
		}).Error
}

// ResetStuck force-resets a record wedged in parsing back to pending.
// When stuckBefore is set, only records idle since then are reset.
func (r *TranscriptRecordRepository) ResetStuck(ctx context.Context, id uuid.UUID, stuckBefore *time.Time) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Where("id = ? AND parsing_status = ?", id, entities.ParsingStatusParsing)
	if stuckBefore != nil {
		query = query.Where("updated_at < ?", *stuckBefore)
	}
	result := query.Updates(map[string]interface{}{
		"parsing_status": entities.ParsingStatusPending,
		"parsing_error":  nil,
		"updated_at":     time.Now(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveRiskAssessment updates only the risk fields. Concurrent extraction
// writers touch different columns, so neither clobbers the other.
func (r *TranscriptRecordRepository) SaveRiskAssessment(ctx context.Context, id uuid.UUID, summary *entities.RiskSummary) error {
	if summary == nil {
		return errors.New("summary cannot be nil")
	}
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entities.TranscriptRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"risk_assessment":  summary,
			"risk_assessed_at": now,
			"updated_at":       now,
		}).Error
}
