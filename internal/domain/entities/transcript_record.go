package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ParsingStatus represents the processing state of a transcript record.
// It is the single source of truth for pipeline progress.
type ParsingStatus string

const (
	ParsingStatusPending   ParsingStatus = "pending"   // Waiting to be processed
	ParsingStatusParsing   ParsingStatus = "parsing"   // Extraction in flight
	ParsingStatusCompleted ParsingStatus = "completed" // Extraction done, payload stored
	ParsingStatusFailed    ParsingStatus = "failed"    // Extraction failed, error stored
)

// SourceKind identifies where a transcript was ingested from
type SourceKind string

const (
	SourceKindCallRecording SourceKind = "call_recording" // Call-recording export
	SourceKindMeetingNotes  SourceKind = "meeting_notes"  // Meeting-notes export
	SourceKindEarningsCall  SourceKind = "earnings_call"  // Earnings-call feed
)

// ValidSourceKind reports whether k is a known ingestion source
func ValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceKindCallRecording, SourceKindMeetingNotes, SourceKindEarningsCall:
		return true
	}
	return false
}

// PersonRole is the classified role of a person extracted from a transcript
type PersonRole string

const (
	PersonRoleDecisionMaker PersonRole = "decision_maker"
	PersonRoleChampion      PersonRole = "champion"
	PersonRoleInfluencer    PersonRole = "influencer"
	PersonRoleBlocker       PersonRole = "blocker"
	PersonRoleUnknown       PersonRole = "unknown"
)

// ExtractedPerson is a person identified in a transcript with a
// deterministically classified role
type ExtractedPerson struct {
	Name           string     `json:"name"`
	Organization   string     `json:"organization,omitempty"`
	RawRole        string     `json:"raw_role,omitempty"`
	ClassifiedRole PersonRole `json:"classified_role"`
}

// ExtractedPayload is the structured sales intelligence produced by the
// extraction model. Present only on completed records.
type ExtractedPayload struct {
	PainPoints []string          `json:"pain_points"`
	Goals      []string          `json:"goals"`
	NextSteps  []string          `json:"next_steps"`
	People     []ExtractedPerson `json:"people"`
}

// Scan implements sql.Scanner interface for GORM
func (p *ExtractedPayload) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &p)
}

// Value implements driver.Valuer interface for GORM
func (p ExtractedPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// TranscriptRecord represents one ingested transcript and its enrichment
// state, regardless of ingestion source
type TranscriptRecord struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SourceKind SourceKind `json:"source_kind" gorm:"type:varchar(50);not null;index"`

	// TranscriptText is immutable once set. A record without text is
	// ineligible for processing and is skipped, not retried.
	TranscriptText string `json:"transcript_text,omitempty" gorm:"type:text"`

	ParsingStatus ParsingStatus `json:"parsing_status" gorm:"type:varchar(50);not null;index;default:'pending'"`
	ParsingError  *string       `json:"parsing_error,omitempty" gorm:"type:text"`
	ParsedAt      *time.Time    `json:"parsed_at,omitempty" gorm:"type:timestamp"`

	ExtractedPayload *ExtractedPayload `json:"extracted_payload,omitempty" gorm:"type:jsonb;serializer:json"`

	// RiskAssessment has its own lifecycle, orthogonal to ParsingStatus
	RiskAssessment *RiskSummary `json:"risk_assessment,omitempty" gorm:"type:jsonb;serializer:json"`
	RiskAssessedAt *time.Time   `json:"risk_assessed_at,omitempty" gorm:"type:timestamp"`

	// Optional linkage fields set by ingestion or human action; the
	// pipeline never mutates them
	LinkedOpportunityID *uuid.UUID `json:"linked_opportunity_id,omitempty" gorm:"type:uuid;index"`
	ExternalSourceID    *string    `json:"external_source_id,omitempty" gorm:"type:varchar(255);index"`

	// RawExtraction keeps the unvalidated model response for debugging
	RawExtraction datatypes.JSONType[map[string]interface{}] `json:"raw_extraction,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (TranscriptRecord) TableName() string {
	return "transcript_records"
}

// NewTranscriptRecord creates a new record in pending status
func NewTranscriptRecord(kind SourceKind, text string) *TranscriptRecord {
	return &TranscriptRecord{
		ID:             uuid.New(),
		SourceKind:     kind,
		TranscriptText: text,
		ParsingStatus:  ParsingStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

// Eligible reports whether the record has transcript text to process
func (r *TranscriptRecord) Eligible() bool {
	return r.TranscriptText != ""
}

// IsTerminal reports whether the record is in a terminal parsing state
func (r *TranscriptRecord) IsTerminal() bool {
	return r.ParsingStatus == ParsingStatusCompleted || r.ParsingStatus == ParsingStatusFailed
}

// MarkParsing transitions pending -> parsing and clears any prior error
func (r *TranscriptRecord) MarkParsing() {
	r.ParsingStatus = ParsingStatusParsing
	r.ParsingError = nil
	r.UpdatedAt = time.Now()
}

// MarkCompleted transitions parsing -> completed. ParsedAt is set here and
// only here; ParsingError is cleared so the completed invariant holds.
func (r *TranscriptRecord) MarkCompleted(payload *ExtractedPayload) {
	now := time.Now()
	r.ParsingStatus = ParsingStatusCompleted
	r.ExtractedPayload = payload
	r.ParsedAt = &now
	r.ParsingError = nil
	r.UpdatedAt = now
}

// MarkFailed transitions parsing -> failed with the error recorded as data
func (r *TranscriptRecord) MarkFailed(errMsg string) {
	r.ParsingStatus = ParsingStatusFailed
	r.ParsingError = &errMsg
	r.UpdatedAt = time.Now()
}

// ResetToPending is the explicit retry edge: failed/parsing -> pending.
// ParsingError must be cleared on any transition back to pending.
func (r *TranscriptRecord) ResetToPending() {
	r.ParsingStatus = ParsingStatusPending
	r.ParsingError = nil
	r.UpdatedAt = time.Now()
}

// SetRiskAssessment stores a risk summary without touching ParsingStatus
func (r *TranscriptRecord) SetRiskAssessment(summary *RiskSummary) {
	now := time.Now()
	r.RiskAssessment = summary
	r.RiskAssessedAt = &now
	r.UpdatedAt = now
}
