package transcript

import (
	"time"

	"github.com/dealsense-team/dealsense/internal/domain/entities"
)

// TranscriptRecordResponse is the external view of a transcript record.
// The raw model response is intentionally not exposed.
type TranscriptRecordResponse struct {
	ID             string `json:"id"`
	SourceKind     string `json:"source_kind"`
	TranscriptText string `json:"transcript_text,omitempty"`

	ParsingStatus string     `json:"parsing_status"`
	ParsingError  *string    `json:"parsing_error,omitempty"`
	ParsedAt      *time.Time `json:"parsed_at,omitempty"`

	ExtractedPayload *entities.ExtractedPayload `json:"extracted_payload,omitempty"`

	RiskAssessment *entities.RiskSummary `json:"risk_assessment,omitempty"`
	RiskAssessedAt *time.Time            `json:"risk_assessed_at,omitempty"`

	LinkedOpportunityID *string `json:"linked_opportunity_id,omitempty"`
	ExternalSourceID    *string `json:"external_source_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TranscriptListResponse wraps a page of records
type TranscriptListResponse struct {
	Records []TranscriptRecordResponse `json:"records"`
	Count   int                        `json:"count"`
}
