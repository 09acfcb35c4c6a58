package presenter

import (
	"github.com/dealsense-team/dealsense/internal/adapter/dto/transcript"
	"github.com/dealsense-team/dealsense/internal/domain/entities"
)

// ToTranscriptRecordResponse converts a TranscriptRecord entity to its DTO
func ToTranscriptRecordResponse(r *entities.TranscriptRecord) *transcript.TranscriptRecordResponse {
	if r == nil {
		return nil
	}

	response := &transcript.TranscriptRecordResponse{
		ID:               r.ID.String(),
		SourceKind:       string(r.SourceKind),
		TranscriptText:   r.TranscriptText,
		ParsingStatus:    string(r.ParsingStatus),
		ParsingError:     r.ParsingError,
		ParsedAt:         r.ParsedAt,
		ExtractedPayload: r.ExtractedPayload,
		RiskAssessment:   r.RiskAssessment,
		RiskAssessedAt:   r.RiskAssessedAt,
		ExternalSourceID: r.ExternalSourceID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if r.LinkedOpportunityID != nil {
		id := r.LinkedOpportunityID.String()
		response.LinkedOpportunityID = &id
	}

	return response
}

// ToTranscriptListResponse converts a slice of records to a list DTO
func ToTranscriptListResponse(records []entities.TranscriptRecord) *transcript.TranscriptListResponse {
	responses := make([]transcript.TranscriptRecordResponse, len(records))
	for i := range records {
		responses[i] = *ToTranscriptRecordResponse(&records[i])
	}
	return &transcript.TranscriptListResponse{
		Records: responses,
		Count:   len(responses),
	}
}
