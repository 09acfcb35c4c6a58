package transcript

// IngestTranscriptRequest is the payload for creating a transcript record.
// TranscriptText may be empty: the record is stored but never processed.
type IngestTranscriptRequest struct {
	SourceKind          string  `json:"source_kind" validate:"required,oneof=call_recording meeting_notes earnings_call"`
	TranscriptText      string  `json:"transcript_text"`
	LinkedOpportunityID *string `json:"linked_opportunity_id,omitempty" validate:"omitempty,uuid4"`
	ExternalSourceID    *string `json:"external_source_id,omitempty" validate:"omitempty,max=255"`
}

// ListTranscriptsRequest carries the list endpoint's query filters
type ListTranscriptsRequest struct {
	Status     *string `query:"status" validate:"omitempty,oneof=pending parsing completed failed"`
	SourceKind *string `query:"source_kind" validate:"omitempty,oneof=call_recording meeting_notes earnings_call"`
	Limit      int     `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int     `query:"offset" validate:"omitempty,min=0"`
}
