package pipeline

import "github.com/google/uuid"

// Event names carried over the durable queue. Names are stable; payload
// schemas below are the wire contract.
const (
	// EventTranscriptParse requests one extraction pass for a record
	EventTranscriptParse = "transcript.parse"

	// EventTranscriptCompleted announces a completed extraction so
	// downstream stages (risk assessment) can react
	EventTranscriptCompleted = "transcript.completed"
)

// ParseEvent is the payload of a parse processing request. TranscriptText
// is a denormalized copy carried for call-recording sources to avoid a
// second read of the text column under load.
type ParseEvent struct {
	RecordID       uuid.UUID `json:"record_id"`
	TranscriptText string    `json:"transcript_text,omitempty"`
}

// CompletedEvent is the payload of a completed-transcript notification
type CompletedEvent struct {
	RecordID uuid.UUID `json:"record_id"`
}
