package pipeline

// ProcessTask is the message published on document upload and consumed by
// the processing pipeline.
type ProcessTask struct {
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
