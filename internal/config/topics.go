package config

const (
	// TopicDocumentProcess is the NSQ topic for document ingestion tasks.
	// A task is published only after the document row has been committed,
	// so the pipeline consumer always reads a visible record.
	TopicDocumentProcess = "document.process"

	// ChannelPipeline is the consumer channel for the ingestion pipeline.
	ChannelPipeline = "pipeline"
)
