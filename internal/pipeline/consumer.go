package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"docuchat/features/document"
	"docuchat/internal/middleware"
)

// Consumer adapts the processor to NSQ delivery.
type Consumer struct {
	processor *Processor
}

func NewConsumer(processor *Processor) *Consumer {
	return &Consumer{processor: processor}
}

func (c *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task ProcessTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if task.DocumentID == "" {
		slog.Error("poison pill: task without document id")
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}

	slog.InfoContext(ctx, "processing document", "document_id", task.DocumentID)
	if err := c.processor.Process(ctx, task.DocumentID); err != nil {
		// A task for a row that no longer exists (deleted between publish
		// and consume) can never succeed, so don't let NSQ redeliver it.
		if errors.Is(err, document.ErrNotFound) {
			slog.WarnContext(ctx, "document gone, dropping task", "document_id", task.DocumentID)
			return nil
		}
		return err
	}
	return nil
}
