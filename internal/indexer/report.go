package indexer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BRO3886/story-indexer/internal/queue"
	"github.com/BRO3886/story-indexer/internal/types"
)

// Reporter receives the summary of every run.
type Reporter interface {
	Report(ctx context.Context, report types.RunReport) error
}

type queueReporter struct {
	enqueuer queue.Enqueuer
	topic    string
}

// NewQueueReporter publishes reports as JSON, keyed by run id.
func NewQueueReporter(enqueuer queue.Enqueuer, topic string) Reporter {
	return &queueReporter{enqueuer: enqueuer, topic: topic}
}

func (q *queueReporter) Report(ctx context.Context, report types.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return q.enqueuer.Enqueue(ctx, q.topic, []byte(report.RunID), data)
}
