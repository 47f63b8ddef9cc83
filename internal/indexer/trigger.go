package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/BRO3886/story-indexer/internal/types"
)

// HandleTrigger is a queue.MessageHandler that runs a rebuild per message.
// A rebuild already running elsewhere is not an error.
func (r *Rebuilder) HandleTrigger(ctx context.Context, data []byte) error {
	trigger := "queue"

	var event types.TriggerEvent
	if len(data) > 0 {
		if err := json.Unmarshal(data, &event); err != nil {
			r.logger.Warn("unreadable trigger message, rebuilding anyway", "error", err)
		} else if event.Reason != "" {
			trigger = "queue:" + event.Reason
		}
	}

	_, err := r.Run(ctx, trigger)
	if errors.Is(err, ErrRebuildInProgress) {
		r.logger.Info("trigger ignored, rebuild in progress")
		return nil
	}
	return err
}

// Schedule runs a rebuild right away and then every interval until ctx is
// cancelled. Failed runs are logged and do not stop the schedule.
func (r *Rebuilder) Schedule(ctx context.Context, interval time.Duration) {
	r.logger.Info("scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Run(ctx, "schedule"); err != nil && !errors.Is(err, ErrRebuildInProgress) {
			r.logger.Error("scheduled rebuild failed", "error", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return
		}
	}
}
