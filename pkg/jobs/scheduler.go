package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type enqueuer interface {
	Enqueue(job Job) error
}

// Every enqueues the job built by next immediately and then once per
// interval until ctx is cancelled. It blocks; run it in its own goroutine.
func Every(ctx context.Context, interval time.Duration, q enqueuer, next func(time.Time) Job, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}

	fire := func(now time.Time) {
		job := next(now)
		if err := q.Enqueue(job); err != nil {
			logger.Warn("scheduled job not enqueued", zap.String("type", job.Type), zap.Error(err))
		}
	}

	fire(time.Now().UTC())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fire(now.UTC())
		}
	}
}
