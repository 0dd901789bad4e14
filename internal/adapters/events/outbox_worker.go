package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

// OutboxWorker drains user_outbox into the configured publisher. Each batch is
// leased with a claim token so several workers can run side by side.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
	nowFn      func() time.Time
}

type OutboxWorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxWorker{
		logger: logger.With(
			"service", "M04-User-Service",
			"module", "events.outbox_worker",
			"layer", "adapter",
		),
		outbox:     outbox,
		publisher:  publisher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		claimTTL:   cfg.ClaimTTL,
		maxRetries: cfg.MaxRetries,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. Iteration errors are logged and the loop continues.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// BatchResult counts what one ProcessOnce call did.
type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
}

func (w *OutboxWorker) ProcessOnce(ctx context.Context) (BatchResult, error) {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, w.nowFn().Add(w.claimTTL))
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Claimed: len(records)}
	now := w.nowFn()
	for _, rec := range records {
		if rec.RetryCount >= w.maxRetries {
			result.DeadLettered++
			w.mark(ctx, "mark_dead_lettered", rec, w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now))
			continue
		}

		if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload, rec.PartitionKey); err != nil {
			result.Failed++
			retriesAfterFailure := rec.RetryCount + 1
			if retriesAfterFailure >= w.maxRetries {
				result.DeadLettered++
				w.logger.ErrorContext(ctx, "outbox message moved to dlq",
					"operation", "publish_event",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"event_type", rec.EventType,
					"payload_bytes", len(rec.Payload),
					"retry_count", retriesAfterFailure,
					"error", err,
				)
				w.mark(ctx, "mark_dead_lettered", rec, w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now))
				continue
			}

			w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", retriesAfterFailure,
				"error", err,
			)
			w.mark(ctx, "mark_failed", rec, w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now))
			continue
		}
		result.Published++
		w.mark(ctx, "mark_published", rec, w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now))
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", result.Published,
			"failed_count", result.Failed,
			"dead_lettered_count", result.DeadLettered,
		)
	}
	return result, nil
}

func (w *OutboxWorker) mark(ctx context.Context, operation string, rec ports.OutboxRecord, err error) {
	if err == nil {
		return
	}
	w.logger.WarnContext(ctx, "outbox state update failed",
		"operation", operation,
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"error", err,
	)
}
