package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamPublisher is the Redis surface the relay needs; narrowed for tests.
type StreamPublisher interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// OutboxSource is the outbox surface the relay needs; narrowed for tests.
type OutboxSource interface {
	GetPending(ctx context.Context, limit int) ([]*RecordEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

// Relay drains the record outbox into Redis streams. It runs beside the
// extraction worker and keeps going across individual publish failures.
type Relay struct {
	outbox    OutboxSource
	publisher StreamPublisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func NewRelay(outbox OutboxSource, publisher StreamPublisher, cfg RelayConfig) *Relay {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
		logger:    slog.Default().With("component", "relay"),
	}
}

// Start polls until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting outbox relay", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.drain(ctx); err != nil {
		r.logger.Error("initial outbox drain failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	published := 0
	for _, event := range events {
		if err := r.publish(ctx, event); err != nil {
			r.logger.Error("failed to publish event", "event_id", event.ID, "bid_id", event.BidID, "error", err)
			if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
				r.logger.Error("failed to record publish failure", "event_id", event.ID, "error", markErr)
			}
			continue
		}
		if err := r.outbox.MarkPublished(ctx, event.ID); err != nil {
			// The event will be re-published on the next drain; consumers
			// must tolerate duplicates.
			r.logger.Error("failed to mark event published", "event_id", event.ID, "error", err)
			continue
		}
		published++
	}

	r.logger.Info("drained outbox batch", "published", published, "batch", len(events))
	return nil
}

func (r *Relay) publish(ctx context.Context, event *RecordEvent) error {
	return r.publisher.XAdd(ctx, &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: map[string]interface{}{
			"event_id":   event.ID.String(),
			"event_type": event.EventType,
			"bid_id":     event.BidID,
			"payload":    string(event.Payload),
			"created_at": event.CreatedAt.Format(time.RFC3339),
		},
	}).Err()
}
