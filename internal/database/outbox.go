package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	EventRecordAppended = "RECORD_APPENDED"

	statusPending   = "pending"
	statusPublished = "published"
	statusDead      = "dead"

	// maxRetries before an event is parked as dead.
	maxRetries = 5
)

// RecordEvent is one outbox entry, written in the same transaction as its
// bid record and later published to the target Redis stream by the relay.
type RecordEvent struct {
	ID           uuid.UUID
	BidID        string
	EventType    string
	Payload      json.RawMessage
	TargetStream string
	Status       string
	RetryCount   int
	LastError    *string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// InsertTx stages an event inside the caller's transaction.
func (r *OutboxRepository) InsertTx(ctx context.Context, tx pgx.Tx, event *RecordEvent) error {
	if event.BidID == "" || event.EventType == "" || event.TargetStream == "" {
		return fmt.Errorf("outbox event requires bid_id, event_type and target_stream")
	}
	if len(event.Payload) == 0 {
		return fmt.Errorf("outbox event requires a payload")
	}

	event.ID = uuid.New()
	event.Status = statusPending
	event.CreatedAt = time.Now()

	_, err := tx.Exec(ctx, `
		INSERT INTO record_outbox (id, bid_id, event_type, payload, target_stream, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.BidID, event.EventType, event.Payload, event.TargetStream, event.Status, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// GetPending returns the oldest unpublished events, up to limit.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*RecordEvent, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, bid_id, event_type, payload, target_stream, status, retry_count, last_error, created_at, processed_at
		FROM record_outbox
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`,
		statusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []*RecordEvent
	for rows.Next() {
		e := &RecordEvent{}
		if err := rows.Scan(
			&e.ID, &e.BidID, &e.EventType, &e.Payload, &e.TargetStream,
			&e.Status, &e.RetryCount, &e.LastError, &e.CreatedAt, &e.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkPublished flags an event as delivered to its stream.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE record_outbox
		SET status = $1, processed_at = now()
		WHERE id = $2`,
		statusPublished, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}
	return nil
}

// MarkFailed bumps the retry count and parks the event as dead once it has
// exhausted its retries.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE record_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    status = CASE WHEN retry_count + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4`,
		cause.Error(), maxRetries, statusDead, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

// CountByStatus reports outbox depth for health reporting.
func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.pool.QueryRow(ctx,
		`SELECT count(*) FROM record_outbox WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return count, nil
}
