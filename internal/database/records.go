package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/maltedev/bidgrid-scraper/internal/models"
	"github.com/maltedev/bidgrid-scraper/internal/store"
)

// insufficientPrivilege is the SQLSTATE Postgres reports when the role may
// not write the table.
const insufficientPrivilege = "42501"

// RecordStore persists merged records in Postgres. Every append commits the
// record together with a RECORD_APPENDED outbox event in one transaction.
type RecordStore struct {
	db     *DB
	outbox *OutboxRepository
	stream string
	logger *slog.Logger
}

func NewRecordStore(db *DB, stream string) *RecordStore {
	return &RecordStore{
		db:     db,
		outbox: NewOutboxRepository(db),
		stream: stream,
		logger: slog.Default().With("component", "pg_store"),
	}
}

func (s *RecordStore) LoadSeenIdentifiers(ctx context.Context) (models.SeenSet, error) {
	seen := models.NewSeenSet()

	rows, err := s.db.pool.Query(ctx, `SELECT DISTINCT bid_id FROM bid_records`)
	if err != nil {
		s.logger.Warn("could not read back stored identifiers, starting with empty set", "error", err)
		return seen, nil
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.logger.Warn("identifier read-back degraded, starting with empty set", "error", err)
			return models.NewSeenSet(), nil
		}
		seen.Add(id)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("identifier read-back degraded, starting with empty set", "error", err)
		return models.NewSeenSet(), nil
	}

	s.logger.Info("loaded previously captured identifiers", "count", seen.Len())
	return seen, nil
}

func (s *RecordStore) Append(ctx context.Context, rec *models.MergedRecord) error {
	payload, err := json.Marshal(map[string]string{
		"bid_id":   rec.Identifier(),
		"category": rec.Category,
		"title":    rec.Summary.Title,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding event payload: %v", store.ErrWriteFailure, err)
	}

	documents, err := json.Marshal(rec.Detail.Documents)
	if err != nil {
		return fmt.Errorf("%w: encoding documents: %v", store.ErrWriteFailure, err)
	}

	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bid_records (
				id, category, bid_id, contract_number, title, open_date, deadline,
				agency, unspsc, contact_email, ad_date, response_deadline,
				important_message, documents
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			uuid.New(), rec.Category, rec.Summary.BidID, rec.Summary.ContractNumber,
			rec.Summary.Title, rec.Summary.OpenDate, rec.Summary.Deadline,
			rec.Summary.Agency, rec.Summary.UNSPSC, rec.Detail.ContactEmail,
			rec.Detail.AdDate, rec.Detail.ResponseDeadline, rec.Detail.ImportantMessage,
			documents,
		)
		if err != nil {
			return err
		}

		return s.outbox.InsertTx(ctx, tx, &RecordEvent{
			BidID:        rec.Identifier(),
			EventType:    EventRecordAppended,
			Payload:      payload,
			TargetStream: s.stream,
		})
	})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *RecordStore) Close() error {
	s.db.Close()
	return nil
}

func (s *RecordStore) mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == insufficientPrivilege {
		return fmt.Errorf("%w: %v", store.ErrAccessDenied, err)
	}
	return fmt.Errorf("%w: %v", store.ErrWriteFailure, err)
}
