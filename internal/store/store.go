package store

import (
	"context"
	"errors"

	"github.com/maltedev/bidgrid-scraper/internal/models"
)

var (
	// ErrAccessDenied signals the durable medium refused access, e.g. the
	// target file is locked or permissions are missing.
	ErrAccessDenied = errors.New("store access denied")
	// ErrWriteFailure signals any other I/O fault while appending.
	ErrWriteFailure = errors.New("store write failure")
)

// RecordStore persists merged records and recovers the set of already
// captured identifiers on restart. A failed Append drops that record only;
// callers are expected to continue the run.
type RecordStore interface {
	// LoadSeenIdentifiers reads back every stored record's identifier.
	// An absent store is a fresh start, not an error; a malformed store
	// degrades to an empty set with a logged warning.
	LoadSeenIdentifiers(ctx context.Context) (models.SeenSet, error)

	// Append durably writes one record, creating the store with its
	// schema if needed. Each call is an independent durable transaction.
	Append(ctx context.Context, rec *models.MergedRecord) error

	Close() error
}
