// Package grid abstracts the remote bid grid: category tabs, the paginated
// row table, and the per-row detail view. The concrete implementations
// drive a single shared playwright page; callers must not interleave
// operations from multiple goroutines.
package grid

import (
	"context"
	"errors"

	"github.com/maltedev/bidgrid-scraper/internal/models"
)

var (
	// ErrCategoryNotFound means the category's tab control could not be
	// located or activated within the timeout.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrTableNotReady means the row table did not become present within
	// the timeout.
	ErrTableNotReady = errors.New("table not ready")
	// ErrDetailUnavailable means the detail view did not open within the
	// timeout for a row.
	ErrDetailUnavailable = errors.New("detail view unavailable")
	// ErrMalformedRow means a row has fewer cells than the expected schema
	// or a blank identifier. Such rows are skipped silently.
	ErrMalformedRow = errors.New("malformed row")
)

// Navigator selects categories and walks the paginated row table.
type Navigator interface {
	// SelectCategory switches the grid to the named category and waits for
	// the table to begin reflecting it.
	SelectCategory(ctx context.Context, name string) error

	// CurrentPageRows returns a snapshot of row handles for the currently
	// displayed page. Handles are valid only until the next SelectCategory
	// or AdvancePage call.
	CurrentPageRows(ctx context.Context) ([]RowHandle, error)

	// AdvancePage activates the pagination "next" control if present and
	// enabled. It returns false, without error, at the end of a category.
	AdvancePage(ctx context.Context) (bool, error)
}

// RowHandle is an opaque reference to one displayed row, scoped to the
// current page.
type RowHandle interface {
	Identifier() (string, error)
	Summary() (*models.RowSummary, error)
}

// DetailHandle is an opaque reference to an open detail view.
type DetailHandle interface{}

// DetailAcquirer opens, reads, and closes a row's detail view.
type DetailAcquirer interface {
	Open(ctx context.Context, row RowHandle) (DetailHandle, error)

	// Read extracts the detail fields. Field extraction is fault tolerant:
	// missing elements degrade to sentinel values, never an error.
	Read(ctx context.Context, detail DetailHandle) *models.DetailRecord

	// Close dismisses the detail view and waits briefly for the row table
	// to become interactable again.
	Close(ctx context.Context, detail DetailHandle) error

	// Recover closes any detail view left open after a row-level fault,
	// best effort.
	Recover(ctx context.Context)
}
