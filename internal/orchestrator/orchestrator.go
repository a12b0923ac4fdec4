// Package orchestrator drives the extraction run: category iteration,
// pagination, per-row detail acquisition, dedup against the record store,
// and row-level failure isolation.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maltedev/bidgrid-scraper/internal/grid"
	"github.com/maltedev/bidgrid-scraper/internal/models"
	"github.com/maltedev/bidgrid-scraper/internal/ratelimit"
	"github.com/maltedev/bidgrid-scraper/internal/store"
)

// RunStats summarizes one extraction run.
type RunStats struct {
	Appended      int `json:"appended"`
	Skipped       int `json:"skipped"`
	Malformed     int `json:"malformed"`
	RowFaults     int `json:"row_faults"`
	StoreFailures int `json:"store_failures"`
}

// Orchestrator owns the single browser session for the duration of a run.
// It never parallelizes row, page, or category work: the remote grid is
// stateful and cannot service concurrent detail views.
type Orchestrator struct {
	nav        grid.Navigator
	acquirer   grid.DetailAcquirer
	records    store.RecordStore
	limiter    ratelimit.Limiter
	categories []string
	logger     *slog.Logger
}

type Options struct {
	Limiter ratelimit.Limiter
	Logger  *slog.Logger
}

func New(nav grid.Navigator, acquirer grid.DetailAcquirer, records store.RecordStore, categories []string, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		nav:        nav,
		acquirer:   acquirer,
		records:    records,
		limiter:    opts.Limiter,
		categories: categories,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Run walks every configured category to completion. It returns an error
// only when the context is cancelled; per-category, per-page, and per-row
// failures are logged and isolated.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	seen, err := o.records.LoadSeenIdentifiers(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{}
	for _, category := range o.categories {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		o.logger.Info("processing category", "category", category)
		if err := o.nav.SelectCategory(ctx, category); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			o.logger.Error("could not select category", "category", category, "error", err)
			continue
		}

		if err := o.scrapeCategory(ctx, category, seen, stats); err != nil {
			return stats, err
		}
	}

	o.logger.Info("run complete",
		"appended", stats.Appended,
		"skipped", stats.Skipped,
		"malformed", stats.Malformed,
		"row_faults", stats.RowFaults,
		"store_failures", stats.StoreFailures)
	return stats, nil
}

// scrapeCategory walks the category's pages in pagination order. Its only
// error return is context cancellation; page-level failures end the
// category and let the run move on.
func (o *Orchestrator) scrapeCategory(ctx context.Context, category string, seen models.SeenSet, stats *RunStats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := o.nav.CurrentPageRows(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			o.logger.Error("could not read page rows", "category", category, "error", err)
			return nil
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.processRow(ctx, category, row, seen, stats)
		}

		next, err := o.nav.AdvancePage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			o.logger.Error("pagination failed", "category", category, "error", err)
			return nil
		}
		if !next {
			o.logger.Info("no more pages in category", "category", category)
			return nil
		}
	}
}

// processRow handles one row end to end. It never propagates a failure:
// anything that goes wrong, including a panic, is recorded as a row fault
// and the detail view is recovered so the next row starts clean.
func (o *Orchestrator) processRow(ctx context.Context, category string, row grid.RowHandle, seen models.SeenSet, stats *RunStats) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("row processing fault", "category", category, "panic", r)
			stats.RowFaults++
			o.recordError()
			o.acquirer.Recover(ctx)
		}
	}()

	id, err := row.Identifier()
	if err != nil {
		if errors.Is(err, grid.ErrMalformedRow) {
			stats.Malformed++
			o.logger.Debug("skipping malformed row", "category", category)
			return
		}
		o.rowFault(ctx, category, "reading row identifier", err, stats)
		return
	}

	if seen.Contains(id) {
		o.logger.Info("skipping already captured bid", "bid_id", id)
		stats.Skipped++
		return
	}

	summary, err := row.Summary()
	if err != nil {
		if errors.Is(err, grid.ErrMalformedRow) {
			stats.Malformed++
			return
		}
		o.rowFault(ctx, category, "reading row summary", err, stats)
		return
	}

	o.waitTurn(ctx)

	detail, err := o.acquirer.Open(ctx, row)
	if err != nil {
		// The row is neither recorded nor marked seen, so a future run
		// can retry it.
		o.rowFault(ctx, category, "opening detail view", err, stats)
		return
	}

	detailRecord := o.acquirer.Read(ctx, detail)

	if err := o.acquirer.Close(ctx, detail); err != nil {
		o.logger.Warn("failed to close detail view", "bid_id", id, "error", err)
	}

	merged := models.Merge(category, summary, detailRecord)
	if err := o.records.Append(ctx, merged); err != nil {
		o.logger.Error("record lost, eligible for retry on next run", "bid_id", id, "error", err)
		stats.StoreFailures++
		o.recordError()
		return
	}

	seen.Add(id)
	stats.Appended++
	o.recordSuccess()
	o.logger.Info("captured bid", "bid_id", id, "category", category)
}

func (o *Orchestrator) rowFault(ctx context.Context, category, op string, err error, stats *RunStats) {
	o.logger.Error("row failed", "category", category, "op", op, "error", err)
	stats.RowFaults++
	o.recordError()
	o.acquirer.Recover(ctx)
}

func (o *Orchestrator) waitTurn(ctx context.Context) {
	if o.limiter == nil {
		return
	}
	if err := o.limiter.Wait(ctx); err != nil {
		o.logger.Debug("rate limiter interrupted", "error", err)
	}
}

func (o *Orchestrator) recordSuccess() {
	if o.limiter != nil {
		o.limiter.RecordSuccess()
	}
}

func (o *Orchestrator) recordError() {
	if o.limiter != nil {
		o.limiter.RecordError()
	}
}
