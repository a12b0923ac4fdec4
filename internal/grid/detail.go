package grid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/maltedev/bidgrid-scraper/internal/models"
	"github.com/maltedev/bidgrid-scraper/internal/parser"
)

// DialogAcquirer opens a row's detail dialog, hands its HTML to the detail
// parser, and dismisses it with an Escape gesture.
type DialogAcquirer struct {
	page      playwright.Page
	selectors Selectors
	parser    *parser.DetailParser
	timeout   time.Duration
	settle    time.Duration
	logger    *slog.Logger
}

type AcquirerOptions struct {
	Timeout time.Duration
	Settle  time.Duration
}

func NewDialogAcquirer(page playwright.Page, selectors Selectors, p *parser.DetailParser, opts AcquirerOptions) *DialogAcquirer {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Settle == 0 {
		opts.Settle = time.Second
	}
	return &DialogAcquirer{
		page:      page,
		selectors: selectors,
		parser:    p,
		timeout:   opts.Timeout,
		settle:    opts.Settle,
		logger:    slog.Default().With("component", "detail_acquirer"),
	}
}

type dialogHandle struct {
	dialog playwright.Locator
}

func (a *DialogAcquirer) Open(ctx context.Context, row RowHandle) (DetailHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, ok := row.(*pageRow)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected row handle %T", ErrDetailUnavailable, row)
	}

	if err := r.titleLink().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(a.timeoutMillis()),
	}); err != nil {
		return nil, fmt.Errorf("%w: activating detail link: %v", ErrDetailUnavailable, err)
	}

	if _, err := a.page.WaitForSelector(a.selectors.Detail, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(a.timeoutMillis()),
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailUnavailable, err)
	}

	return &dialogHandle{dialog: a.page.Locator(a.selectors.Detail)}, nil
}

func (a *DialogAcquirer) Read(ctx context.Context, detail DetailHandle) *models.DetailRecord {
	h, ok := detail.(*dialogHandle)
	if !ok {
		a.logger.Warn("unexpected detail handle", "type", fmt.Sprintf("%T", detail))
		return a.parser.Parse("")
	}

	html, err := h.dialog.InnerHTML(playwright.LocatorInnerHTMLOptions{
		Timeout: playwright.Float(a.timeoutMillis()),
	})
	if err != nil {
		a.logger.Warn("failed to read detail view content", "error", err)
		return a.parser.Parse("")
	}
	return a.parser.Parse(html)
}

func (a *DialogAcquirer) Close(ctx context.Context, detail DetailHandle) error {
	if err := a.page.Keyboard().Press("Escape"); err != nil {
		return fmt.Errorf("dismissing detail view: %w", err)
	}
	time.Sleep(a.settle)

	if _, err := a.page.WaitForSelector(a.selectors.TableRows, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(a.timeoutMillis()),
	}); err != nil {
		return fmt.Errorf("row table not interactable after close: %w", err)
	}
	return nil
}

// Recover dismisses a detail view left open by a failed row, so the next
// row does not start against a blocked table.
func (a *DialogAcquirer) Recover(ctx context.Context) {
	visible, err := a.page.Locator(a.selectors.Detail).IsVisible()
	if err != nil || !visible {
		return
	}
	if err := a.page.Keyboard().Press("Escape"); err != nil {
		a.logger.Warn("recovery close failed", "error", err)
		return
	}
	time.Sleep(a.settle)
}

func (a *DialogAcquirer) timeoutMillis() float64 {
	return float64(a.timeout.Milliseconds())
}
