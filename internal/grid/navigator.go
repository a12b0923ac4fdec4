package grid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/maltedev/bidgrid-scraper/internal/models"
)

// PageNavigator drives category selection and pagination on a playwright
// page. All waits are bounded by the configured timeout.
type PageNavigator struct {
	page      playwright.Page
	selectors Selectors
	timeout   time.Duration
	settle    time.Duration
	logger    *slog.Logger
}

type NavigatorOptions struct {
	Timeout time.Duration
	// Settle is the pause after activating a control, giving the grid time
	// to start its refresh before the presence wait.
	Settle time.Duration
}

func NewPageNavigator(page playwright.Page, selectors Selectors, opts NavigatorOptions) *PageNavigator {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Settle == 0 {
		opts.Settle = 2 * time.Second
	}
	return &PageNavigator{
		page:      page,
		selectors: selectors,
		timeout:   opts.Timeout,
		settle:    opts.Settle,
		logger:    slog.Default().With("component", "navigator"),
	}
}

func (n *PageNavigator) SelectCategory(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	selector, ok := n.selectors.CategoryTabs[name]
	if !ok {
		return fmt.Errorf("%w: no tab control configured for %q", ErrCategoryNotFound, name)
	}

	tab := n.page.Locator(selector)
	if err := tab.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(n.timeoutMillis()),
	}); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCategoryNotFound, name, err)
	}
	if err := tab.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(n.timeoutMillis()),
	}); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCategoryNotFound, name, err)
	}

	time.Sleep(n.settle)

	if err := n.waitForTable(); err != nil {
		return fmt.Errorf("%w: table did not reflect category %q: %v", ErrTableNotReady, name, err)
	}

	n.logger.Info("selected category", "category", name)
	return nil
}

func (n *PageNavigator) CurrentPageRows(ctx context.Context) ([]RowHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := n.waitForTable(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTableNotReady, err)
	}

	rows := n.page.Locator(n.selectors.TableRows)
	count, err := rows.Count()
	if err != nil {
		return nil, fmt.Errorf("%w: counting rows: %v", ErrTableNotReady, err)
	}

	handles := make([]RowHandle, 0, count)
	for i := 0; i < count; i++ {
		handles = append(handles, &pageRow{row: rows.Nth(i), selectors: n.selectors})
	}
	return handles, nil
}

func (n *PageNavigator) AdvancePage(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	next := n.page.Locator(n.selectors.NextButton).First()
	count, err := next.Count()
	if err != nil || count == 0 {
		n.logger.Debug("no pagination control present")
		return false, nil
	}

	class, err := next.GetAttribute("class")
	if err != nil {
		n.logger.Debug("pagination control state unreadable, treating as last page", "error", err)
		return false, nil
	}
	for _, disabled := range n.selectors.DisabledClasses {
		if strings.Contains(class, disabled) {
			return false, nil
		}
	}

	if err := next.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(n.timeoutMillis()),
	}); err != nil {
		return false, fmt.Errorf("failed to activate next page control: %w", err)
	}

	time.Sleep(n.settle)

	if err := n.waitForTable(); err != nil {
		return false, fmt.Errorf("%w: after pagination: %v", ErrTableNotReady, err)
	}
	return true, nil
}

func (n *PageNavigator) waitForTable() error {
	_, err := n.page.WaitForSelector(n.selectors.TableRows, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(n.timeoutMillis()),
	})
	return err
}

func (n *PageNavigator) timeoutMillis() float64 {
	return float64(n.timeout.Milliseconds())
}

// pageRow reads one displayed row through its cell locators. It is valid
// only while the page it was snapshotted from is still displayed.
type pageRow struct {
	row       playwright.Locator
	selectors Selectors
}

func (r *pageRow) cells() (playwright.Locator, int, error) {
	cells := r.row.Locator(r.selectors.Cells)
	count, err := cells.Count()
	if err != nil {
		return nil, 0, fmt.Errorf("counting cells: %w", err)
	}
	return cells, count, nil
}

func (r *pageRow) Identifier() (string, error) {
	cells, count, err := r.cells()
	if err != nil {
		return "", err
	}
	if count < r.selectors.MinColumns {
		return "", fmt.Errorf("%w: %d cells, expected at least %d", ErrMalformedRow, count, r.selectors.MinColumns)
	}

	id, err := cells.Nth(r.selectors.IdentifierCell).GetAttribute("title")
	if err != nil {
		return "", fmt.Errorf("reading identifier: %w", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: blank identifier", ErrMalformedRow)
	}
	return id, nil
}

func (r *pageRow) Summary() (*models.RowSummary, error) {
	id, err := r.Identifier()
	if err != nil {
		return nil, err
	}

	cells, _, err := r.cells()
	if err != nil {
		return nil, err
	}

	text := func(i int) string {
		v, err := cells.Nth(i).TextContent()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	return &models.RowSummary{
		BidID:          id,
		ContractNumber: text(1),
		Title:          text(2),
		OpenDate:       text(3),
		Deadline:       text(4),
		Agency:         text(5),
		UNSPSC:         text(6),
	}, nil
}

// titleLink exposes the detail-opening link for the acquirer.
func (r *pageRow) titleLink() playwright.Locator {
	return r.row.Locator(r.selectors.Cells).Nth(r.selectors.TitleCell).Locator(r.selectors.TitleLink).First()
}
