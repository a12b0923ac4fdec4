package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// locatorIface lets stubLocator embed the interface without the field name
// shadowing playwright.Locator's own Locator method.
type locatorIface = playwright.Locator

// stubLocator fakes the pagination control; only the methods AdvancePage
// touches are implemented.
type stubLocator struct {
	locatorIface
	count    int
	class    string
	classErr error
	clicked  bool
}

func (l *stubLocator) First() playwright.Locator { return l }

func (l *stubLocator) Count() (int, error) { return l.count, nil }

func (l *stubLocator) GetAttribute(name string, options ...playwright.LocatorGetAttributeOptions) (string, error) {
	return l.class, l.classErr
}

func (l *stubLocator) Click(options ...playwright.LocatorClickOptions) error {
	l.clicked = true
	return nil
}

type stubPage struct {
	playwright.Page
	next playwright.Locator
}

func (p *stubPage) Locator(selector string, options ...playwright.PageLocatorOptions) playwright.Locator {
	return p.next
}

func (p *stubPage) WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	return nil, nil
}

func testNavigator(next *stubLocator) *PageNavigator {
	return NewPageNavigator(&stubPage{next: next}, DefaultSelectors(), NavigatorOptions{
		Timeout: time.Second,
		Settle:  time.Millisecond,
	})
}

func TestAdvancePageClicksEnabledControl(t *testing.T) {
	next := &stubLocator{count: 1, class: "pager-button"}

	ok, err := testNavigator(next).AdvancePage(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, next.clicked)
}

func TestAdvancePageStopsAtDisabledControl(t *testing.T) {
	for _, class := range []string{"disabled", "ui-jqgrid-disablePointerEvents"} {
		next := &stubLocator{count: 1, class: "pager-button " + class}

		ok, err := testNavigator(next).AdvancePage(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, next.clicked, "disabled control %q must not be clicked", class)
	}
}

func TestAdvancePageStopsWhenControlAbsent(t *testing.T) {
	next := &stubLocator{count: 0}

	ok, err := testNavigator(next).AdvancePage(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, next.clicked)
}

func TestAdvancePageTreatsUnreadableStateAsLastPage(t *testing.T) {
	next := &stubLocator{count: 1, classErr: errors.New("element detached")}

	ok, err := testNavigator(next).AdvancePage(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, next.clicked, "control with unreadable state must not be clicked")
}
