package grid

// Selectors addresses the concrete grid's elements. The defaults target the
// Delaware procurement grid; other deployments override them at wiring time.
type Selectors struct {
	// CategoryTabs maps a category name to its tab control selector.
	CategoryTabs map[string]string

	// TableRows matches every row of the currently displayed page.
	TableRows string

	// Cells matches the cells within one row, in schema order.
	Cells string

	// MinColumns is the smallest cell count a well-formed row can have.
	MinColumns int

	// IdentifierCell is the cell whose title attribute carries the bid ID.
	IdentifierCell int

	// TitleCell is the cell containing the link that opens the detail view.
	TitleCell int

	// TitleLink matches the detail-opening link within the title cell.
	TitleLink string

	// NextButton matches the pagination "next" control.
	NextButton string

	// DisabledClasses mark the next control as inactive.
	DisabledClasses []string

	// Detail matches the detail view's content container.
	Detail string
}

func DefaultSelectors() Selectors {
	return Selectors{
		CategoryTabs: map[string]string{
			"Open":            "#btnOpen",
			"Recently Closed": "#btnClosed",
			"Not Awarded":     "#btnNotAwarded",
		},
		TableRows:       "#jqGridBids tbody tr",
		Cells:           "td",
		MinColumns:      7,
		IdentifierCell:  0,
		TitleCell:       2,
		TitleLink:       "a",
		NextButton:      "#next_jqg1",
		DisabledClasses: []string{"disabled", "ui-jqgrid-disablePointerEvents"},
		Detail:          "#dynamicDialogInnerHtml",
	}
}
