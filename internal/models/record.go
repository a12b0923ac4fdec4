package models

import (
	"encoding/json"
	"strings"
)

// MissingField is the sentinel stored for a detail field whose element
// could not be found in the detail view.
const MissingField = "N/A"

// IdentifierColumn is the store column holding the stable dedup key.
const IdentifierColumn = "Bid ID"

// DocumentRef is one downloadable attachment advertised in a bid's detail view.
type DocumentRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RowSummary holds the columns visible in the bid grid for one row, in
// grid order.
type RowSummary struct {
	BidID          string
	ContractNumber string
	Title          string
	OpenDate       string
	Deadline       string
	Agency         string
	UNSPSC         string
}

// DetailRecord holds the fields read from a bid's detail view. Absent
// fields carry MissingField rather than an empty string.
type DetailRecord struct {
	ContactEmail     string
	AdDate           string
	ResponseDeadline string
	ImportantMessage string
	Documents        []DocumentRef
}

// EncodeDocuments renders the document list as a JSON array for storage,
// or MissingField when no documents were found.
func (d *DetailRecord) EncodeDocuments() string {
	if len(d.Documents) == 0 {
		return MissingField
	}
	data, err := json.Marshal(d.Documents)
	if err != nil {
		return MissingField
	}
	return string(data)
}

// MergedRecord is the unit of persistence: one grid row's summary joined
// with its detail fields and the category it was found under. Summary and
// detail field names are disjoint by construction.
type MergedRecord struct {
	Category string
	Summary  RowSummary
	Detail   DetailRecord
}

// Merge combines a row summary and detail record under a category.
func Merge(category string, summary *RowSummary, detail *DetailRecord) *MergedRecord {
	return &MergedRecord{
		Category: category,
		Summary:  *summary,
		Detail:   *detail,
	}
}

// Columns is the stable store schema, in column order.
func Columns() []string {
	return []string{
		"Category",
		IdentifierColumn,
		"Contract Number",
		"Title",
		"Open Date",
		"Deadline",
		"Agency",
		"UNSPSC",
		"Contact Email",
		"Solicitation Ad Date",
		"Deadline for Bid Responses",
		"Important Message",
		"Documents",
	}
}

// Values renders the record as one store row, aligned with Columns.
func (r *MergedRecord) Values() []string {
	return []string{
		r.Category,
		r.Summary.BidID,
		r.Summary.ContractNumber,
		r.Summary.Title,
		r.Summary.OpenDate,
		r.Summary.Deadline,
		r.Summary.Agency,
		r.Summary.UNSPSC,
		r.Detail.ContactEmail,
		r.Detail.AdDate,
		r.Detail.ResponseDeadline,
		r.Detail.ImportantMessage,
		r.Detail.EncodeDocuments(),
	}
}

// Identifier returns the record's dedup key.
func (r *MergedRecord) Identifier() string {
	return strings.TrimSpace(r.Summary.BidID)
}
