package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesAlignWithColumns(t *testing.T) {
	rec := Merge("Open",
		&RowSummary{
			BidID:          "2026-042",
			ContractNumber: "GSS-2026-042",
			Title:          "Road Maintenance",
			OpenDate:       "08/01/2026",
			Deadline:       "09/15/2026",
			Agency:         "DOT",
			UNSPSC:         "72141000",
		},
		&DetailRecord{
			ContactEmail:     "purchasing@example.gov",
			AdDate:           "08/01/2026",
			ResponseDeadline: "09/15/2026 2:00 PM",
			ImportantMessage: MissingField,
		})

	cols := Columns()
	vals := rec.Values()
	require.Equal(t, len(cols), len(vals))

	byColumn := make(map[string]string, len(cols))
	for i, c := range cols {
		byColumn[c] = vals[i]
	}

	assert.Equal(t, "Open", byColumn["Category"])
	assert.Equal(t, "2026-042", byColumn[IdentifierColumn])
	assert.Equal(t, "GSS-2026-042", byColumn["Contract Number"])
	assert.Equal(t, "purchasing@example.gov", byColumn["Contact Email"])
	assert.Equal(t, "09/15/2026 2:00 PM", byColumn["Deadline for Bid Responses"])
	assert.Equal(t, MissingField, byColumn["Important Message"])
	assert.Equal(t, MissingField, byColumn["Documents"])
}

func TestIdentifierTrimsWhitespace(t *testing.T) {
	rec := Merge("Open", &RowSummary{BidID: "  2026-042 "}, &DetailRecord{})
	assert.Equal(t, "2026-042", rec.Identifier())
}

func TestEncodeDocuments(t *testing.T) {
	d := &DetailRecord{}
	assert.Equal(t, MissingField, d.EncodeDocuments())

	d.Documents = []DocumentRef{
		{Name: "Specifications.pdf", URL: "/Bids/Download/101"},
		{Name: "Bid Form.docx", URL: "/Bids/Download/102"},
	}

	var decoded []DocumentRef
	require.NoError(t, json.Unmarshal([]byte(d.EncodeDocuments()), &decoded))
	assert.Equal(t, d.Documents, decoded)
}

func TestSeenSet(t *testing.T) {
	seen := NewSeenSet()
	assert.False(t, seen.Contains("2026-042"))

	seen.Add("2026-042")
	seen.Add("2026-042")
	assert.True(t, seen.Contains("2026-042"))
	assert.Equal(t, 1, seen.Len())
}
