package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/bidgrid-scraper/internal/models"
)

// liveDB connects to the database named by TEST_DATABASE_URL and resets the
// tables. Tests are skipped when the variable is unset.
func liveDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.pool.Exec(ctx, `TRUNCATE bid_records, record_outbox`)
	require.NoError(t, err)

	return db
}

func mergedRecord(id string) *models.MergedRecord {
	return models.Merge("Open",
		&models.RowSummary{
			BidID:          id,
			ContractNumber: "GSS-" + id,
			Title:          "Road Maintenance",
			OpenDate:       "08/01/2026",
			Deadline:       "09/15/2026",
			Agency:         "DOT",
			UNSPSC:         "72141000",
		},
		&models.DetailRecord{
			ContactEmail:     "purchasing@example.gov",
			AdDate:           "08/01/2026",
			ResponseDeadline: "09/15/2026 2:00 PM",
			ImportantMessage: models.MissingField,
			Documents: []models.DocumentRef{
				{Name: "Specifications.pdf", URL: "/Bids/Download/101"},
			},
		})
}

func TestRecordStoreAppendAndReadBack(t *testing.T) {
	db := liveDB(t)
	ctx := context.Background()

	s := NewRecordStore(db, "stream:test_bid_records")

	require.NoError(t, s.Append(ctx, mergedRecord("2026-100")))
	require.NoError(t, s.Append(ctx, mergedRecord("2026-101")))

	seen, err := s.LoadSeenIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, seen.Len())
	assert.True(t, seen.Contains("2026-100"))
	assert.True(t, seen.Contains("2026-101"))
}

func TestAppendStagesOutboxEventInSameTransaction(t *testing.T) {
	db := liveDB(t)
	ctx := context.Background()

	s := NewRecordStore(db, "stream:test_bid_records")
	require.NoError(t, s.Append(ctx, mergedRecord("2026-200")))

	outbox := NewOutboxRepository(db)
	events, err := outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "2026-200", event.BidID)
	assert.Equal(t, EventRecordAppended, event.EventType)
	assert.Equal(t, "stream:test_bid_records", event.TargetStream)

	require.NoError(t, outbox.MarkPublished(ctx, event.ID))
	events, err = outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)

	published, err := outbox.CountByStatus(ctx, "published")
	require.NoError(t, err)
	assert.Equal(t, int64(1), published)
}

func TestMarkFailedParksEventAfterRetries(t *testing.T) {
	db := liveDB(t)
	ctx := context.Background()

	s := NewRecordStore(db, "stream:test_bid_records")
	require.NoError(t, s.Append(ctx, mergedRecord("2026-300")))

	outbox := NewOutboxRepository(db)
	events, err := outbox.GetPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	for i := 0; i < maxRetries; i++ {
		require.NoError(t, outbox.MarkFailed(ctx, events[0].ID, assert.AnError))
	}

	pending, err := outbox.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	dead, err := outbox.CountByStatus(ctx, "dead")
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}
