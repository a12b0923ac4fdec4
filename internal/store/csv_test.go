package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/bidgrid-scraper/internal/models"
)

func testRecord(id string) *models.MergedRecord {
	return models.Merge("Open",
		&models.RowSummary{
			BidID:          id,
			ContractNumber: "GSS-" + id,
			Title:          "Road Maintenance, Kent County",
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
		})
}

func TestLoadSeenIdentifiersMissingFile(t *testing.T) {
	s := NewCSVStore(filepath.Join(t.TempDir(), "absent.csv"))

	seen, err := s.LoadSeenIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, seen.Len())
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bids.csv")
	s := NewCSVStore(path)

	require.NoError(t, s.Append(context.Background(), testRecord("2026-100")))
	require.NoError(t, s.Append(context.Background(), testRecord("2026-101")))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(models.Columns(), ","), lines[0])
	assert.Contains(t, lines[1], "2026-100")
	assert.Contains(t, lines[2], "2026-101")
}

func TestAppendThenReloadAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bids.csv")

	s := NewCSVStore(path)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, testRecord(fmt.Sprintf("2026-%03d", i))))
	}
	require.NoError(t, s.Close())

	seen, err := NewCSVStore(path).LoadSeenIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, seen.Len())
	for i := 0; i < 5; i++ {
		assert.True(t, seen.Contains(fmt.Sprintf("2026-%03d", i)))
	}
}

func TestReopenedStoreAppendsWithoutSecondHeader(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bids.csv")

	s := NewCSVStore(path)
	require.NoError(t, s.Append(ctx, testRecord("2026-200")))
	require.NoError(t, s.Close())

	s2 := NewCSVStore(path)
	require.NoError(t, s2.Append(ctx, testRecord("2026-201")))
	require.NoError(t, s2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), models.IdentifierColumn))

	seen, err := NewCSVStore(path).LoadSeenIdentifiers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, seen.Len())
}

func TestLoadSeenIdentifiersDegradedModes(t *testing.T) {
	ctx := context.Background()

	t.Run("missing identifier column", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "foreign.csv")
		require.NoError(t, os.WriteFile(path, []byte("Name,Value\na,1\nb,2\n"), 0o644))

		seen, err := NewCSVStore(path).LoadSeenIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, seen.Len())
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.csv")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		seen, err := NewCSVStore(path).LoadSeenIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, seen.Len())
	})

	t.Run("malformed row", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.csv")
		content := strings.Join(models.Columns(), ",") + "\n\"unterminated\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		seen, err := NewCSVStore(path).LoadSeenIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, seen.Len())
	})

	t.Run("blank identifier cells ignored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blanks.csv")
		rows := []string{
			strings.Join(models.Columns(), ","),
			"Open,2026-300,c,t,o,d,a,u,e,ad,rd,m,docs",
			"Open,,c,t,o,d,a,u,e,ad,rd,m,docs",
		}
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))

		seen, err := NewCSVStore(path).LoadSeenIdentifiers(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, seen.Len())
		assert.True(t, seen.Contains("2026-300"))
	})
}

func TestAppendToUnwritablePathMapsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	s := NewCSVStore(filepath.Join(dir, "bids.csv"))
	err := s.Append(context.Background(), testRecord("2026-400"))
	assert.ErrorIs(t, err, ErrAccessDenied)
}
