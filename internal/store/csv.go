package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/maltedev/bidgrid-scraper/internal/models"
)

// CSVStore appends records to a single CSV file. The file is opened in
// append mode and every record is flushed and synced individually, so a
// crash between appends leaves the file valid through the last successful
// write.
type CSVStore struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{
		path:   path,
		logger: slog.Default().With("component", "csv_store"),
	}
}

func (s *CSVStore) LoadSeenIdentifiers(ctx context.Context) (models.SeenSet, error) {
	seen := models.NewSeenSet()

	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("no existing store found, starting fresh", "path", s.path)
		return seen, nil
	}
	if err != nil {
		s.logger.Warn("could not open existing store, starting with empty set", "path", s.path, "error", err)
		return seen, nil
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		s.logger.Warn("store is empty or malformed, starting with empty set", "path", s.path, "error", err)
		return seen, nil
	}

	idCol := -1
	for i, name := range header {
		if name == models.IdentifierColumn {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		s.logger.Warn("identifier column not found in store, starting with empty set",
			"path", s.path, "column", models.IdentifierColumn)
		return seen, nil
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("store is malformed, starting with empty set", "path", s.path, "error", err)
			return models.NewSeenSet(), nil
		}
		if idCol < len(row) && row[idCol] != "" {
			seen.Add(row[idCol])
		}
	}

	s.logger.Info("loaded previously captured identifiers", "count", seen.Len(), "path", s.path)
	return seen, nil
}

func (s *CSVStore) Append(ctx context.Context, rec *models.MergedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpen(); err != nil {
		return err
	}

	if err := s.writer.Write(rec.Values()); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return s.mapError(err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrWriteFailure, err)
	}

	return nil
}

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	err := s.file.Close()
	s.file = nil
	s.writer = nil
	return err
}

// ensureOpen opens the file in append mode on first use and writes the
// header when the file is new or empty.
func (s *CSVStore) ensureOpen() error {
	if s.file != nil {
		return nil
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return s.mapError(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: stat: %v", ErrWriteFailure, err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(models.Columns()); err != nil {
			file.Close()
			return fmt.Errorf("%w: header: %v", ErrWriteFailure, err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			file.Close()
			return fmt.Errorf("%w: header: %v", ErrWriteFailure, err)
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return fmt.Errorf("%w: header sync: %v", ErrWriteFailure, err)
		}
		s.logger.Info("created new store with header", "path", s.path)
	}

	s.file = file
	s.writer = writer
	return nil
}

func (s *CSVStore) mapError(err error) error {
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrWriteFailure, err)
}
