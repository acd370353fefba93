// Package store persists the tracked match collection. Two adapters are
// provided: a JSON file for single-node deployments and Postgres for
// shared or managed storage. Both round-trip every Match field losslessly,
// with enum values as strings and timestamps in RFC 3339.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goalwatch/goalwatch/internal/model"
)

const matchesFileName = "matches.json"

// FileStore persists matches as one JSON document on disk.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates the storage directory if needed and returns a
// store writing to <dir>/matches.json.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, matchesFileName), logger: logger}, nil
}

// Load reads the persisted collection. A missing file yields an empty map.
func (s *FileStore) Load(_ context.Context) (map[string]model.Match, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]model.Match{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var matches map[string]model.Match
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	// Defend against vocabulary drift in persisted data.
	for id, m := range matches {
		m.Status = model.ParseStatus(string(m.Status))
		matches[id] = m
	}
	s.logger.Debug("Loaded matches from file", "path", s.path, "count", len(matches))
	return matches, nil
}

// Save writes the full collection atomically (temp file + rename).
func (s *FileStore) Save(_ context.Context, matches map[string]model.Match) error {
	data, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return fmt.Errorf("encode matches: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	s.logger.Debug("Saved matches to file", "path", s.path, "count", len(matches))
	return nil
}
