// Package history persists the append-only composite-score log the
// adaptive threshold engine reads from. Records are stored one JSON object
// per line so the file stays inspectable with standard tools; unknown
// fields are ignored on load, keeping old binaries compatible with newer
// files.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Record is one historical scoring outcome. Records are never mutated or
// deleted; ordering is insertion order.
type Record struct {
	Timestamp      time.Time `json:"timestamp"`
	CompositeScore float64   `json:"composite_score"`
	InputSize      int       `json:"input_size"`
	SourceTag      string    `json:"source_tag"`
}

// PersistenceError reports a failed write of a record. The record is still
// part of the in-memory log; callers log the error and carry on.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history: persist to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the process-wide score history. One mutex guards both the
// in-memory slice and the file; it is held only for the duration of a
// single snapshot or append, never across a request.
type Store struct {
	mu      sync.Mutex
	path    string
	records []Record
	log     zerolog.Logger
}

// Open loads the full history from path. A missing file is an empty
// history; individual undecodable lines are skipped with a warning so one
// corrupt record cannot poison the log.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("skipping undecodable history record")
			continue
		}
		s.records = append(s.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}

	log.Debug().Int("records", len(s.records)).Str("path", path).Msg("score history loaded")
	return s, nil
}

// Snapshot returns a copy of all records in insertion order.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Append adds rec to the log and persists it. The in-memory append always
// takes effect; a write failure is returned as a *PersistenceError for the
// caller to log (persistence is best effort and must not fail a request).
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	if err := s.persist(rec); err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) persist(rec Record) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}
