package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestOpen_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty history, got %d records", s.Len())
	}
}

func TestAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	recs := []Record{
		{Timestamp: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), CompositeScore: 81.5, InputSize: 120, SourceTag: "batch"},
		{Timestamp: time.Date(2026, 2, 1, 10, 5, 0, 0, time.UTC), CompositeScore: 64.0, InputSize: 300, SourceTag: "batch"},
		{Timestamp: time.Date(2026, 2, 1, 10, 9, 0, 0, time.UTC), CompositeScore: 92.25, InputSize: 45, SourceTag: "cli"},
	}
	for _, r := range recs {
		if err := s.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	reloaded, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reloaded.Snapshot()
	if len(got) != len(recs) {
		t.Fatalf("expected %d records after reload, got %d", len(recs), len(got))
	}
	for i, r := range recs {
		if got[i].CompositeScore != r.CompositeScore {
			t.Errorf("record %d: composite = %v, want %v", i, got[i].CompositeScore, r.CompositeScore)
		}
		if got[i].SourceTag != r.SourceTag {
			t.Errorf("record %d: source_tag = %q, want %q", i, got[i].SourceTag, r.SourceTag)
		}
		if !got[i].Timestamp.Equal(r.Timestamp) {
			t.Errorf("record %d: timestamp = %v, want %v", i, got[i].Timestamp, r.Timestamp)
		}
	}
}

func TestOpen_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")
	content := `{"timestamp":"2026-02-01T10:00:00Z","composite_score":70,"input_size":10,"source_tag":"a"}
not json at all
{"timestamp":"2026-02-01T10:01:00Z","composite_score":80,"input_size":20,"source_tag":"b"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
	snap := s.Snapshot()
	if snap[0].CompositeScore != 70 || snap[1].CompositeScore != 80 {
		t.Errorf("unexpected records: %+v", snap)
	}
}

func TestOpen_IgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")
	content := `{"timestamp":"2026-02-01T10:00:00Z","composite_score":55.5,"input_size":10,"source_tag":"a","future_field":true}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
	if got := s.Snapshot()[0].CompositeScore; got != 55.5 {
		t.Errorf("composite = %v, want 55.5", got)
	}
}

func TestAppend_PersistFailureKeepsRecord(t *testing.T) {
	dir := t.TempDir()
	// Pointing the store at a directory makes every file append fail.
	s := &Store{path: dir, log: testLogger()}

	err := s.Append(Record{CompositeScore: 42})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistenceError, got %T", err)
	}
	if s.Len() != 1 {
		t.Fatalf("in-memory record lost: len = %d", s.Len())
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.jsonl")
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append(Record{CompositeScore: 10}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	snap := s.Snapshot()
	snap[0].CompositeScore = 999

	if got := s.Snapshot()[0].CompositeScore; got != 10 {
		t.Errorf("mutating a snapshot leaked into the store: %v", got)
	}
}
