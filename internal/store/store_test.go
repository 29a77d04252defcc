package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/dispatch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRequest(id string) internal.TransductionRequest {
	return internal.TransductionRequest{
		ID:         id,
		Payload:    "Hello world",
		SourceLang: "en",
		TargetLang: "uk",
		SourceTag:  "test",
		Timestamp:  time.Now(),
	}
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_SaveRequest(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveRequest(context.Background(), testRequest("req-1")); err != nil {
		t.Errorf("SaveRequest failed: %v", err)
	}
}

func TestStore_SaveNodeResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRequest(ctx, testRequest("req-1")); err != nil {
		t.Fatalf("SaveRequest failed: %v", err)
	}

	cand := dispatch.Candidate{
		NodeID:           2,
		Text:             "Привіт, світе",
		NativeConfidence: 0.9,
		Latency:          120 * time.Millisecond,
	}
	if err := s.SaveNodeResult(ctx, "req-1", cand, 0.87, false); err != nil {
		t.Errorf("SaveNodeResult failed: %v", err)
	}
}

func TestStore_SaveAndListSelections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRequest(ctx, testRequest("req-1")); err != nil {
		t.Fatalf("SaveRequest failed: %v", err)
	}

	sel := Selection{
		RequestID:      "req-1",
		FinalText:      "Привіт, світе",
		CompositeScore: 84.5,
		AcceptCutoff:   70,
		RepairCutoff:   50,
		Repaired:       true,
		RepairAttempts: 1,
	}
	if err := s.SaveSelection(ctx, sel); err != nil {
		t.Fatalf("SaveSelection failed: %v", err)
	}

	got, err := s.ListSelections(ctx, 10)
	if err != nil {
		t.Fatalf("ListSelections failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 selection, got %d", len(got))
	}
	if got[0].FinalText != sel.FinalText {
		t.Errorf("final text = %q, want %q", got[0].FinalText, sel.FinalText)
	}
	if got[0].CompositeScore != sel.CompositeScore {
		t.Errorf("composite = %v, want %v", got[0].CompositeScore, sel.CompositeScore)
	}
	if !got[0].Repaired || got[0].RepairAttempts != 1 {
		t.Errorf("repair fields not round-tripped: %+v", got[0])
	}
}

func TestStore_MemoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveToMemory(ctx, "Hello world", "en", "uk", "Привіт, світе", 85)
	if err != nil {
		t.Fatalf("SaveToMemory failed: %v", err)
	}

	text, found, err := s.GetCachedResult(ctx, "Hello world", "en", "uk")
	if err != nil {
		t.Fatalf("GetCachedResult failed: %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if text != "Привіт, світе" {
		t.Errorf("cached text = %q", text)
	}
}

func TestStore_MemoryMiss(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.GetCachedResult(context.Background(), "never seen", "en", "uk")
	if err != nil {
		t.Fatalf("GetCachedResult failed: %v", err)
	}
	if found {
		t.Error("expected cache miss")
	}
}

func TestStore_MemoryNormalizesKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToMemory(ctx, "  Hello world  ", "en", "uk", "Привіт", 80); err != nil {
		t.Fatalf("SaveToMemory failed: %v", err)
	}

	// Lookup with different surrounding whitespace must still hit.
	_, found, err := s.GetCachedResult(ctx, "Hello world", "en", "uk")
	if err != nil {
		t.Fatalf("GetCachedResult failed: %v", err)
	}
	if !found {
		t.Error("expected hit after whitespace normalization")
	}
}

func TestStore_InvalidatedEntryNotReturned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToMemory(ctx, "Hello world", "en", "uk", "Привіт", 80); err != nil {
		t.Fatalf("SaveToMemory failed: %v", err)
	}

	entries, err := s.ListMemory(ctx)
	if err != nil {
		t.Fatalf("ListMemory failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if err := s.InvalidateMemory(ctx, entries[0].ID); err != nil {
		t.Fatalf("InvalidateMemory failed: %v", err)
	}

	_, found, err := s.GetCachedResult(ctx, "Hello world", "en", "uk")
	if err != nil {
		t.Fatalf("GetCachedResult failed: %v", err)
	}
	if found {
		t.Error("invalidated entry must not be returned")
	}
}

func TestStore_FuzzyGetCachedResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToMemory(ctx, "The weather is nice today", "en", "uk", "Сьогодні гарна погода", 85); err != nil {
		t.Fatalf("SaveToMemory failed: %v", err)
	}

	// One typo away from the stored payload.
	text, found, err := s.FuzzyGetCachedResult(ctx, "The weather is nice todai", "en", "uk", 0.9)
	if err != nil {
		t.Fatalf("FuzzyGetCachedResult failed: %v", err)
	}
	if !found {
		t.Fatal("expected fuzzy hit")
	}
	if text != "Сьогодні гарна погода" {
		t.Errorf("fuzzy text = %q", text)
	}

	// A completely different payload stays a miss.
	_, found, err = s.FuzzyGetCachedResult(ctx, "Completely unrelated sentence", "en", "uk", 0.9)
	if err != nil {
		t.Fatalf("FuzzyGetCachedResult failed: %v", err)
	}
	if found {
		t.Error("expected fuzzy miss for unrelated payload")
	}
}

func TestStore_FuzzyDisabledByThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToMemory(ctx, "Hello world", "en", "uk", "Привіт", 80); err != nil {
		t.Fatalf("SaveToMemory failed: %v", err)
	}

	_, found, err := s.FuzzyGetCachedResult(ctx, "Hello world", "en", "uk", 0)
	if err != nil {
		t.Fatalf("FuzzyGetCachedResult failed: %v", err)
	}
	if found {
		t.Error("threshold <= 0 must disable fuzzy lookup")
	}
}

func TestStore_ClearMemoryAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveToMemory(ctx, "one", "en", "uk", "один", 70); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveToMemory(ctx, "two", "en", "uk", "два", 75); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 2 || stats.ActiveEntries != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	n, err := s.ClearMemory(ctx)
	if err != nil {
		t.Fatalf("ClearMemory failed: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d entries, want 2", n)
	}

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Errorf("expected empty memory, got %+v", stats)
	}
}
