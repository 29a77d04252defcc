package chunker_test

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/chunker"
)

func TestSplit_ShortText(t *testing.T) {
	text := "Hello, world!"
	segments := chunker.Split(text, 100)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0] != text {
		t.Errorf("expected %q, got %q", text, segments[0])
	}
}

func TestSplit_Unlimited(t *testing.T) {
	text := strings.Repeat("word ", 500)
	segments := chunker.Split(text, 0)
	if len(segments) != 1 {
		t.Errorf("expected 1 segment when maxRunes=0, got %d", len(segments))
	}
}

func TestSplit_ParagraphBoundary(t *testing.T) {
	para1 := "First paragraph text here."
	para2 := "Second paragraph text here."
	text := para1 + "\n\n" + para2

	segments := chunker.Split(text, 40)
	if len(segments) < 2 {
		t.Fatalf("expected at least 2 segments, got %d: %v", len(segments), segments)
	}
	if !strings.Contains(segments[0], "First") {
		t.Errorf("first segment should contain 'First': %q", segments[0])
	}
	if !strings.Contains(segments[len(segments)-1], "Second") {
		t.Errorf("last segment should contain 'Second': %q", segments[len(segments)-1])
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "First sentence ends here. Second sentence follows. Third sentence."
	segments := chunker.Split(text, 40)
	if len(segments) < 2 {
		t.Fatalf("expected at least 2 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			t.Errorf("segment %d is empty", i)
		}
		if utf8.RuneCountInString(seg) > 40 {
			t.Errorf("segment %d exceeds limit: %d runes", i, utf8.RuneCountInString(seg))
		}
	}
}

func TestSplit_WordBoundary(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 10)
	segments := chunker.Split(text, 30)
	for i, seg := range segments {
		if utf8.RuneCountInString(seg) > 30 {
			t.Errorf("segment %d exceeds limit: %q", i, seg)
		}
		if strings.Contains(seg, "  ") {
			t.Errorf("segment %d has doubled spaces: %q", i, seg)
		}
	}
}

func TestSplit_HardCut(t *testing.T) {
	// No whitespace anywhere forces a hard cut.
	text := strings.Repeat("x", 100)
	segments := chunker.Split(text, 30)
	if len(segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if utf8.RuneCountInString(seg) > 30 {
			t.Errorf("segment %d exceeds limit", i)
		}
	}
}

func TestSplit_Multibyte(t *testing.T) {
	text := strings.Repeat("дім ", 30)
	segments := chunker.Split(text, 20)
	joined := strings.Join(segments, " ")
	if strings.Count(joined, "дім") != 30 {
		t.Errorf("words lost during split: %q", joined)
	}
	for i, seg := range segments {
		if utf8.RuneCountInString(seg) > 20 {
			t.Errorf("segment %d exceeds rune limit", i)
		}
	}
}

func TestWeightedComposite(t *testing.T) {
	segments := []string{strings.Repeat("a", 300), strings.Repeat("b", 100)}
	scores := []float64{80, 40}

	// (300*80 + 100*40) / 400 = 70
	got := chunker.WeightedComposite(segments, scores)
	if math.Abs(got-70) > 1e-9 {
		t.Errorf("weighted composite = %v, want 70", got)
	}
}

func TestWeightedComposite_Degenerate(t *testing.T) {
	if got := chunker.WeightedComposite(nil, nil); got != 0 {
		t.Errorf("empty input = %v, want 0", got)
	}
	if got := chunker.WeightedComposite([]string{"a"}, []float64{1, 2}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
}

func TestExtractContext(t *testing.T) {
	text := "one two three four five six"
	got := chunker.ExtractContext(text, 3)
	if got != "four five six" {
		t.Errorf("context = %q, want 'four five six'", got)
	}
}

func TestExtractContext_ShortText(t *testing.T) {
	text := "just two"
	if got := chunker.ExtractContext(text, 10); got != text {
		t.Errorf("context = %q, want whole text", got)
	}
}

func TestExtractContext_DefaultCount(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")
	got := chunker.ExtractContext(text, 0)
	if n := len(strings.Fields(got)); n != chunker.DefaultContextWords {
		t.Errorf("default context words = %d, want %d", n, chunker.DefaultContextWords)
	}
}
