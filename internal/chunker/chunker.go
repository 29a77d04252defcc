// Package chunker splits oversized payloads into segments small enough to
// fan out individually, preserving paragraph and sentence integrity. It
// also aggregates per-segment composite scores and extracts a
// sliding-window context snippet for continuity across segment boundaries.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultContextWords is the default number of words extracted by
	// ExtractContext for use as a sliding-window context.
	DefaultContextWords = 25
)

// Split cuts text into segments each no longer than maxRunes code points.
// Boundaries are attempted in order of preference:
//  1. Paragraph boundaries (\n\n or \r\n\r\n)
//  2. Sentence-ending punctuation (. ! ?)
//  3. Whitespace (word boundary)
//  4. Hard cut at maxRunes if no suitable boundary is found
//
// If text fits within maxRunes, a single-element slice is returned.
// maxRunes <= 0 means unlimited.
func Split(text string, maxRunes int) []string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var segments []string
	remaining := text

	for utf8.RuneCountInString(remaining) > maxRunes {
		cut := findCut(remaining, maxRunes)
		seg := strings.TrimSpace(remaining[:cut])
		if seg != "" {
			segments = append(segments, seg)
		}
		remaining = strings.TrimSpace(remaining[cut:])
	}

	if strings.TrimSpace(remaining) != "" {
		segments = append(segments, strings.TrimSpace(remaining))
	}

	return segments
}

// findCut returns the byte index at which to cut text, aiming for at most
// maxRunes runes, searching backwards from maxRunes for the best boundary.
func findCut(text string, maxRunes int) int {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return len(text)
	}
	candidate := runes[:maxRunes]
	prefix := string(candidate)

	// 1. Paragraph boundary.
	if idx := strings.LastIndex(prefix, "\n\n"); idx > 0 {
		return idx + 2
	}
	if idx := strings.LastIndex(prefix, "\r\n\r\n"); idx > 0 {
		return idx + 4
	}

	// 2. Sentence-ending punctuation followed by a space.
	for i := len(candidate) - 1; i > 0; i-- {
		r := candidate[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(candidate) && unicode.IsSpace(candidate[i+1]) {
			return len(string(candidate[:i+1]))
		}
	}

	// 3. Whitespace word boundary.
	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return len(string(candidate[:i]))
		}
	}

	// 4. Hard cut.
	return len(prefix)
}

// WeightedComposite aggregates per-segment composite scores into one
// payload-level composite, weighting each segment by its rune length so a
// garbled long segment drags the total down more than a garbled short one.
// segments and scores must be the same length; an empty input returns 0.
func WeightedComposite(segments []string, scores []float64) float64 {
	if len(segments) == 0 || len(segments) != len(scores) {
		return 0
	}

	var total, weighted float64
	for i, seg := range segments {
		w := float64(utf8.RuneCountInString(seg))
		total += w
		weighted += w * scores[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// ExtractContext returns the last wordCount words of text, joined by a
// single space, for use as a continuity snippet passed along with the next
// segment. If text has fewer words than wordCount, the whole text is
// returned. wordCount <= 0 uses DefaultContextWords.
func ExtractContext(text string, wordCount int) string {
	if wordCount <= 0 {
		wordCount = DefaultContextWords
	}
	words := strings.Fields(text)
	if len(words) <= wordCount {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[len(words)-wordCount:], " ")
}
