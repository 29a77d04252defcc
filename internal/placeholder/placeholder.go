// Package placeholder protects non-transducible content (HTML tags, fenced
// code blocks, inline code spans, timing cues) by replacing it with
// numbered markers ([PH0], [PH1], ...) before a payload is fanned out.
// After selection, Restore substitutes the originals back. Backends are
// far less likely to mangle a short opaque marker than raw markup, and the
// consensus filter stops comparing candidates on content no backend should
// have touched in the first place.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// fenced code blocks: ```...``` (non-greedy, may span lines)
	reFencedCode = regexp.MustCompile("(?s)```.*?```")

	// inline code spans: `...`
	reInlineCode = regexp.MustCompile("`[^`]+`")

	// HTML/XML tags: opening, closing, and self-closing
	reHTMLTag = regexp.MustCompile(`<[^>]+>`)

	// timing cues as they appear in caption tracks: [00:12], [1:02:33],
	// [00:12.500]
	reTimingCue = regexp.MustCompile(`\[\d{1,2}:\d{2}(?::\d{2})?(?:\.\d{1,3})?\]`)

	// marker reference in transduced text
	reMarker = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protect replaces protected content with numbered markers [PH0], [PH1],
// ... in the order it appears in text. It returns the modified text and
// the captured originals so Restore can put them back.
func Protect(text string) (string, []string) {
	var originals []string
	counter := 0

	replace := func(match string) string {
		id := fmt.Sprintf("[PH%d]", counter)
		originals = append(originals, match)
		counter++
		return id
	}

	// Order matters: fenced blocks first (longest match), then inline
	// code, then tags and cues.
	text = reFencedCode.ReplaceAllStringFunc(text, replace)
	text = reInlineCode.ReplaceAllStringFunc(text, replace)
	text = reHTMLTag.ReplaceAllStringFunc(text, replace)
	text = reTimingCue.ReplaceAllStringFunc(text, replace)

	return text, originals
}

// Restore substitutes [PHn] markers in text back with the originals
// captured by Protect. Markers missing from the transduced text are
// silently dropped; unrecognised indices are left as-is.
func Restore(text string, originals []string) string {
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMarker.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(originals) {
			return match
		}
		return originals[idx]
	})
}
