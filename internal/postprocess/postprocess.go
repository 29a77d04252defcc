// Package postprocess strips common LLM artifacts from collaborator output.
//
// Both the Ollama transduction backend and the corrective-rewrite repairer
// return raw model text; Clean is applied before that text re-enters the
// pipeline so that similarity and quality scoring never see prompt leakage.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes model artifacts in three phases and returns the trimmed
// result:
//  1. Thinking / reasoning block removal
//  2. Instruction echo removal (prompt leakage)
//  3. Outer quote-pair removal
func Clean(text string) string {
	text = stripThinking(text)
	text = stripEchoes(text)
	text = stripOuterQuotes(text)
	return strings.TrimSpace(text)
}

// reThinking matches complete <thinking>…</thinking> style blocks. Each tag
// variant is listed explicitly because RE2 has no backreferences.
var reThinking = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// reThinkingOpen matches an opened thinking tag with no closing tag (the
// model was cut off mid-thought).
var reThinkingOpen = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func stripThinking(text string) string {
	text = reThinking.ReplaceAllString(text, "")
	text = reThinkingOpen.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// reEchoes match introductory phrases models prepend even when told not to.
// Anchored to the start and requiring a colon to limit false positives.
var reEchoes = []*regexp.Regexp{
	// "Here is / Here's [the] [corrected|revised|translated] text/translation/transcript:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:corrected |revised |repaired |translated )?(?:text|translation|transcript|version)\s*:`),
	// "[The] [corrected|revised] [text|translation|transcript]:"
	regexp.MustCompile(`(?i)^(?:the )?(?:corrected |revised |repaired )?(?:text|translation|transcript)\s*:`),
	// "Certainly / Sure / Of course[,] here is ...:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.]? here(?:'s| is)(?: the)? (?:corrected |revised |repaired |translated )?(?:text|translation|transcript|version)\s*:`),
}

func stripEchoes(text string) string {
	for _, re := range reEchoes {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// stripOuterQuotes removes a matching pair of quotes wrapping the entire
// text. Supported pairs: "…" '…' «…» and the typographic double/single
// quote pairs.
func stripOuterQuotes(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') {
		return strings.TrimSpace(string(runes[1 : n-1]))
	}
	return text
}
