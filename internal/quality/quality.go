// Package quality scores a single text along several named dimensions and
// folds them into a weighted composite in [0, 100]. Scoring is purely
// rule-based and deterministic: the same text and the same weights always
// produce the same scores, which the adaptive threshold engine and the
// tests both rely on.
package quality

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/detector"
)

// Dimension names accepted in Config.Weights.
const (
	DimLengthPlausibility  = "length_plausibility"
	DimCharDiversity       = "char_diversity"
	DimRepetitionAnomaly   = "repetition_anomaly"
	DimWhitespaceBalance   = "whitespace_balance"
	DimLanguageConsistency = "language_consistency"
	DimCompleteness        = "completeness"
)

// minDetectRunes is the minimum rune count required to attempt language
// detection; shorter texts score full marks rather than being judged on
// unreliable evidence.
const minDetectRunes = 20

// Verdict classifies a composite score against the active bands.
type Verdict int

const (
	VerdictFail Verdict = iota
	VerdictRepairable
	VerdictPass
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictRepairable:
		return "repairable"
	case VerdictFail:
		return "fail"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Bands are the score-band boundaries in effect for one request:
// composite ≥ Accept is a Pass, Repair ≤ composite < Accept is
// Repairable, anything below Repair is a Fail.
type Bands struct {
	Accept float64
	Repair float64
}

// Classify maps a composite score onto the bands.
func (b Bands) Classify(composite float64) Verdict {
	switch {
	case composite >= b.Accept:
		return VerdictPass
	case composite >= b.Repair:
		return VerdictRepairable
	default:
		return VerdictFail
	}
}

// Score is the scoring result for one text.
type Score struct {
	Composite  float64            `json:"composite"`
	Dimensions map[string]float64 `json:"dimensions"`
	Verdict    Verdict            `json:"verdict"`
}

// Config configures a Scorer.
type Config struct {
	// Weights maps dimension names to non-negative weights. They are
	// normalized to sum to 1; at least one must be positive. Nil means
	// DefaultWeights.
	Weights map[string]float64
	// ExpectedLang is the ISO 639-1 code the text is expected to be in.
	// When empty the language_consistency dimension is dropped and the
	// remaining weights renormalized.
	ExpectedLang string
}

// DefaultWeights is the weight set used when none is configured.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		DimLengthPlausibility:  0.20,
		DimCharDiversity:       0.20,
		DimRepetitionAnomaly:   0.20,
		DimWhitespaceBalance:   0.10,
		DimLanguageConsistency: 0.15,
		DimCompleteness:        0.15,
	}
}

var knownDimensions = map[string]bool{
	DimLengthPlausibility:  true,
	DimCharDiversity:       true,
	DimRepetitionAnomaly:   true,
	DimWhitespaceBalance:   true,
	DimLanguageConsistency: true,
	DimCompleteness:        true,
}

// Scorer computes quality scores. Safe for concurrent use.
type Scorer struct {
	weights      map[string]float64
	order        []string
	expectedLang string
	det          *detector.Detector
}

// New validates and normalizes the configuration. Unknown dimension names
// and negative weights are construction-time errors.
func New(cfg Config) (*Scorer, error) {
	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights()
	}

	normalized := make(map[string]float64, len(weights))
	total := 0.0
	for name, w := range weights {
		if !knownDimensions[name] {
			return nil, fmt.Errorf("unknown quality dimension %q", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("dimension %q has negative weight %f", name, w)
		}
		if name == DimLanguageConsistency && cfg.ExpectedLang == "" {
			continue
		}
		normalized[name] = w
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("dimension weights sum to zero")
	}
	for name := range normalized {
		normalized[name] /= total
	}

	// Fixed evaluation order keeps float accumulation identical across
	// invocations.
	order := make([]string, 0, len(normalized))
	for name := range normalized {
		order = append(order, name)
	}
	sort.Strings(order)

	s := &Scorer{
		weights:      normalized,
		order:        order,
		expectedLang: cfg.ExpectedLang,
	}
	if _, ok := normalized[DimLanguageConsistency]; ok {
		s.det = detector.New()
	}
	return s, nil
}

// Score evaluates text against every weighted dimension. sourceText is the
// pre-transduction input and feeds the completeness dimension; pass ""
// when no source comparison is meaningful.
func (s *Scorer) Score(text, sourceText string, bands Bands) Score {
	dims := make(map[string]float64, len(s.weights))
	composite := 0.0

	for _, name := range s.order {
		var v float64
		switch name {
		case DimLengthPlausibility:
			v = lengthPlausibility(text)
		case DimCharDiversity:
			v = charDiversity(text)
		case DimRepetitionAnomaly:
			v = repetitionAnomaly(text)
		case DimWhitespaceBalance:
			v = whitespaceBalance(text)
		case DimLanguageConsistency:
			v = s.languageConsistency(text)
		case DimCompleteness:
			v = completeness(text, sourceText)
		}
		dims[name] = v
		composite += v * s.weights[name]
	}

	composite = clamp(composite, 0, 100)
	return Score{
		Composite:  composite,
		Dimensions: dims,
		Verdict:    bands.Classify(composite),
	}
}

// lengthPlausibility rewards texts in the 100–1000 rune sweet spot and
// decays linearly outside it.
func lengthPlausibility(text string) float64 {
	n := len([]rune(text))
	switch {
	case n == 0:
		return 0
	case n >= 100 && n <= 1000:
		return 100
	case n >= 50 && n < 100:
		return 67
	case n > 1000 && n <= 2000:
		return 67
	case n < 50:
		return clamp(33-float64(50-n)*0.67, 0, 100)
	default: // n > 2000
		return clamp(33-float64(n-2000)/60, 0, 100)
	}
}

// charDiversity scores the Shannon entropy of the rune distribution.
// Garbled or stuck output (one character repeated, truncated noise) has
// very low entropy; natural prose in any script lands near the top.
func charDiversity(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, r := range runes {
		freq[r]++
	}

	total := float64(len(runes))
	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}

	// Alphabetic prose sits around 4–5 bits per rune; 6 marks the cap so
	// richer scripts saturate rather than overshoot.
	return clamp(entropy/6.0*100, 0, 100)
}

// repetitionAnomaly penalizes maximal runs of the same rune of length 3 or
// more, the classic signature of a stuck recognizer.
func repetitionAnomaly(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}

	penalty := 0.0
	runLen := 1
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && runes[i] == runes[i-1] {
			runLen++
			continue
		}
		if runLen >= 3 {
			penalty += float64(runLen-2) * 8
		}
		runLen = 1
	}
	return clamp(100-penalty, 0, 100)
}

// whitespaceBalance checks that the space ratio is plausible for prose.
// Scripts without word spacing (CJK) legitimately sit below 5%, so a low
// ratio is only mildly penalized.
func whitespaceBalance(text string) float64 {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	ratio := float64(strings.Count(text, " ")) / float64(n)
	switch {
	case ratio >= 0.05 && ratio <= 0.2:
		return 100
	case ratio < 0.05:
		return 50
	default:
		return clamp(100-(ratio-0.2)*500, 0, 100)
	}
}

// languageConsistency checks the detected language against the expected
// one. Texts too short to detect reliably, and texts the detector cannot
// classify, pass without judgment.
func (s *Scorer) languageConsistency(text string) float64 {
	if len([]rune(strings.TrimSpace(text))) < minDetectRunes {
		return 100
	}
	iso, ok := s.det.DetectISO(text)
	if !ok {
		return 100
	}
	if strings.EqualFold(iso, s.expectedLang) {
		return 100
	}
	return 15
}

// completeness compares output and source length. Translation legitimately
// expands or contracts, so a wide ratio band scores full marks.
func completeness(text, sourceText string) float64 {
	src := len([]rune(sourceText))
	if src == 0 {
		return 100
	}
	ratio := float64(len([]rune(text))) / float64(src)
	switch {
	case ratio >= 0.5 && ratio <= 2.0:
		return 100
	case ratio < 0.5:
		return clamp(ratio/0.5*100, 0, 100)
	default:
		return clamp(100-(ratio-2.0)*50, 0, 100)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
