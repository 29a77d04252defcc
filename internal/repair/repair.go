// Package repair rewrites candidate outputs that scored below the accept
// cutoff but above the fail floor. The repairer receives the scoring
// diagnostics so the prompt can target the dimensions that actually
// dragged the composite down.
package repair

import (
	"context"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/quality"
)

// Diagnostics carries the scoring outcome that triggered a repair attempt.
type Diagnostics struct {
	Composite  float64
	Dimensions map[string]float64
	Findings   []string
	TargetLang string
	SourceText string
}

// FromScore builds repair diagnostics from a quality score.
func FromScore(sc quality.Score, targetLang, sourceText string) Diagnostics {
	return Diagnostics{
		Composite:  sc.Composite,
		Dimensions: sc.Dimensions,
		Findings:   quality.Findings(sc),
		TargetLang: targetLang,
		SourceText: sourceText,
	}
}

// Repairer attempts a targeted rewrite of text. Implementations return
// the original text unchanged when they cannot improve it.
type Repairer interface {
	Repair(ctx context.Context, text string, diag Diagnostics) (string, error)
}
