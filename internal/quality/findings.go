package quality

import "sort"

// findingTexts are the per-dimension complaints handed to the corrective
// rewrite collaborator when a dimension scores poorly.
var findingTexts = map[string]string{
	DimLengthPlausibility:  "text length is implausible for this kind of content",
	DimCharDiversity:       "character distribution is unusually uniform, output may be garbled or truncated",
	DimRepetitionAnomaly:   "text contains abnormal character repetition",
	DimWhitespaceBalance:   "word spacing looks wrong for the script",
	DimLanguageConsistency: "text does not appear to be in the expected language",
	DimCompleteness:        "output length diverges sharply from the source, content may be missing or padded",
}

// findingCutoff is the dimension score below which a finding is emitted.
const findingCutoff = 70

// Findings lists concrete complaints for every weakly scoring dimension,
// in stable dimension-name order.
func Findings(sc Score) []string {
	names := make([]string, 0, len(sc.Dimensions))
	for name := range sc.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		if sc.Dimensions[name] < findingCutoff {
			if msg, ok := findingTexts[name]; ok {
				out = append(out, msg)
			}
		}
	}
	return out
}
