// Package detector wraps lingua-go language detection for payload
// auto-detection and the language-consistency quality dimension.
package detector

import (
	lingua "github.com/pemistahl/lingua-go"
)

// Detector identifies the language of a text. Building one is expensive;
// reuse the instance.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	det := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: det}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the ISO 639-1 code of the detected language, or false
// when the language cannot be determined.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}
