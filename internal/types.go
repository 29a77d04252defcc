package internal

import "time"

// TransductionRequest describes one caller request through the pipeline:
// a payload to transduce plus the metadata persisted in the audit store.
type TransductionRequest struct {
	ID         string    `json:"id"`
	Payload    string    `json:"payload"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	SourceTag  string    `json:"source_tag"`
	Timestamp  time.Time `json:"timestamp"`
}
