package transducer

import (
	"context"
	"time"
)

// ServiceConfig carries backend credentials and tuning shared by all
// transduction backends. Unused fields are ignored by backends that do not
// need them.
type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
}

// Payload is the unit of work sent to a transduction backend.
type Payload struct {
	Text       string            `json:"text"`
	SourceLang string            `json:"source_lang"`
	TargetLang string            `json:"target_lang"`
	Hints      map[string]string `json:"hints,omitempty"`
}

// Result is one backend response: the transduced text and the backend's
// own confidence estimate in [0, 1].
type Result struct {
	Text             string  `json:"text"`
	NativeConfidence float64 `json:"native_confidence"`
}

// Service is the external transduction collaborator. Invoke is called once
// per fan-out node; implementations must be safe for concurrent use.
//
// Failures are classified through the error taxonomy in errors.go:
// a *TransientError is retried by the dispatcher, anything else is terminal
// for that node.
type Service interface {
	Name() string
	Invoke(ctx context.Context, cfg ServiceConfig, payload Payload) (*Result, error)
}
