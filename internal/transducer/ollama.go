package transducer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/postprocess"
)

// OllamaService transduces text through a self-hosted Ollama model. Because
// the model runs with nonzero temperature, repeated invocations produce the
// natural output variance the consensus filter exploits.
type OllamaService struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func NewOllamaService(model, baseURL string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaService{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (s *OllamaService) Name() string {
	return "ollama"
}

func (s *OllamaService) Invoke(ctx context.Context, cfg ServiceConfig, payload Payload) (*Result, error) {
	model := cfg.Model
	if model == "" {
		model = s.model
	}

	sourceLang := payload.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "the source language"
	}

	prompt := fmt.Sprintf(`Translate the following text from %s to %s.
Only respond with the translation, nothing else.

Text: "%s"

Translation:`, sourceLang, payload.TargetLang, payload.Text)

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return nil, Permanent(s.Name(), fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", s.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, Permanent(s.Name(), fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(s.Name(), resp.StatusCode)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, Transient(s.Name(), fmt.Errorf("decode response: %w", err))
	}

	text := postprocess.Clean(out.Response)
	if text == "" {
		return nil, Transient(s.Name(), fmt.Errorf("model returned empty output"))
	}

	// Ollama reports no confidence; a fixed mid-high value lets the
	// consensus tie-break still prefer backends that do report one.
	return &Result{Text: text, NativeConfidence: 0.8}, nil
}
