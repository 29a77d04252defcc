package repair

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal/postprocess"
)

// OllamaRepairer uses a local Ollama model as a copy editor for flagged
// outputs.
type OllamaRepairer struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaRepairer creates a repairer backed by a local Ollama model.
func NewOllamaRepairer(model, baseURL string) *OllamaRepairer {
	return &OllamaRepairer{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Repair sends the flagged text to the LLM with a targeted correction
// prompt. An empty model response means the model had nothing to offer;
// the original text is returned so the caller's keep-better rule still
// holds.
func (r *OllamaRepairer) Repair(ctx context.Context, text string, diag Diagnostics) (string, error) {
	prompt := buildRepairPrompt(text, diag)

	reqBody := ollamaRequest{
		Model:  r.model,
		Prompt: prompt,
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal repair request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", r.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create repair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("repair request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("repairer returned status %d", resp.StatusCode)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode repair response: %w", err)
	}

	repaired := postprocess.Clean(ollamaResp.Response)
	if repaired == "" {
		return text, nil
	}
	return repaired, nil
}

func buildRepairPrompt(text string, diag Diagnostics) string {
	var sb strings.Builder

	lang := diag.TargetLang
	if lang == "" {
		lang = "the same language as the text"
	}

	fmt.Fprintf(&sb, `You are a meticulous copy editor working in %s.

# YOUR TASK: REPAIR A FLAGGED TEXT

The text below was produced by an automated system and was flagged by a
quality check (composite score %.1f out of 100). Fix the problems listed,
changing as little as possible.

TEXT TO REPAIR:
%s
`, lang, diag.Composite, text)

	if len(diag.Findings) > 0 {
		sb.WriteString("\nDETECTED PROBLEMS:\n")
		for _, f := range diag.Findings {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}

	if diag.SourceText != "" {
		fmt.Fprintf(&sb, "\nORIGINAL SOURCE (for reference, do not translate it again):\n%s\n", diag.SourceText)
	}

	sb.WriteString(`
# RULES

- Fix only what is broken. Do not rephrase healthy sentences.
- Remove stutters, duplicated fragments and garbled characters.
- Preserve all names, numbers and factual content.
- If the text is actually fine, return it unchanged.

Output ONLY the repaired text. Do not include any explanation.`)

	return sb.String()
}
