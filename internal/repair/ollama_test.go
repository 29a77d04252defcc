package repair

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaRepairer_New(t *testing.T) {
	repairer := NewOllamaRepairer("llama3.2", "http://localhost:11434")

	if repairer == nil {
		t.Fatal("expected non-nil repairer")
	}
	if repairer.model != "llama3.2" {
		t.Errorf("expected model 'llama3.2', got %q", repairer.model)
	}
	if repairer.baseURL != "http://localhost:11434" {
		t.Errorf("expected baseURL 'http://localhost:11434', got %q", repairer.baseURL)
	}
	if repairer.client == nil {
		t.Error("expected non-nil HTTP client")
	}
}

func TestOllamaRepairer_Repair_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "llama3.2" {
			t.Errorf("expected model 'llama3.2', got %q", req.Model)
		}
		if req.Stream != false {
			t.Error("expected stream=false")
		}
		if !strings.Contains(req.Prompt, "the the broken text") {
			t.Error("expected prompt to contain the flagged text")
		}

		resp := ollamaResponse{
			Response: "the broken text",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	repairer := NewOllamaRepairer("llama3.2", server.URL)

	result, err := repairer.Repair(context.Background(), "the the broken text", Diagnostics{
		Composite: 55,
		Findings:  []string{"text contains long repeated character runs"},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "the broken text" {
		t.Errorf("expected 'the broken text', got %q", result)
	}
}

func TestOllamaRepairer_Repair_EmptyResponseReturnsOriginal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ollamaResponse{
			Response: "",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	repairer := NewOllamaRepairer("llama3.2", server.URL)

	result, err := repairer.Repair(context.Background(), "original text", Diagnostics{Composite: 60})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "original text" {
		t.Errorf("expected original text when response empty, got %q", result)
	}
}

func TestOllamaRepairer_Repair_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	repairer := NewOllamaRepairer("llama3.2", server.URL)

	_, err := repairer.Repair(context.Background(), "some text", Diagnostics{})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestBuildRepairPrompt(t *testing.T) {
	prompt := buildRepairPrompt("hello hello world", Diagnostics{
		Composite:  48.5,
		Findings:   []string{"text length is implausible for its context"},
		TargetLang: "en",
		SourceText: "bonjour le monde",
	})

	if !strings.Contains(prompt, "hello hello world") {
		t.Error("prompt missing flagged text")
	}
	if !strings.Contains(prompt, "text length is implausible") {
		t.Error("prompt missing findings")
	}
	if !strings.Contains(prompt, "bonjour le monde") {
		t.Error("prompt missing source reference")
	}
	if !strings.Contains(prompt, "48.5") {
		t.Error("prompt missing composite score")
	}
}

func TestRepairerInterface(t *testing.T) {
	var _ Repairer = (*OllamaRepairer)(nil)
}
