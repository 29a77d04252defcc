package transducer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// MyMemoryService transduces text through the free MyMemory translation
// API. Useful as a cheap extra consensus node; its per-day quota makes it
// unsuitable as the only backend.
type MyMemoryService struct {
	email  string
	client *http.Client
}

func NewMyMemoryService(email string) *MyMemoryService {
	return &MyMemoryService{
		email:  email,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *MyMemoryService) Name() string {
	return "mymemory"
}

func (s *MyMemoryService) Invoke(ctx context.Context, cfg ServiceConfig, payload Payload) (*Result, error) {
	sourceLang := payload.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}

	base := cfg.BaseURL
	if base == "" {
		base = "https://api.mymemory.translated.net"
	}

	apiURL := fmt.Sprintf("%s/get?q=%s&langpair=%s",
		base,
		url.QueryEscape(payload.Text),
		url.QueryEscape(fmt.Sprintf("%s|%s", sourceLang, payload.TargetLang)))
	if s.email != "" {
		apiURL += "&de=" + url.QueryEscape(s.email)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, Permanent(s.Name(), fmt.Errorf("create request: %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(s.Name(), resp.StatusCode)
	}

	var decoded struct {
		ResponseData struct {
			TranslatedText string  `json:"translatedText"`
			Match          float64 `json:"match"`
		} `json:"responseData"`
		ResponseStatus  int    `json:"responseStatus"`
		ResponseDetails string `json:"responseDetails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, Transient(s.Name(), fmt.Errorf("decode response: %w", err))
	}

	if decoded.ResponseStatus != 200 {
		return nil, classifyStatus(s.Name(), decoded.ResponseStatus)
	}

	conf := decoded.ResponseData.Match
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return &Result{
		Text:             decoded.ResponseData.TranslatedText,
		NativeConfidence: conf,
	}, nil
}
