package transducer

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleService transduces text through the Google Cloud Translation API.
type GoogleService struct{}

func NewGoogleService() *GoogleService {
	return &GoogleService{}
}

func (s *GoogleService) Name() string {
	return "google"
}

func (s *GoogleService) Invoke(ctx context.Context, cfg ServiceConfig, payload Payload) (*Result, error) {
	targetTag, err := language.Parse(payload.TargetLang)
	if err != nil {
		return nil, Permanent(s.Name(), fmt.Errorf("invalid target language %q: %w", payload.TargetLang, err))
	}

	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, Permanent(s.Name(), fmt.Errorf("create client: %w", err))
	}
	defer client.Close()

	var translations []translate.Translation
	if payload.SourceLang == "" || payload.SourceLang == "auto" {
		translations, err = client.Translate(ctx, []string{payload.Text}, targetTag, nil)
	} else {
		sourceTag, _ := language.Parse(payload.SourceLang)
		translations, err = client.Translate(ctx, []string{payload.Text}, targetTag, &translate.Options{
			Source: sourceTag,
		})
	}
	if err != nil {
		// The API client folds network and server failures together;
		// treat them as retryable.
		return nil, Transient(s.Name(), fmt.Errorf("translate: %w", err))
	}

	if len(translations) == 0 {
		return nil, Transient(s.Name(), fmt.Errorf("empty translation response"))
	}

	return &Result{
		Text:             translations[0].Text,
		NativeConfidence: 1.0,
	}, nil
}
