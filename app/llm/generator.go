// Package llm wraps the text generation providers behind one interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNoAPIKey      = errors.New("llm: no API key configured")
	ErrRateLimit     = errors.New("llm: rate limited by provider")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrUnknownVendor = errors.New("llm: unknown provider")
)

const (
	ProviderGemini = "gemini"
	ProviderCohere = "cohere"
)

// Generator turns one prompt into free text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	CohereAPIKey string
	CohereModel  string
	Timeout      time.Duration
	RatePerMin   int
}

// New builds the configured provider, throttled to RatePerMin calls.
func New(c Config) (Generator, error) {
	httpClient := &http.Client{Timeout: c.Timeout}

	var (
		gen Generator
		err error
	)
	switch c.Provider {
	case ProviderGemini, "":
		gen, err = NewGeminiClient(c.GeminiAPIKey, WithGeminiModel(c.GeminiModel), WithGeminiHTTPClient(httpClient))
	case ProviderCohere:
		gen, err = NewCohereClient(c.CohereAPIKey, c.CohereModel, "", httpClient)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, c.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewLimited(gen, c.RatePerMin), nil
}
