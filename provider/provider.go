// Package provider implements the translation client: one call per unit to
// an external AI translation service, with timeout, retry, and rate-limit
// handling fully contained inside the client.
//
// Two wire formats are supported: the Google Gemini generateContent API and
// the OpenAI chat/completions API (which also covers local Ollama servers
// and any OpenAI-compatible endpoint).
package provider

import (
	"context"
	"time"
)

// Provider IDs.
const (
	IDGoogle = "google"
	IDOpenAI = "openai"
	IDOllama = "ollama"
)

// Config holds the connection settings of one translation provider.
type Config struct {
	// ID is the provider identifier (google, openai, ollama).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey authenticates the calls (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout bounds one provider call.
	Timeout time.Duration
}

// DefaultConfigs returns the pre-configured provider definitions.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		IDGoogle: {
			ID:      IDGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash-lite",
			Timeout: 120 * time.Second,
		},
		IDOpenAI: {
			ID:      IDOpenAI,
			Name:    "OpenAI-compatible",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4.1-mini",
			Timeout: 60 * time.Second,
		},
		IDOllama: {
			ID:      IDOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.2",
			Timeout: 120 * time.Second,
		},
	}
}

// Request is one unit-sized translation request.
type Request struct {
	// Text is the unit's source text.
	Text string
	// TargetLang is the target language code or name.
	TargetLang string
	// SourceLang is the source language, empty for auto-detection.
	SourceLang string
}

// Response carries the translation and how many provider calls it took.
type Response struct {
	Text string
	// Attempts counts provider calls made, including the successful one.
	Attempts int
}

// Client is the collaborator interface the scheduler consumes. A call either
// succeeds, fails with a retryable error already retried up to the client's
// attempt budget, or fails with a permanent classified *Error.
type Client interface {
	Translate(ctx context.Context, req Request) (Response, error)
}
