package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/glotdoc/glotdoc/langmeta"
)

// DefaultMaxAttempts is the stock per-unit attempt budget.
const DefaultMaxAttempts = 3

// HTTPClient calls an HTTP translation provider. Retryable failures
// (timeouts, rate limits, transient 5xx) are retried with exponential
// backoff up to the attempt budget; permanent failures are returned
// immediately as classified *Error values.
type HTTPClient struct {
	cfg         Config
	http        *http.Client
	rl          *rateLimitState
	maxAttempts int
}

// NewHTTP creates a client for the given provider configuration.
// maxAttempts <= 0 applies DefaultMaxAttempts.
func NewHTTP(cfg Config, maxAttempts int) *HTTPClient {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &HTTPClient{
		cfg:         cfg,
		http:        makeHTTPClient(cfg.Proxy, cfg.Timeout),
		rl:          &rateLimitState{},
		maxAttempts: maxAttempts,
	}
}

// makeHTTPClient builds the transport with proxy support: the explicit
// proxy URL wins, otherwise HTTP_PROXY/HTTPS_PROXY from the environment.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Translate implements Client.
func (c *HTTPClient) Translate(ctx context.Context, req Request) (Response, error) {
	prompt := buildPrompt(req)

	var text string
	attempts := 0

	op := func() error {
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		out, err := c.call(ctx, prompt)
		if err == nil {
			text = out
			return nil
		}
		if perr, ok := AsError(err); ok {
			if perr.Kind == KindRateLimited {
				// Park sibling workers for the advertised window.
				c.rl.pause(perr.RetryAfter)
				return err
			}
			if !perr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)), ctx))

	if err == nil {
		c.rl.unpause()
	}
	return Response{Text: text, Attempts: attempts}, err
}

// call performs one provider request and classifies every failure.
func (c *HTTPClient) call(ctx context.Context, prompt string) (string, error) {
	endpoint, headers, body, err := c.buildRequest(prompt)
	if err != nil {
		return "", &Error{Kind: KindInvalid, Message: "building request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindInvalid, Message: "creating request", Err: err}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		text, err := extractResponseText(respBody)
		if err != nil {
			return "", &Error{Kind: KindInvalid, Message: err.Error(), Err: err}
		}
		return text, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{
			Kind:       KindRateLimited,
			Status:     resp.StatusCode,
			Message:    truncate(string(respBody), 300),
			RetryAfter: parseRetryDelay(resp.Header, respBody),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: KindUnauthorized, Status: resp.StatusCode, Message: truncate(string(respBody), 300)}
	case resp.StatusCode >= 500:
		return "", &Error{Kind: KindTimeout, Status: resp.StatusCode, Message: truncate(string(respBody), 300)}
	default:
		return "", &Error{Kind: KindInvalid, Status: resp.StatusCode, Message: truncate(string(respBody), 300)}
	}
}

// classifyTransport maps a transport-level failure: timeouts are retryable,
// anything else (refused connection, DNS failure) means the provider is
// unreachable and the job should fail fast.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindInvalid, Message: "request cancelled", Err: err}
	}
	return &Error{Kind: KindUnreachable, Message: err.Error(), Err: err}
}

// ---------------------------------------------------------------------------
// Prompt
// ---------------------------------------------------------------------------

// buildPrompt renders the translation instruction for one unit. Formatting,
// placeholders, code, and identifiers must survive untouched; the provider
// returns only the translated text.
func buildPrompt(req Request) string {
	target := req.TargetLang
	if meta, ok := langmeta.Resolve(target); ok {
		target = meta.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional technical translator. Translate the following text into %s.\n\n", target)
	if req.SourceLang != "" {
		source := req.SourceLang
		if meta, ok := langmeta.Resolve(source); ok {
			source = meta.Name
		}
		fmt.Fprintf(&b, "The source language is %s.\n", source)
	}
	b.WriteString("Strictly preserve original formatting and layout: line breaks, indentation, ")
	b.WriteString("spacing, bullet/numbered lists, tables, and code blocks.\n")
	b.WriteString("Do not translate code, CLI commands, file paths, API names, URLs, or ")
	b.WriteString("placeholders like {var}, <tag>, %s, or ${VAR}.\n")
	b.WriteString("Do not add explanations. Return ONLY the translated text.\n\n")
	b.WriteString("Text to translate:\n")
	b.WriteString(req.Text)
	return b.String()
}

// ---------------------------------------------------------------------------
// Request builders
// ---------------------------------------------------------------------------

func (c *HTTPClient) buildRequest(prompt string) (string, map[string]string, []byte, error) {
	headers := map[string]string{"Content-Type": "application/json"}

	if c.cfg.ID == IDGoogle {
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
			strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
		if c.cfg.APIKey != "" {
			headers["x-goog-api-key"] = c.cfg.APIKey
		}
		body, err := buildGeminiRequest(prompt, 0.3)
		return endpoint, headers, body, err
	}

	// OpenAI chat format covers openai, ollama, and compatible endpoints.
	baseURL := strings.TrimRight(c.cfg.BaseURL, "/")
	endpoint := baseURL
	if !strings.HasSuffix(baseURL, "/chat/completions") {
		endpoint = baseURL + "/chat/completions"
	}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	body, err := buildOpenAIChatRequest(c.cfg.Model, prompt, 0.3)
	return endpoint, headers, body, err
}

func buildOpenAIChatRequest(model, prompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model:       model,
		Messages:    []msg{{Role: "user", Content: prompt}},
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(prompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents         []content `json:"contents"`
		GenerationConfig genConfig `json:"generationConfig"`
	}{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	return json.Marshal(req)
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

// extractResponseText handles both supported response shapes.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return strings.TrimSpace(content), nil
				}
			}
		}
	}

	// Gemini: candidates[0].content.parts[0].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]any); ok {
						if text, ok := part["text"].(string); ok {
							return strings.TrimSpace(text), nil
						}
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 300))
}

// parseRetryDelay extracts the delay to wait after a 429: the Retry-After
// header when present, otherwise Google's RetryInfo detail, otherwise a
// 65-second default (60s window + 5s buffer).
func parseRetryDelay(header http.Header, body []byte) time.Duration {
	const defaultDelay = 65 * time.Second

	if ra := header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs)*time.Second + 5*time.Second
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultDelay
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			d := strings.TrimSuffix(detail.RetryDelay, "s")
			if secs, err := strconv.ParseFloat(d, 64); err == nil {
				return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
			}
		}
	}
	return defaultDelay
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
