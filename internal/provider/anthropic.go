// Package provider implements the gateway's Invoker capability over the
// Anthropic messages API.
//
// DESIGN: The gateway only sees the Invoker interface; everything
// Anthropic-specific (endpoint, headers, payload shape, usage extraction)
// stays here. Request bodies are built with sjson and responses read with
// gjson so the client does not need struct mirrors of the API types.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sokitar/agentic-survey-research-team/internal/gateway"
)

const (
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	maxOutputTokens  = 4096
)

// Anthropic is an HTTP client for the Anthropic messages API.
type Anthropic struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewAnthropic creates a client for the given model. The model identifier
// may carry a "anthropic/" routing prefix, which is stripped before the
// wire call.
func NewAnthropic(apiKey, model string, timeout time.Duration) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider: ANTHROPIC_API_KEY not set")
	}
	return &Anthropic{
		apiKey:   apiKey,
		model:    strings.TrimPrefix(model, "anthropic/"),
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Invoke performs one generation call. All failures, including non-2xx
// responses, are returned as *gateway.ProviderError; context cancellation
// surfaces through the wrapped error chain.
func (a *Anthropic) Invoke(ctx context.Context, prompt string) (string, gateway.Usage, error) {
	body, err := a.buildBody(prompt)
	if err != nil {
		return "", gateway.Usage{}, &gateway.ProviderError{Provider: "anthropic", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(body))
	if err != nil {
		return "", gateway.Usage{}, &gateway.ProviderError{Provider: "anthropic", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", gateway.Usage{}, &gateway.ProviderError{Provider: "anthropic", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gateway.Usage{}, &gateway.ProviderError{Provider: "anthropic", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = string(data)
		}
		return "", gateway.Usage{}, &gateway.ProviderError{
			Provider: "anthropic",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, msg),
		}
	}

	text := extractText(data)
	usage := gateway.Usage{
		InputTokens:  int(gjson.GetBytes(data, "usage.input_tokens").Int()),
		OutputTokens: int(gjson.GetBytes(data, "usage.output_tokens").Int()),
	}
	return text, usage, nil
}

func (a *Anthropic) buildBody(prompt string) (string, error) {
	body := "{}"
	var err error
	if body, err = sjson.Set(body, "model", a.model); err != nil {
		return "", err
	}
	if body, err = sjson.Set(body, "max_tokens", maxOutputTokens); err != nil {
		return "", err
	}
	if body, err = sjson.Set(body, "messages.0.role", "user"); err != nil {
		return "", err
	}
	if body, err = sjson.Set(body, "messages.0.content", prompt); err != nil {
		return "", err
	}
	return body, nil
}

// extractText concatenates all text blocks of the response content.
func extractText(data []byte) string {
	var sb strings.Builder
	for _, block := range gjson.GetBytes(data, "content").Array() {
		if block.Get("type").String() == "text" {
			sb.WriteString(block.Get("text").String())
		}
	}
	return sb.String()
}
