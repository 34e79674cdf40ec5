package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
	"github.com/pondwatch/pondwatch-go/internal/retry"
)

// defaultGeminiEndpoint is the public generative language API base URL.
const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiClient calls the Gemini generateContent REST API. Transient
// failures surface as retry.HTTPStatusError so the backoff policy can
// classify them.
type GeminiClient struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

// NewGeminiClient builds the client from settings. The endpoint override
// exists for tests.
func NewGeminiClient(cfg *conf.AssistantSettings) *GeminiClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiClient{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Generate sends one prompt and returns the first text candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return "", errors.New(err).
			Component("assistant").
			Category(errors.CategoryLanguageService).
			Build()
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.New(err).
			Component("assistant").
			Category(errors.CategoryLanguageService).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &retry.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", errors.New(err).
			Component("assistant").
			Category(errors.CategoryLanguageService).
			Build()
	}

	for _, candidate := range gr.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", errors.Newf("no text candidate in response").
		Component("assistant").
		Category(errors.CategoryLanguageService).
		Build()
}
