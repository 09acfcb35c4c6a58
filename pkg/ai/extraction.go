package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/dealsense-team/dealsense/pkg/config"
)

const extractionPrompt = `You are a sales intelligence analyst. Analyze the
following call transcript and return ONLY a JSON object with this shape:
{
  "pain_points": ["..."],
  "goals": ["..."],
  "next_steps": ["..."],
  "people": [{"name": "...", "organization": "...", "raw_role": "...", "classified_role": "decision_maker|champion|influencer|blocker|unknown"}]
}

Transcript:

%s`

// ExtractionClient is a minimal client for the extraction model used to
// turn raw transcripts into structured sales intelligence
type ExtractionClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewExtractionClient creates an extraction client using values from the
// provided config. Pass a nil config to fall back to environment variables.
func NewExtractionClient(cfg *config.ExtractionConfig) *ExtractionClient {
	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("EXTRACTION_API_KEY")
	}

	var base string
	if cfg != nil && cfg.BaseURL != "" {
		base = cfg.BaseURL
	} else {
		base = os.Getenv("EXTRACTION_API_URL")
		if base == "" {
			base = "https://api.groq.com"
		}
	}

	model := "llama-3.1-70b-versatile"
	if cfg != nil && cfg.Model != "" {
		model = cfg.Model
	}

	timeout := 60 * time.Second
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &ExtractionClient{
		apiKey:  apiKey,
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Extract sends the transcript to the extraction model and returns the raw
// assistant content. Transient server errors are retried with exponential
// backoff; the caller treats any returned error as a client failure.
func (c *ExtractionClient) Extract(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(extractionPrompt, transcript)

	var content string
	operation := func() error {
		out, err := c.complete(ctx, prompt)
		if err != nil {
			var apiErr *APIError
			if asAPIError(err, &apiErr) && !apiErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		content = out
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

func (c *ExtractionClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    []map[string]string{{"role": "user", "content": prompt}},
		Temperature: 0.2,
		MaxTokens:   4000,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/openai/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &APIError{Service: "extraction", Status: resp.StatusCode, Message: string(body)}
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", &APIError{Service: "extraction", Message: "empty response"}
	}
	return cr.Choices[0].Message.Content, nil
}
