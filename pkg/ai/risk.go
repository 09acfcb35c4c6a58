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

	"github.com/dealsense-team/dealsense/pkg/config"
)

const riskPrompt = `You are a sales deal-risk analyst. Analyze the following
call transcript and return ONLY a JSON object with this shape:
{
  "risk_level": "low|medium|high",
  "score": 0.0,
  "factors": [{"label": "...", "severity": "low|medium|high", "evidence": "..."}],
  "summary": "..."
}

Transcript:

%s`

// RiskClient is a minimal client for the risk assessment model
type RiskClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewRiskClient creates a risk assessment client using values from the
// provided config. Pass a nil config to fall back to environment variables.
func NewRiskClient(cfg *config.RiskConfig) *RiskClient {
	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}
	if apiKey == "" {
		apiKey = os.Getenv("RISK_API_KEY")
	}

	var base string
	if cfg != nil && cfg.BaseURL != "" {
		base = cfg.BaseURL
	} else {
		base = os.Getenv("RISK_API_URL")
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

	return &RiskClient{
		apiKey:  apiKey,
		baseURL: base,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// AssessRisk sends the transcript to the risk model and returns the raw
// assistant content
func (c *RiskClient) AssessRisk(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(riskPrompt, transcript)

	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    []map[string]string{{"role": "user", "content": prompt}},
		Temperature: 0.2,
		MaxTokens:   2000,
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
		return "", &APIError{Service: "risk", Status: resp.StatusCode, Message: string(body)}
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", &APIError{Service: "risk", Message: "empty response"}
	}
	return cr.Choices[0].Message.Content, nil
}
