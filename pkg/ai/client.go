package ai

import (
	"errors"
	"fmt"
)

// APIError is a typed failure from an external model service
type APIError struct {
	Service string
	Status  int
	Message string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// Retryable reports whether the failure is worth retrying at the
// transport level (server errors and rate limiting)
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// asAPIError unwraps an APIError from an error chain
func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string      `json:"model,omitempty"`
	Messages    interface{} `json:"messages,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
