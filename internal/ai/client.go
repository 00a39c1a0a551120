package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel     = "gpt-3.5-turbo"
	defaultMaxTokens = 500
	defaultBaseURL   = "https://api.openai.com/v1"
	requestTimeout   = 30 * time.Second
	temperature      = 0.7
)

// ProviderError reports a failed call to the language-model provider.
// StatusCode is 0 when the request never got a response.
type ProviderError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("openai: %s", e.Message)
	}
	return fmt.Sprintf("openai API error (%d): %s", e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err (or any error in its chain) is a ProviderError.
func IsProviderError(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr)
}

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-independent chat request.
type CompletionRequest struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Messages    []Message
}

// Completer sends a chat request and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ClientFactory builds a Completer for one resolved API key.
type ClientFactory func(apiKey string) Completer

// OpenAIClient talks to the OpenAI chat completions endpoint.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAIClient creates a client for apiKey. An empty baseURL selects the
// public OpenAI endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Complete implements Completer.
func (c *OpenAIClient) Complete(ctx context.Context, cr CompletionRequest) (string, error) {
	reqBody := apiRequest{
		Model:       cr.Model,
		Messages:    cr.Messages,
		MaxTokens:   cr.MaxTokens,
		Temperature: cr.Temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ProviderError{Message: "calling chat completions", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", &ProviderError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "decoding response", Err: err}
	}
	if len(result.Choices) == 0 {
		return "", &ProviderError{StatusCode: resp.StatusCode, Message: "response has no choices"}
	}

	return result.Choices[0].Message.Content, nil
}

// --- OpenAI API types ---

type apiRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
