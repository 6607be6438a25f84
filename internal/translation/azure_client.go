package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lexiqai/narration-gateway/internal/resilience"
)

const systemPrompt = "You are a professional translator. Translate the user's text into %s. " +
	"Reply with the translation only, without quotes or commentary."

// AzureClient implements Translator using an Azure OpenAI chat completions deployment
type AzureClient struct {
	httpClient     *http.Client
	retry          *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAzureClient creates a new translation client
func NewAzureClient(retry *resilience.RetryConfig, cb *resilience.CircuitBreaker) *AzureClient {
	return &AzureClient{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		retry:          retry,
		circuitBreaker: cb,
	}
}

// Translate implements Translator
func (c *AzureClient) Translate(ctx context.Context, sentence, targetLanguage string, creds Credentials) (string, error) {
	var translated string
	call := func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			var err error
			translated, err = c.complete(ctx, sentence, targetLanguage, creds)
			return err
		}, c.retry, resilience.IsRetryableNetworkError)
	}

	var err error
	if c.circuitBreaker != nil {
		err = c.circuitBreaker.Call(call, countsAgainstBreaker)
	} else {
		err = call()
	}
	if err != nil {
		var tErr *Error
		if errors.As(err, &tErr) {
			return "", tErr
		}
		return "", &Error{Err: err}
	}
	return translated, nil
}

func (c *AzureClient) complete(ctx context.Context, sentence, targetLanguage string, creds Credentials) (string, error) {
	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, targetLanguage)},
			{Role: "user", Content: sentence},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL(creds), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", creds.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		message := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			message = parsed.Error.Message
		}
		tErr := &Error{Status: resp.StatusCode, Message: message}
		if resilience.IsRetryableStatus(resp.StatusCode) {
			return "", resilience.NewRetryableError(tErr)
		}
		return "", tErr
	}

	if decodeErr != nil {
		return "", &Error{Status: resp.StatusCode, Message: "malformed response", Err: decodeErr}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Status: resp.StatusCode, Message: "response has no choices"}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func completionsURL(creds Credentials) string {
	version := creds.APIVersion
	if version == "" {
		version = "2024-02-01"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(creds.Endpoint, "/"), url.PathEscape(creds.Deployment), url.QueryEscape(version))
}

// countsAgainstBreaker ignores client-side (4xx other than 429) refusals
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var tErr *Error
	if errors.As(err, &tErr) && tErr.Status > 0 {
		return resilience.IsRetryableStatus(tErr.Status)
	}
	return true
}
