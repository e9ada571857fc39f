package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generator is the text-generation capability the pipeline depends on.
// Implementations must treat every call as independent; all retry and
// backoff policy lives behind this interface.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
	MaxRetries int
	// Logger is used for retry warnings. nil means no logging.
	Logger *log.Logger
}

// NewClientFromEnv builds a Client from the environment:
// OPENROUTER_API_KEY (required), VOCABFORGE_AI_BASE_URL,
// VOCABFORGE_AI_MODEL, VOCABFORGE_AI_MAX_RETRIES.
func NewClientFromEnv(logger *log.Logger) (*Client, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENROUTER_API_KEY")
	}

	baseURL := os.Getenv("VOCABFORGE_AI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1/chat/completions"
	}

	model := os.Getenv("VOCABFORGE_AI_MODEL")
	if model == "" {
		model = "openai/gpt-4o-mini"
	}

	maxRetries := 3
	if v := os.Getenv("VOCABFORGE_AI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		MaxRetries: maxRetries,
		Logger:     logger,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPError reports a non-2xx response from the endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

// jitterSleep spreads a base delay +/- 20% so concurrent runs do not
// retry in lockstep.
func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*2*delta
	return time.Duration(v * float64(time.Second))
}

// Generate sends a system+user pair and returns the assistant's text.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	if c.BaseURL == "" || c.Model == "" {
		return "", fmt.Errorf("ai: base URL and model required")
	}

	backoff := 1 * time.Second
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		resp, text, err := c.doOnce(ctx, system, user)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryableErr(err) || attempt == c.MaxRetries {
			return "", err
		}

		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		if c.Logger != nil {
			c.Logger.Printf("ai request retrying (attempt %d/%d, sleeping %s): %v", attempt+1, c.MaxRetries, sleepFor, err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return "", lastErr
}

func (c *Client) doOnce(ctx context.Context, system, user string) (*http.Response, string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var b bytes.Buffer
		_, _ = b.ReadFrom(resp.Body)
		return resp, "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(b.String())}
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return resp, "", err
	}
	if payload.Error != nil {
		return resp, "", fmt.Errorf("ai error: %s", payload.Error.Message)
	}
	if len(payload.Choices) == 0 {
		return resp, "", fmt.Errorf("ai: empty response")
	}
	return resp, payload.Choices[0].Message.Content, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 120 * time.Second}
}
