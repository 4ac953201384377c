// Package llm sends chat completion calls to an OpenAI-compatible
// endpoint, classifies failures into a typed taxonomy, and retries
// transient ones with exponential backoff.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const baseRetryDelay = 100 * time.Millisecond

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	maxRetries int
}

func NewClient(endpoint, apiKey string, maxRetries int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxRetries: maxRetries,
	}
}

// Complete sends one chat completion call, retrying transient failures up
// to maxRetries times. Cancellation via ctx is honored before each
// attempt and during backoff sleeps.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		resp, err := c.send(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, ErrCancelled) {
			return nil, ErrCancelled
		}
		if attempt >= c.maxRetries || !Retryable(err) {
			return nil, err
		}

		attempt++
		delay := retryDelay(attempt, err)
		log.Printf("llm request failed attempt=%d/%d delay=%s err=%v", attempt, c.maxRetries, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ErrCancelled
		}
	}
}

func (c *Client) send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		// includes the per-call timeout
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyError(resp, raw)
	}

	var decoded ChatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &MalformedError{Body: string(raw), Err: err}
	}
	return &decoded, nil
}

// classifyError maps a non-2xx response to the error taxonomy.
func classifyError(resp *http.Response, body []byte) error {
	var detail *errorDetail
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail = &parsed.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrInvalidCredential
	case http.StatusNotFound:
		if detail != nil && strings.Contains(detail.Message, "model") {
			return &ModelNotFoundError{Message: detail.Message}
		}
	case http.StatusTooManyRequests:
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	case http.StatusRequestEntityTooLarge:
		tokens := 0
		if detail != nil {
			for _, word := range strings.Fields(detail.Message) {
				if n, err := strconv.Atoi(word); err == nil {
					tokens = n
					break
				}
			}
		}
		return &RequestTooLargeError{Tokens: tokens}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return ErrServiceUnavailable
	}

	if detail != nil {
		return &APIError{Message: detail.Message, Code: detail.Code, Status: resp.StatusCode}
	}
	return &APIError{
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		Status:  resp.StatusCode,
	}
}

// retryDelay honors an explicit Retry-After when present, otherwise
// backs off exponentially with jitter to avoid synchronized retries.
func retryDelay(attempt int, err error) time.Duration {
	var re *RateLimitedError
	if errors.As(err, &re) && re.RetryAfter > 0 {
		return re.RetryAfter
	}
	exp := baseRetryDelay << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
	return exp + jitter
}
