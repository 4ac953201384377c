package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testRequest() ChatRequest {
	return ChatRequest{
		Model:       "gpt-4.1-nano",
		Messages:    []ChatMessage{SystemMessage("You are a translator"), UserMessage("Hello")},
		Temperature: 0.3,
	}
}

func successBody() string {
	return `{
		"id": "chatcmpl-123",
		"model": "gpt-4.1-nano",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "Привет"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4.1-nano" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(successBody()))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 3, 5*time.Second)
	resp, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	content, ok := resp.Content()
	if !ok || content != "Привет" {
		t.Fatalf("content = %q ok=%v", content, ok)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestComplete_InvalidCredentialNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", 3, 5*time.Second)
	_, err := c.Complete(context.Background(), testRequest())
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestComplete_ServiceUnavailableRetriedMaxTimes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 2, 5*time.Second)
	_, err := c.Complete(context.Background(), testRequest())
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	// initial attempt + 2 retries
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(successBody()))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 3, 5*time.Second)
	resp, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, ok := resp.Content(); !ok {
		t.Fatalf("expected content after retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestComplete_RateLimitedCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit", "type": "requests"}}`))
	}))
	defer srv.Close()

	// no retries so the typed error surfaces immediately
	c := NewClient(srv.URL, "k", 0, 5*time.Second)
	_, err := c.Complete(context.Background(), testRequest())
	var re *RateLimitedError
	if !errors.As(err, &re) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if re.RetryAfter != 7*time.Second {
		t.Fatalf("retry after = %s, want 7s", re.RetryAfter)
	}
}

func TestComplete_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"message": "The model 'nope' does not exist", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 3, 5*time.Second)
	_, err := c.Complete(context.Background(), testRequest())
	var me *ModelNotFoundError
	if !errors.As(err, &me) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
}

func TestComplete_RequestTooLargeParsesTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(`{"error": {"message": "requested 9000 tokens, maximum is 8192", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 3, 5*time.Second)
	_, err := c.Complete(context.Background(), testRequest())
	var te *RequestTooLargeError
	if !errors.As(err, &te) {
		t.Fatalf("expected RequestTooLargeError, got %v", err)
	}
	if te.Tokens != 9000 {
		t.Fatalf("tokens = %d, want 9000", te.Tokens)
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", 3, 5*time.Second)
	_, err := c.Complete(context.Background(), testRequest())
	var me *MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("expected MalformedError, got %v", err)
	}
}

func TestComplete_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, "k", 3, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := c.Complete(ctx, testRequest())
		done <- err
	}()

	// let the first attempt fail and the 30s backoff start, then cancel
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("cancellation did not interrupt the backoff sleep")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(&TransportError{Err: errors.New("conn refused")}) {
		t.Errorf("transport errors should be retryable")
	}
	if !Retryable(&RateLimitedError{}) {
		t.Errorf("rate limited should be retryable")
	}
	if !Retryable(ErrServiceUnavailable) {
		t.Errorf("service unavailable should be retryable")
	}
	if Retryable(ErrInvalidCredential) {
		t.Errorf("invalid credential should not be retryable")
	}
	if Retryable(&RequestTooLargeError{Tokens: 1}) {
		t.Errorf("request too large should not be retryable")
	}
}
