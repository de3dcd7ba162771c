package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIGeneratorSendsPromptAndReturnsContent(t *testing.T) {
	var got chatRequest
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + "```sql\\nSELECT 1\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	generator, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-test", Temperature: 0})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}
	text, err := generator.Generate(context.Background(), "how many rows?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "```sql\nSELECT 1\n```" {
		t.Fatalf("Generate() = %q", text)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 1 || got.Messages[0].Content != "how many rows?" {
		t.Fatalf("request = %+v", got)
	}
}

func TestOpenAIGeneratorReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	generator, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}
	_, err = generator.Generate(context.Background(), "q")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Generate() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !statusErr.Retryable() {
		t.Fatalf("StatusError = %+v", statusErr)
	}
}

func TestOpenAIGeneratorRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	generator, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}
	if _, err := generator.Generate(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIGeneratorHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	generator, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = generator.Generate(ctx, "q")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Generate() error = %v, want deadline exceeded", err)
	}
}

func TestNewOpenAIGeneratorValidatesConfig(t *testing.T) {
	if _, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected base URL error")
	}
	if _, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected api key error")
	}
	generator, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: "http://x", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator() error = %v", err)
	}
	if generator.Model() != "gpt-4o" {
		t.Fatalf("Model() = %q", generator.Model())
	}
}
