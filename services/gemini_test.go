package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiClientComplete(t *testing.T) {
	var gotBody geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("Expected api key header to be set")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"the analysis"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", server.URL)
	text, err := client.Complete(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "the analysis" {
		t.Errorf("Expected %q, got %q", "the analysis", text)
	}

	if len(gotBody.Contents) != 1 || gotBody.Contents[0].Role != "user" {
		t.Fatalf("Expected one user content entry, got %+v", gotBody.Contents)
	}
	if len(gotBody.Contents[0].Parts) != 1 || gotBody.Contents[0].Parts[0].Text != "analyze this" {
		t.Errorf("Expected prompt in first part, got %+v", gotBody.Contents[0].Parts)
	}
}

func TestGeminiClientNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", server.URL)
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Error("Expected an error for a non-2xx response")
	}
}

func TestGeminiClientMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", server.URL)
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Error("Expected an error for a malformed body")
	}
}

func TestGeminiClientEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", "gemini-2.0-flash", server.URL)
	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Error("Expected an error when no candidates are returned")
	}
}
