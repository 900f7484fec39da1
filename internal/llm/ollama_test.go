package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOllamaChatServer(t *testing.T, modelName string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": modelName}},
		})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: "42"},
			Done:    true,
		})
	})
	return httptest.NewServer(mux)
}

func TestOllamaProviderGenerate(t *testing.T) {
	srv := newFakeOllamaChatServer(t, "llama3.1")
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	answer, err := p.Generate(context.Background(), "what is the answer?", GenerateOptions{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "42", answer)
}

func TestOllamaProviderModelNotFound(t *testing.T) {
	srv := newFakeOllamaChatServer(t, "some-other-model")
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	_, err := p.Generate(context.Background(), "hi", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLMModelNotFound")
}

func TestOllamaProviderGenerateStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{{"name": "llama3.1"}}})
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"role":"assistant","content":"hel"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"role":"assistant","content":"lo"},"done":true}` + "\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	stream, err := p.GenerateStream(context.Background(), "hi", GenerateOptions{})
	require.NoError(t, err)

	var text string
	for chunk := range stream {
		text += chunk.Text
	}
	assert.Equal(t, "hello", text)
}
