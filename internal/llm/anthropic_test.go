package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProviderGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Content: []struct {
				Text string `json:"text"`
			}{{Text: "hello from claude"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAnthropicProvider(srv.URL, "test-key", "claude-test")
	answer, err := p.Generate(context.Background(), "hi", GenerateOptions{MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", answer)
}

func TestAnthropicProviderGenerateStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"he\"}}\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"llo\"}}\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAnthropicProvider(srv.URL, "test-key", "claude-test")
	stream, err := p.GenerateStream(context.Background(), "hi", GenerateOptions{})
	require.NoError(t, err)

	var text string
	for chunk := range stream {
		text += chunk.Text
	}
	assert.Equal(t, "hello", text)
}
