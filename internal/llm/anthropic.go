package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/codewiki-dev/codewiki/internal/embed"
	cwerrors "github.com/codewiki-dev/codewiki/internal/errors"
)

// AnthropicProvider talks to POST /v1/messages per spec.md §6, streaming
// via server-sent events when GenerateStream is used.
type AnthropicProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	version string
	retry   embed.RetryConfig
}

var _ Provider = (*AnthropicProvider)(nil)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// anthropicStreamEvent covers the subset of Anthropic's SSE event payloads
// needed to reconstruct incremental text: content_block_delta events carry
// the next slice of text, message_stop ends the stream.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

// NewAnthropicProvider constructs a provider against baseURL (default
// "https://api.anthropic.com" when empty).
func NewAnthropicProvider(baseURL, apiKey, model string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicProvider{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		version: "2023-06-01",
		retry:   embed.DefaultRetryConfig(),
	}
}

func (p *AnthropicProvider) Name() string { return p.model }

func (p *AnthropicProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.version)
	return req, nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var answer string
	err := embed.WithRetry(ctx, p.retry, func() error {
		body, err := json.Marshal(anthropicRequest{
			Model:       p.model,
			MaxTokens:   maxTokens,
			Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
			System:      opts.SystemPrompt,
			Temperature: opts.Temperature,
		})
		if err != nil {
			return fmt.Errorf("llm: marshal request: %w", err)
		}
		req, err := p.newRequest(ctx, body)
		if err != nil {
			return err
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return cwerrors.New(cwerrors.KindLLMConnectionError, "anthropic messages request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return cwerrors.ModelNotFound(p.model, nil)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("llm: anthropic /v1/messages status %d", resp.StatusCode)
		}

		var result anthropicResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("llm: decode anthropic response: %w", err)
		}
		var sb strings.Builder
		for _, c := range result.Content {
			sb.WriteString(c.Text)
		}
		answer = sb.String()
		return nil
	})
	return answer, err
}

func (p *AnthropicProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		System:      opts.SystemPrompt,
		Temperature: opts.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}
	req, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, cwerrors.New(cwerrors.KindLLMConnectionError, "anthropic stream request", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("llm: anthropic stream status %d", resp.StatusCode)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}
			switch event.Type {
			case "content_block_delta":
				select {
				case out <- StreamChunk{Text: event.Delta.Text}:
				case <-ctx.Done():
					return
				}
			case "message_stop":
				select {
				case out <- StreamChunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out, nil
}
