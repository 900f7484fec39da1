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

// OpenAIProvider talks to any OpenAI-compatible /v1/chat/completions
// endpoint per spec.md §6 (also covers local servers like vLLM or
// llama.cpp's server mode that mimic the OpenAI wire format).
type OpenAIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	retry   embed.RetryConfig
}

var _ Provider = (*OpenAIProvider)(nil)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		Delta        openAIMessage `json:"delta"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// NewOpenAIProvider constructs a provider against baseURL (no trailing
// slash), e.g. "https://api.openai.com".
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		retry:   embed.DefaultRetryConfig(),
	}
}

func (p *OpenAIProvider) Name() string { return p.model }

func (p *OpenAIProvider) buildMessages(prompt string, opts GenerateOptions) []openAIMessage {
	var messages []openAIMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: opts.SystemPrompt})
	}
	return append(messages, openAIMessage{Role: "user", Content: prompt})
}

func (p *OpenAIProvider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var answer string
	err := embed.WithRetry(ctx, p.retry, func() error {
		body, err := json.Marshal(openAIChatRequest{
			Model:       p.model,
			Messages:    p.buildMessages(prompt, opts),
			MaxTokens:   opts.MaxTokens,
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
			return cwerrors.New(cwerrors.KindLLMConnectionError, "openai-compatible chat request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return cwerrors.ModelNotFound(p.model, nil)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("llm: openai-compatible /v1/chat/completions status %d", resp.StatusCode)
		}

		var result openAIChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("llm: decode chat completion response: %w", err)
		}
		if len(result.Choices) == 0 {
			return fmt.Errorf("llm: no choices returned")
		}
		answer = result.Choices[0].Message.Content
		return nil
	})
	return answer, err
}

// GenerateStream consumes the "data: {...}" SSE framing OpenAI-compatible
// servers use for streamed completions, terminating on the literal
// "data: [DONE]" sentinel line.
func (p *OpenAIProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       p.model,
		Messages:    p.buildMessages(prompt, opts),
		MaxTokens:   opts.MaxTokens,
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
		return nil, cwerrors.New(cwerrors.KindLLMConnectionError, "openai-compatible stream request", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("llm: openai-compatible stream status %d", resp.StatusCode)
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
			if payload == "[DONE]" {
				select {
				case out <- StreamChunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			var chunk openAIChatResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil || len(chunk.Choices) == 0 {
				continue
			}
			select {
			case out <- StreamChunk{Text: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
