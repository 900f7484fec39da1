package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/codewiki-dev/codewiki/internal/embed"
	cwerrors "github.com/codewiki-dev/codewiki/internal/errors"
)

// OllamaProvider talks to Ollama's /api/chat per spec.md §6's wire contract,
// with a one-shot health check against /api/tags on first use per §4.5.
type OllamaProvider struct {
	client *http.Client
	host   string
	model  string
	retry  embed.RetryConfig

	mu       sync.Mutex
	checked  bool
	checkErr error
}

var _ Provider = (*OllamaProvider)(nil)

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Options  ollamaChatOptions   `json:"options"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

// NewOllamaProvider constructs a provider against host for model. The
// health check (listing installed models) is deferred to the first
// Generate/GenerateStream call, per spec.md §4.5.
func NewOllamaProvider(host, model string) *OllamaProvider {
	if host == "" {
		host = embed.DefaultOllamaHost
	}
	return &OllamaProvider{
		client: &http.Client{Timeout: 0},
		host:   host,
		model:  model,
		retry:  embed.DefaultRetryConfig(),
	}
}

func (p *OllamaProvider) Name() string { return p.model }

// ensureModelAvailable performs the one-shot health check, caching the
// result (success or ModelNotFoundError) for the provider's lifetime.
func (p *OllamaProvider) ensureModelAvailable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checked {
		return p.checkErr
	}
	p.checked = true

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		p.checkErr = fmt.Errorf("llm: build health check request: %w", err)
		return p.checkErr
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.checkErr = cwerrors.New(cwerrors.KindLLMConnectionError, "connect to ollama", err)
		return p.checkErr
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		p.checkErr = cwerrors.New(cwerrors.KindLLMConnectionError, "decode ollama /api/tags", err)
		return p.checkErr
	}

	available := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		available = append(available, m.Name)
		if strings.EqualFold(m.Name, p.model) || strings.HasPrefix(strings.ToLower(m.Name), strings.ToLower(p.model)+":") {
			return nil
		}
	}
	p.checkErr = cwerrors.ModelNotFound(p.model, available)
	return p.checkErr
}

func (p *OllamaProvider) buildRequest(prompt string, opts GenerateOptions, stream bool) ollamaChatRequest {
	var messages []ollamaChatMessage
	if opts.SystemPrompt != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: prompt})
	return ollamaChatRequest{
		Model:    p.model,
		Messages: messages,
		Options:  ollamaChatOptions{NumPredict: opts.MaxTokens, Temperature: opts.Temperature},
		Stream:   stream,
	}
}

// Generate performs a non-streaming chat completion, retried per the
// shared backoff-with-jitter policy on transient connection failures.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	if err := p.ensureModelAvailable(ctx); err != nil {
		return "", err
	}

	var answer string
	err := embed.WithRetry(ctx, p.retry, func() error {
		body, err := json.Marshal(p.buildRequest(prompt, opts, false))
		if err != nil {
			return fmt.Errorf("llm: marshal request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return cwerrors.New(cwerrors.KindLLMConnectionError, "ollama chat request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("llm: ollama /api/chat status %d", resp.StatusCode)
		}
		var result ollamaChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("llm: decode /api/chat response: %w", err)
		}
		answer = result.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// GenerateStream performs a streamed chat completion over newline-delimited
// JSON, the format Ollama emits when Stream is true.
func (p *OllamaProvider) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error) {
	if err := p.ensureModelAvailable(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(p.buildRequest(prompt, opts, true))
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, cwerrors.New(cwerrors.KindLLMConnectionError, "ollama chat stream request", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("llm: ollama /api/chat status %d", resp.StatusCode)
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
			line := scanner.Text()
			if line == "" {
				continue
			}
			var chunk ollamaChatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			select {
			case out <- StreamChunk{Text: chunk.Message.Content, Done: chunk.Done}:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()
	return out, nil
}
