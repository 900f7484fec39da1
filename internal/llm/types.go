// Package llm implements the LLM Provider of spec.md §4.5: a small
// capability interface (generate/generate_stream/name) with three wire
// adapters (Ollama, OpenAI-compatible, Anthropic), all wrapped by the same
// exponential-backoff-with-jitter retry policy internal/embed defines.
//
// The teacher module has no text-generation provider of its own — only
// embeddings — so this package's interface-and-adapter shape is grounded
// on the port.AIProvider pattern from the example corpus's
// go-git-analyzer-ollama reference file, combined with the teacher's HTTP
// client construction conventions.
package llm

import "context"

// Message is one turn in a chat-style prompt.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// GenerateOptions configures a single generate/GenerateStream call.
type GenerateOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// StreamChunk is one piece of a streamed response.
type StreamChunk struct {
	Text string
	Done bool
}

// Provider is the capability interface the rest of the system depends on.
// Implementations own their own connection pooling and wire format; the
// Research Pipeline and LLM Cache never see transport details.
type Provider interface {
	// Generate produces a complete response for prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// GenerateStream produces a response incrementally, sending chunks on
	// the returned channel until Done or ctx is cancelled. The channel is
	// always closed by the implementation.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamChunk, error)

	// Name returns the model identifier.
	Name() string
}
