// Package research implements the Research Pipeline of spec.md §4.8: a
// fixed five-state machine that decomposes a question, retrieves code
// context across sub-questions, checks for gaps, optionally issues
// follow-up retrievals, and synthesizes a cited answer.
//
// The teacher module has no multi-step orchestrated pipeline of its own —
// its internal/search/decomposer.go is a deterministic pattern matcher,
// not an LLM-driven state machine — so this package's shape is designed
// fresh, grounded in the port.AIProvider-style RAG flow from the example
// corpus's go-git-analyzer-ollama reference file and the teacher's
// golang.org/x/sync availability for the concurrent retrieval fan-out.
package research

import (
	"github.com/codewiki-dev/codewiki/internal/embed"
	"github.com/codewiki-dev/codewiki/internal/llm"
	"github.com/codewiki-dev/codewiki/internal/store"
)

// Config holds the bounds spec.md §4.8 lists, each with its default.
type Config struct {
	MaxSubQuestions      int
	ChunksPerSubquestion int
	MaxTotalChunks       int
	MaxFollowUpQueries   int
	SynthesisTemperature float64
	SynthesisMaxTokens   int
}

// DefaultConfig returns the defaults named in spec.md §4.8.
func DefaultConfig() Config {
	return Config{
		MaxSubQuestions:      4,
		ChunksPerSubquestion: 5,
		MaxTotalChunks:       30,
		MaxFollowUpQueries:   3,
		SynthesisTemperature: 0.5,
		SynthesisMaxTokens:   4096,
	}
}

// CancelFunc is polled at each state boundary; returning true aborts the
// run with a CancelledError tagged with the step name.
type CancelFunc func() bool

// ProgressFunc receives the progress events Pipeline.Run emits (see Run for
// which events are sent and when).
type ProgressFunc func(event ProgressEvent)

// ProgressEvent mirrors model.ResearchProgress but stays package-local so
// callers needing only research don't need to construct model values by
// hand; Pipeline.Run emits ProgressEvent values directly and builds no
// model.ResearchProgress.
type ProgressEvent struct {
	Step            int
	StepType        string
	Message         string
	SubQuestions    int
	ChunkCount      int
	FollowUpQueries []string
	DurationMS      int64
}

// Pipeline wires the LLM Provider, Vector Store, and Embedding Provider
// together to run the five-state machine.
type Pipeline struct {
	llmProvider llm.Provider
	vectorStore store.VectorStore
	embedder    embed.Embedder
	cfg         Config
}

// New constructs a Pipeline.
func New(llmProvider llm.Provider, vectorStore store.VectorStore, embedder embed.Embedder, cfg Config) *Pipeline {
	return &Pipeline{llmProvider: llmProvider, vectorStore: vectorStore, embedder: embedder, cfg: cfg}
}
