// Package embed implements the Embedding Provider of spec.md §4.4: a small
// capability interface (embed/dimension/name) with a local CPU fallback and
// a remote, network-fetched HTTP implementation, both wrapped by a shared
// retry policy.
package embed

import (
	"context"
	"time"
)

const (
	// DefaultBatchSize bounds how many texts are sent to a remote embedder
	// in one request.
	DefaultBatchSize = 32

	// DefaultDimensions is used when a remote embedder's dimensionality
	// cannot be auto-detected up front.
	DefaultDimensions = 768

	// DefaultTimeout bounds a single embed call against a remote backend.
	DefaultTimeout = 60 * time.Second
)

// Embedder generates vector embeddings for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call where
	// the backend supports batching.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns this embedder's fixed embedding width.
	Dimensions() int

	// Name returns the model identifier, used as part of cache keys and
	// diagnostics.
	Name() string

	Close() error
}
