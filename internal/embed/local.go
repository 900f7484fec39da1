package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalDimensions is the fixed width of LocalEmbedder's output vectors.
const LocalDimensions = 256

// LocalEmbedder is the "at least one local (CPU)" implementation spec.md
// §4.4 requires. It has no model weights to load: each token is hashed
// into a bucket of a fixed-size vector (a simplified bag-of-hashed-tokens
// scheme), then the vector is L2-normalized. This trades semantic quality
// for zero dependencies and instant startup, which is exactly the role it
// plays — a last-resort backend when no network embedder is configured,
// and a fast, deterministic embedder for tests.
//
// This is the one component in the module built entirely on the standard
// library: no real third-party local-inference library in the example
// corpus (the teacher's MLX/CGO path was dropped, see DESIGN.md) is
// reachable without either CGO or a native runtime dependency this module
// does not otherwise need.
type LocalEmbedder struct {
	dims int
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder constructs a LocalEmbedder with the given dimensionality,
// defaulting to LocalDimensions.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = LocalDimensions
	}
	return &LocalEmbedder{dims: dims}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return e.vectorize(text), nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = e.vectorize(t)
	}
	return out, nil
}

func (e *LocalEmbedder) vectorize(text string) []float32 {
	vec := make([]float32, e.dims)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec
	}

	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := h.Sum32() % uint32(e.dims)
		vec[bucket]++
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *LocalEmbedder) Dimensions() int { return e.dims }
func (e *LocalEmbedder) Name() string    { return "local-hashing" }
func (e *LocalEmbedder) Close() error    { return nil }
