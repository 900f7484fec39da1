package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	codeTokenizerName = "codewiki_code_tokenizer"
	codeAnalyzerName  = "codewiki_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, newCodeTokenizer)
}

// bleveLexicalIndex is the `search.bm25_backend: bleve` alternative to the
// default sqlite/FTS5 lexicalIndex: same lexicalBackend contract, same
// code-aware tokenization (tokenizeCode/splitIdentifier), but backed by
// Bleve's own inverted index and scorer instead of FTS5's bm25().
type bleveLexicalIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

type bleveDoc struct {
	Content string `json:"content"`
}

func newBleveLexicalIndex(path string) (*bleveLexicalIndex, error) {
	mapping, err := newCodeIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build bleve mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = bleve.Open(path)
		} else {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &bleveLexicalIndex{index: idx}, nil
}

// newCodeIndexMapping registers the code-aware tokenizer as the default
// analyzer, so field text is split on camelCase/snake_case boundaries the
// same way the sqlite backend's tokenizeCode does.
func newCodeIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, err
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

func (b *bleveLexicalIndex) index(ctx context.Context, docs map[string]string) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for docID, content := range docs {
		batch.Delete(docID)
		if err := batch.Index(docID, bleveDoc{Content: content}); err != nil {
			return fmt.Errorf("index bleve doc %s: %w", docID, err)
		}
	}
	return b.index.Batch(batch)
}

func (b *bleveLexicalIndex) deleteDocs(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

func (b *bleveLexicalIndex) search(ctx context.Context, query string, limit int) ([]lexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]lexicalResult, 0, len(res.Hits))
	for i, hit := range res.Hits {
		out = append(out, lexicalResult{DocID: hit.ID, Rank: i + 1})
	}
	return out, nil
}

func (b *bleveLexicalIndex) close() error {
	return b.index.Close()
}

var _ lexicalBackend = (*bleveLexicalIndex)(nil)

// bleveCodeTokenizer adapts tokenizeCode to bleve's analysis.Tokenizer
// interface, so identifier fragments ("getUserById" -> get/user/by/id) are
// searchable terms the same way they are in the sqlite/FTS5 backend.
type bleveCodeTokenizer struct{}

func newCodeTokenizer(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveCodeTokenizer{}, nil
}

func (t *bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := tokenizeCode(string(input))
	stream := make(analysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    0,
			End:      len(tok),
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return stream
}
