package lang

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codewiki-dev/codewiki/internal/model"
)

// Parser wraps a tree-sitter parser plus the language registry. One Parser
// must exist per worker goroutine — parser instances are not safe to share
// across threads (see spec.md §5 shared-resource policy).
type Parser struct {
	ts       *sitter.Parser
	registry *Registry
}

// NewParser creates a parser bound to the default language registry.
func NewParser() *Parser {
	return &Parser{ts: sitter.NewParser(), registry: Default()}
}

// NewParserWithRegistry creates a parser bound to a custom registry.
func NewParserWithRegistry(r *Registry) *Parser {
	return &Parser{ts: sitter.NewParser(), registry: r}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

// DetectLanguage is a pure extension lookup, delegated to the registry.
func (p *Parser) DetectLanguage(path string) (model.Language, bool) {
	return p.registry.DetectLanguage(path)
}

// Parse never fails on well-formed UTF-8; tree-sitter tolerates syntax
// errors and produces an error-containing tree (surfaced via Node.HasError).
func (p *Parser) Parse(ctx context.Context, source []byte, language model.Language) (*Tree, error) {
	grammar, ok := p.registry.Grammar(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
	p.ts.SetLanguage(grammar)

	tsTree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse source: nil tree")
	}

	root := convert(tsTree.RootNode())
	return &Tree{Root: root, Source: source, Language: language}, nil
}

// ParseFile reads path once, detects its language, and parses it. Returns
// ok=false when the extension is not recognized, without reading the file.
func (p *Parser) ParseFile(ctx context.Context, path string) (tree *Tree, language model.Language, source []byte, ok bool, err error) {
	language, ok = p.DetectLanguage(path)
	if !ok {
		return nil, "", nil, false, nil
	}
	source, err = os.ReadFile(path)
	if err != nil {
		return nil, language, nil, true, err
	}
	tree, err = p.Parse(ctx, source, language)
	if err != nil {
		return nil, language, source, true, err
	}
	return tree, language, source, true, nil
}

// FileInfo computes the SHA-256 of path's full contents relative to root.
func (p *Parser) FileInfo(path, repoRoot string) (model.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.FileInfo{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FileInfo{}, err
	}
	sum := sha256.Sum256(data)
	language, _ := p.DetectLanguage(path)

	rel := path
	if len(repoRoot) > 0 && len(path) > len(repoRoot) && path[:len(repoRoot)] == repoRoot {
		rel = path[len(repoRoot):]
		for len(rel) > 0 && (rel[0] == '/' || rel[0] == os.PathSeparator) {
			rel = rel[1:]
		}
	}

	return model.FileInfo{
		RelPath:      rel,
		AbsolutePath: path,
		Language:     language,
		SHA256Hex:    hex.EncodeToString(sum[:]),
		SizeBytes:    info.Size(),
		ModTime:      info.ModTime().UTC().Truncate(time.Second),
	}, nil
}

func convert(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}
	n := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
		raw:      tsNode,
	}
	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := tsNode.Child(i); child != nil {
			n.Children = append(n.Children, convert(child))
		}
	}
	return n
}

// ChildByFieldName returns the named-field child of n, or nil. Used for
// per-language identifier/parent-class extraction against the raw
// tree-sitter node field API, which isn't expressible generically on Node.
func ChildByFieldName(n *Node, field string) *Node {
	if n == nil || n.raw == nil {
		return nil
	}
	tsNode, ok := n.raw.(*sitter.Node)
	if !ok {
		return nil
	}
	child := tsNode.ChildByFieldName(field)
	return convert(child)
}
