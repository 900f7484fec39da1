// Package chunk implements the Chunker component of spec.md §4.2: it
// consumes a parsed AST plus the source bytes, language, and repo-relative
// path, and emits CodeChunk values in a fixed order (Module, Import,
// Classes, top-level Functions).
package chunk

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codewiki-dev/codewiki/internal/lang"
	"github.com/codewiki-dev/codewiki/internal/model"
)

const maxImportsShown = 10

// Chunker turns a parsed file into the CodeChunk sequence spec.md §4.2
// describes.
type Chunker struct {
	registry            *lang.Registry
	classSplitThreshold int
	metadataByLanguage  map[model.Language]LanguageMetadata
}

// New builds a Chunker. classSplitThreshold is the `chunking.class_split_threshold`
// configuration key (default 200 per spec.md §6).
func New(registry *lang.Registry, classSplitThreshold int) *Chunker {
	if classSplitThreshold <= 0 {
		classSplitThreshold = 200
	}
	return &Chunker{
		registry:            registry,
		classSplitThreshold: classSplitThreshold,
		metadataByLanguage: map[model.Language]LanguageMetadata{
			model.LanguagePython: pythonMetadata{},
		},
	}
}

// Chunk emits the CodeChunk sequence for one parsed file. relPath is the
// path stored on every chunk and folded into the stable ID.
func (c *Chunker) Chunk(tree *lang.Tree, relPath string) ([]model.CodeChunk, error) {
	cfg, ok := c.registry.Config(tree.Language)
	if !ok {
		return nil, fmt.Errorf("chunk: unsupported language %q", tree.Language)
	}
	source := tree.Source
	lineCount := countLines(source)

	var chunks []model.CodeChunk

	classNodes := findClassNodes(tree.Root, cfg)
	imports := collectImportsImpl(tree.Root, cfg)
	funcNodesTopLevel := collectTopLevelFunctions(tree.Root, cfg)

	// 1. Module chunk — always exactly one.
	chunks = append(chunks, c.buildModuleChunk(relPath, tree, cfg, imports, classNodes, funcNodesTopLevel, lineCount))

	// 2. Import chunk — zero or one.
	if importChunk, ok := c.buildImportChunk(relPath, source, imports); ok {
		chunks = append(chunks, importChunk)
	}

	// 3. Classes, pre-order.
	for _, classNode := range classNodes {
		chunks = append(chunks, c.buildClassChunks(relPath, source, tree.Language, cfg, classNode)...)
	}

	// 4. Top-level functions.
	for _, fn := range funcNodesTopLevel {
		chunks = append(chunks, c.buildFunctionChunk(relPath, source, tree.Language, cfg, fn, "", model.ChunkTypeFunction))
	}

	return chunks, nil
}

func countLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := strings.Count(string(source), "\n")
	if source[len(source)-1] != '\n' {
		n++
	}
	return n
}

func fileStem(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// --- node discovery -------------------------------------------------------

func findClassNodes(root *lang.Node, cfg *lang.Config) []*lang.Node {
	return lang.FindByType(root, lang.Set(cfg.ClassTypes))
}

func collectTopLevelFunctions(root *lang.Node, cfg *lang.Config) []*lang.Node {
	classTypes := lang.Set(cfg.ClassTypes)
	funcTypes := lang.Set(cfg.FunctionTypes)
	var top []*lang.Node
	var ancestors []*lang.Node
	insideClass := func() bool {
		for _, a := range ancestors {
			if classTypes[a.Type] {
				return true
			}
		}
		return false
	}
	var walk func(n *lang.Node)
	walk = func(n *lang.Node) {
		if funcTypes[n.Type] && !insideClass() {
			top = append(top, n)
		}
		ancestors = append(ancestors, n)
		for _, c := range n.Children {
			walk(c)
		}
		ancestors = ancestors[:len(ancestors)-1]
	}
	walk(root)
	return top
}

func collectImportsImpl(root *lang.Node, cfg *lang.Config) []*lang.Node {
	if len(cfg.ImportTypes) == 0 {
		return nil
	}
	return lang.FindByType(root, lang.Set(cfg.ImportTypes))
}

// --- chunk builders --------------------------------------------------------

func (c *Chunker) buildModuleChunk(relPath string, tree *lang.Tree, cfg *lang.Config, imports []*lang.Node, classNodes, topFuncs []*lang.Node, lineCount int) model.CodeChunk {
	source := tree.Source
	var b strings.Builder

	b.WriteString("# Imports:\n")
	importTexts := importTextsOf(imports, source)
	shown := importTexts
	truncated := false
	if len(shown) > maxImportsShown {
		shown = shown[:maxImportsShown]
		truncated = true
	}
	for _, t := range shown {
		b.WriteString(t)
		b.WriteString("\n")
	}
	if truncated {
		b.WriteString(fmt.Sprintf("... (%d more)\n", len(importTexts)-maxImportsShown))
	}

	classNames := namesOf(classNodes, source, cfg)
	b.WriteString("# Classes: ")
	b.WriteString(strings.Join(classNames, ", "))
	b.WriteString("\n")

	funcNames := namesOf(topFuncs, source, cfg)
	b.WriteString("# Functions: ")
	b.WriteString(strings.Join(funcNames, ", "))
	b.WriteString("\n")

	docstring := moduleDocstring(tree.Root, source, tree.Language)

	name := fileStem(relPath)
	return model.CodeChunk{
		ID:        GenerateID(relPath, name, 0),
		FilePath:  relPath,
		Language:  tree.Language,
		ChunkType: model.ChunkTypeModule,
		Name:      name,
		Content:   b.String(),
		StartLine: 1,
		EndLine:   lineCount,
		Docstring: docstring,
		Metadata: map[string]any{
			"is_overview": true,
		},
	}
}

func importTextsOf(nodes []*lang.Node, source []byte) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(lang.NodeText(n, source)))
	}
	return out
}

func namesOf(nodes []*lang.Node, source []byte, cfg *lang.Config) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if name, ok := lang.NodeName(n, source, cfg); ok {
			out = append(out, name)
		} else {
			out = append(out, "anonymous")
		}
	}
	return out
}

func moduleDocstring(root *lang.Node, source []byte, language model.Language) string {
	if language != model.LanguagePython {
		return ""
	}
	for _, stmt := range root.Children {
		if stmt.Type != "expression_statement" || len(stmt.Children) == 0 {
			continue
		}
		lit := stmt.Children[0]
		if lit.Type != "string" {
			break
		}
		return cleanPythonDocstring(lang.NodeText(lit, source))
	}
	return ""
}

func (c *Chunker) buildImportChunk(relPath string, source []byte, imports []*lang.Node) (model.CodeChunk, bool) {
	if len(imports) == 0 {
		return model.CodeChunk{}, false
	}
	minRow, maxRow := imports[0].StartPoint.Row, imports[0].EndPoint.Row
	var texts []string
	for _, n := range imports {
		if n.StartPoint.Row < minRow {
			minRow = n.StartPoint.Row
		}
		if n.EndPoint.Row > maxRow {
			maxRow = n.EndPoint.Row
		}
		texts = append(texts, lang.NodeText(n, source))
	}
	content := strings.Join(texts, "\n")
	name := "imports"
	return model.CodeChunk{
		ID:        GenerateID(relPath, name, int(minRow)),
		FilePath:  relPath,
		ChunkType: model.ChunkTypeImport,
		Name:      name,
		Content:   content,
		StartLine: int(minRow) + 1,
		EndLine:   int(maxRow) + 1,
		Metadata: map[string]any{
			"import_count": len(imports),
		},
	}, true
}

func (c *Chunker) buildClassChunks(relPath string, source []byte, language model.Language, cfg *lang.Config, classNode *lang.Node) []model.CodeChunk {
	className, ok := lang.NodeName(classNode, source, cfg)
	if !ok {
		className = "anonymous"
	}
	lineCount := int(classNode.EndPoint.Row-classNode.StartPoint.Row) + 1

	methods := methodsOf(classNode, cfg)

	if lineCount <= c.classSplitThreshold || len(methods) == 0 {
		return []model.CodeChunk{c.buildWholeClassChunk(relPath, source, language, cfg, classNode, className)}
	}

	var out []model.CodeChunk
	out = append(out, c.buildClassSummaryChunk(relPath, source, cfg, classNode, className, methods))
	for _, m := range methods {
		out = append(out, c.buildFunctionChunk(relPath, source, language, cfg, m, className, model.ChunkTypeMethod))
	}
	return out
}

func methodsOf(classNode *lang.Node, cfg *lang.Config) []*lang.Node {
	return lang.FindByType(classNode, lang.Set(cfg.FunctionTypes))
}

func (c *Chunker) buildWholeClassChunk(relPath string, source []byte, language model.Language, cfg *lang.Config, classNode *lang.Node, className string) model.CodeChunk {
	parents := lang.ParentClasses(classNode, source, cfg)
	meta := map[string]any{}
	if len(parents) > 0 {
		meta["parent_classes"] = parents
	}
	return model.CodeChunk{
		ID:        GenerateID(relPath, className, int(classNode.StartPoint.Row)),
		FilePath:  relPath,
		Language:  language,
		ChunkType: model.ChunkTypeClass,
		Name:      className,
		Content:   lang.NodeText(classNode, source),
		StartLine: int(classNode.StartPoint.Row) + 1,
		EndLine:   int(classNode.EndPoint.Row) + 1,
		Docstring: Docstring(classNode, source, language),
		Metadata:  withLineCount(meta, int(classNode.EndPoint.Row-classNode.StartPoint.Row)+1),
	}
}

func (c *Chunker) buildClassSummaryChunk(relPath string, source []byte, cfg *lang.Config, classNode *lang.Node, className string, methods []*lang.Node) model.CodeChunk {
	body := classBodyNode(classNode)
	var signature string
	if body != nil {
		signature = strings.TrimSpace(string(source[classNode.StartByte:body.StartByte]))
	} else {
		signature = lang.NodeText(classNode, source)
	}

	methodNames := namesOf(methods, source, cfg)
	content := signature + "\n# Methods: " + strings.Join(methodNames, ", ")

	parents := lang.ParentClasses(classNode, source, cfg)
	meta := map[string]any{
		"is_summary":   true,
		"method_count": len(methods),
	}
	if len(parents) > 0 {
		meta["parent_classes"] = parents
	}

	return model.CodeChunk{
		ID:        GenerateID(relPath, className, int(classNode.StartPoint.Row)),
		FilePath:  relPath,
		ChunkType: model.ChunkTypeClass,
		Name:      className,
		Content:   content,
		StartLine: int(classNode.StartPoint.Row) + 1,
		EndLine:   int(classNode.EndPoint.Row) + 1,
		Metadata:  meta,
	}
}

func classBodyNode(classNode *lang.Node) *lang.Node {
	for _, c := range classNode.Children {
		if strings.Contains(c.Type, "body") || c.Type == "block" {
			return c
		}
	}
	return nil
}

func (c *Chunker) buildFunctionChunk(relPath string, source []byte, language model.Language, cfg *lang.Config, fn *lang.Node, parentName string, chunkType model.ChunkType) model.CodeChunk {
	name, ok := lang.NodeName(fn, source, cfg)
	if !ok {
		name = "anonymous"
	}

	meta := map[string]any{}
	if md, ok := c.metadataByLanguage[language]; ok {
		for k, v := range md.Extract(fn, source) {
			meta[k] = v
		}
	}

	chunk := model.CodeChunk{
		ID:        GenerateID(relPath, name, int(fn.StartPoint.Row)),
		FilePath:  relPath,
		Language:  language,
		ChunkType: chunkType,
		Name:      name,
		Content:   lang.NodeText(fn, source),
		StartLine: int(fn.StartPoint.Row) + 1,
		EndLine:   int(fn.EndPoint.Row) + 1,
		Docstring: Docstring(fn, source, language),
		Metadata:  meta,
	}
	if chunkType == model.ChunkTypeMethod {
		chunk.ParentName = parentName
	}
	return chunk
}

func withLineCount(meta map[string]any, lineCount int) map[string]any {
	meta["line_count"] = strconv.Itoa(lineCount)
	return meta
}
