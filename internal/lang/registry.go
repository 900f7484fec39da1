package lang

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/codewiki-dev/codewiki/internal/model"
)

// Config is the per-language node-type configuration the chunker and
// extractor dispatch against. One value per member of the closed Language
// enumeration.
type Config struct {
	Language   model.Language
	Extensions []string

	ImportTypes   []string
	ClassTypes    []string
	FunctionTypes []string

	// NameField is the tree-sitter field name holding a declaration's
	// identifier. Empty means NodeName reports no name for the language's
	// nodes.
	NameField string

	// ParentClassField names the grammar-specific node/field that carries
	// superclass/interface information, per spec.md §4.2.
	ParentClassField string
}

// Registry resolves languages by file extension or name and holds the
// compiled tree-sitter grammar for each.
type Registry struct {
	mu        sync.RWMutex
	configs   map[model.Language]*Config
	extToLang map[string]model.Language
	grammars  map[model.Language]*sitter.Language
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide language registry.
func Default() *Registry { return defaultRegistry }

// NewRegistry builds a registry pre-populated with all 13 supported languages.
func NewRegistry() *Registry {
	r := &Registry{
		configs:   make(map[model.Language]*Config),
		extToLang: make(map[string]model.Language),
		grammars:  make(map[model.Language]*sitter.Language),
	}
	r.register(Config{
		Language: model.LanguageGo, Extensions: []string{".go"},
		ImportTypes: []string{"import_declaration"},
		ClassTypes:  []string{"type_declaration"},
		FunctionTypes: []string{"function_declaration", "method_declaration"},
		NameField: "name",
	}, golang.GetLanguage())
	r.register(Config{
		Language: model.LanguagePython, Extensions: []string{".py"},
		ImportTypes:      []string{"import_statement", "import_from_statement"},
		ClassTypes:       []string{"class_definition"},
		FunctionTypes:    []string{"function_definition"},
		NameField:        "name",
		ParentClassField: "argument_list",
	}, python.GetLanguage())
	r.register(Config{
		Language: model.LanguageTypeScript, Extensions: []string{".ts", ".tsx"},
		ImportTypes:      []string{"import_statement"},
		ClassTypes:       []string{"class_declaration", "interface_declaration"},
		FunctionTypes:    []string{"function_declaration", "method_definition"},
		NameField:        "name",
		ParentClassField: "class_heritage",
	}, typescript.GetLanguage())
	r.register(Config{
		Language: model.LanguageJavaScript, Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		ImportTypes:      []string{"import_statement"},
		ClassTypes:       []string{"class_declaration"},
		FunctionTypes:    []string{"function_declaration", "method_definition"},
		NameField:        "name",
		ParentClassField: "class_heritage",
	}, javascript.GetLanguage())
	r.register(Config{
		Language: model.LanguageRust, Extensions: []string{".rs"},
		ImportTypes:   []string{"use_declaration"},
		ClassTypes:    []string{"struct_item", "enum_item", "trait_item"},
		FunctionTypes: []string{"function_item"},
		NameField:     "name",
	}, rust.GetLanguage())
	r.register(Config{
		Language: model.LanguageJava, Extensions: []string{".java"},
		ImportTypes:      []string{"import_declaration"},
		ClassTypes:       []string{"class_declaration", "interface_declaration"},
		FunctionTypes:    []string{"method_declaration", "constructor_declaration"},
		NameField:        "name",
		ParentClassField: "superclass",
	}, java.GetLanguage())
	r.register(Config{
		Language: model.LanguageC, Extensions: []string{".c", ".h"},
		ImportTypes:   []string{"preproc_include"},
		ClassTypes:    []string{"struct_specifier"},
		FunctionTypes: []string{"function_definition"},
		NameField:     "declarator",
	}, c.GetLanguage())
	r.register(Config{
		Language: model.LanguageCPP, Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"},
		ImportTypes:      []string{"preproc_include"},
		ClassTypes:       []string{"class_specifier", "struct_specifier"},
		FunctionTypes:    []string{"function_definition"},
		NameField:        "declarator",
		ParentClassField: "base_class_clause",
	}, cpp.GetLanguage())
	r.register(Config{
		Language: model.LanguageRuby, Extensions: []string{".rb"},
		ImportTypes:      nil, // tree-sitter-ruby has no dedicated import node (require is a call)
		ClassTypes:       []string{"class", "module"},
		FunctionTypes:    []string{"method", "singleton_method"},
		NameField:        "name",
		ParentClassField: "superclass",
	}, ruby.GetLanguage())
	r.register(Config{
		Language: model.LanguagePHP, Extensions: []string{".php"},
		ImportTypes:      []string{"namespace_use_declaration"},
		ClassTypes:       []string{"class_declaration", "interface_declaration"},
		FunctionTypes:    []string{"function_definition", "method_declaration"},
		NameField:        "name",
		ParentClassField: "base_clause",
	}, php.GetLanguage())
	r.register(Config{
		Language: model.LanguageKotlin, Extensions: []string{".kt", ".kts"},
		ImportTypes:      []string{"import_header"},
		ClassTypes:       []string{"class_declaration"},
		FunctionTypes:    []string{"function_declaration"},
		NameField:        "name",
		ParentClassField: "delegation_specifiers",
	}, kotlin.GetLanguage())
	r.register(Config{
		Language: model.LanguageCSharp, Extensions: []string{".cs"},
		ImportTypes:      []string{"using_directive"},
		ClassTypes:       []string{"class_declaration", "interface_declaration"},
		FunctionTypes:    []string{"method_declaration", "constructor_declaration"},
		NameField:        "name",
		ParentClassField: "base_list",
	}, csharp.GetLanguage())
	r.register(Config{
		Language: model.LanguageSwift, Extensions: []string{".swift"},
		ImportTypes:      []string{"import_declaration"},
		ClassTypes:       []string{"class_declaration"},
		FunctionTypes:    []string{"function_declaration"},
		NameField:        "name",
		ParentClassField: "type_inheritance_clause",
	}, swift.GetLanguage())

	// tsx shares the TypeScript Config. Its grammar (JSX syntax inside
	// TypeScript) replaces the TypeScript grammar registered above, so .ts
	// and .tsx files are both parsed with the tsx grammar.
	r.mu.Lock()
	r.extToLang[".tsx"] = model.LanguageTypeScript
	r.grammars[model.LanguageTypeScript] = tsx.GetLanguage()
	r.mu.Unlock()

	return r
}

func (r *Registry) register(cfg Config, grammar *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := cfg
	r.configs[cfg.Language] = &c
	r.grammars[cfg.Language] = grammar
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Language
	}
}

// DetectLanguage is a pure lookup over the frozen extension table.
func (r *Registry) DetectLanguage(path string) (model.Language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.extToLang[ext]
	return l, ok
}

// Config returns the node-type configuration for a language.
func (r *Registry) Config(l model.Language) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[l]
	return c, ok
}

// Grammar returns the compiled tree-sitter grammar for a language.
func (r *Registry) Grammar(l model.Language) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[l]
	return g, ok
}

// Extensions returns every recognized file extension, for scanner globbing.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		out = append(out, ext)
	}
	return out
}
