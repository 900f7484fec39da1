package lang

import (
	"strings"

	"github.com/codewiki-dev/codewiki/internal/model"
)

// NodeName extracts a declaration node's identifier using the language's
// configured name field, handling the C-family's nested-declarator shape
// and falling back to "anonymous" detection (returns ok=false) for
// constructs tree-sitter has no name for (e.g. anonymous JS functions).
func NodeName(n *Node, source []byte, cfg *Config) (string, bool) {
	if n == nil || cfg.NameField == "" {
		return "", false
	}
	field := ChildByFieldName(n, cfg.NameField)
	if field == nil {
		return "", false
	}
	// C/C++ function declarators nest the identifier inside a
	// function_declarator (possibly several levels for pointers).
	for field.Type == "function_declarator" || field.Type == "pointer_declarator" {
		inner := ChildByFieldName(field, "declarator")
		if inner == nil {
			break
		}
		field = inner
	}
	name := NodeText(field, source)
	if name == "" {
		return "", false
	}
	return name, true
}

// Docstring implements the Python branch of the three-branch extraction
// rule from spec.md §4.1. The JS/TS branch (preceding "/**" block comment)
// needs access to the node's sibling list to find the preceding comment,
// so callers in that case use PrecedingComment directly from the walk that
// already holds the parent's Children slice.
func Docstring(n *Node, source []byte, language model.Language) string {
	switch language {
	case model.LanguagePython:
		return pythonDocstring(n, source)
	default:
		return ""
	}
}

// pythonDocstring finds the function/class's body block and returns the
// first expression_statement whose sole child is a string literal.
func pythonDocstring(n *Node, source []byte) string {
	body := FindChildByType(n, "block")
	if body == nil {
		return ""
	}
	for _, stmt := range body.Children {
		if stmt.Type != "expression_statement" || len(stmt.Children) == 0 {
			continue
		}
		lit := stmt.Children[0]
		if lit.Type != "string" {
			break // docstring, if present, must be the first statement
		}
		text := NodeText(lit, source)
		return cleanPythonDocstring(text)
	}
	return ""
}

func cleanPythonDocstring(raw string) string {
	s := strings.TrimSpace(raw)
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// PrecedingComment returns the text of the last child in siblings that
// appears immediately before target and is a "comment" node starting with
// "/**", or "" if none qualifies. Callers walk a parent's Children slice.
func PrecedingComment(siblings []*Node, target *Node, source []byte) string {
	idx := -1
	for i, s := range siblings {
		if s == target {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}
	prev := siblings[idx-1]
	if prev.Type != "comment" {
		return ""
	}
	text := NodeText(prev, source)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimSuffix(text, "*/")
	lines := strings.Split(text, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "*")
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, " ")
}

// ParentClasses extracts the heritage/superclass/interfaces text for a
// class-like node using the language's grammar-specific field, per
// spec.md §4.2. Returns nil when the language has no such construct or the
// node declares no parents.
func ParentClasses(n *Node, source []byte, cfg *Config) []string {
	if n == nil || cfg.ParentClassField == "" {
		return nil
	}
	field := ChildByFieldName(n, cfg.ParentClassField)
	if field == nil {
		// Some grammars (e.g. Python's argument_list, C++'s base_class_clause)
		// expose the heritage info as a direct-type child rather than a
		// named field; fall back to a type-based search.
		field = FindChildByType(n, cfg.ParentClassField)
	}
	if field == nil {
		return nil
	}
	var names []string
	Walk(field, func(w *Node) bool {
		switch w.Type {
		case "identifier", "type_identifier", "constant", "scope_resolution",
			"qualified_identifier", "generic_name", "user_type":
			names = append(names, NodeText(w, source))
			return false
		}
		return true
	})
	return names
}

// InsideClass reports whether n is nested inside any of the language's
// class-like node types. ancestors is the stack of Node pointers from root to n,
// supplied by the caller's traversal (Node carries no parent link).
func InsideClass(ancestors []*Node, cfg *Config) bool {
	classTypes := Set(cfg.ClassTypes)
	for _, a := range ancestors {
		if classTypes[a.Type] {
			return true
		}
	}
	return false
}
