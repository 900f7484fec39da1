package chunk

import (
	"strings"

	"github.com/codewiki-dev/codewiki/internal/lang"
)

// LanguageMetadata extracts language-specific metadata for a function or
// method node. The default implementation returns an empty map; per
// spec.md §9's design note, only Python has a non-trivial implementation
// in v1 (parameter types, defaults, return type, is_async, raised
// exceptions). Decorators are not extracted.
type LanguageMetadata interface {
	Extract(n *lang.Node, source []byte) map[string]any
}

type noopMetadata struct{}

func (noopMetadata) Extract(*lang.Node, []byte) map[string]any { return map[string]any{} }

type pythonMetadata struct{}

// Extract implements the Python-only metadata extraction: parameter
// types/defaults, return type, is_async, and raises (exception identifiers
// collected from raise statements in the function's own body, not nested
// function bodies). Parameters named self/cls are excluded. The result has
// no decorators key: decorators sit on the enclosing decorated_definition
// node, which Extract is not given.
func (pythonMetadata) Extract(n *lang.Node, source []byte) map[string]any {
	meta := map[string]any{}

	isAsync := false
	for _, c := range n.Children {
		if c.Type == "async" {
			isAsync = true
			break
		}
	}
	meta["is_async"] = isAsync

	params := lang.FindChildByType(n, "parameters")
	paramTypes := map[string]string{}
	paramDefaults := map[string]string{}
	if params != nil {
		for _, p := range params.Children {
			name, typ, def, ok := parsePythonParam(p, source)
			if !ok || name == "self" || name == "cls" {
				continue
			}
			if typ != "" {
				paramTypes[name] = typ
			}
			if def != "" {
				paramDefaults[name] = def
			}
		}
	}
	if len(paramTypes) > 0 {
		meta["parameter_types"] = paramTypes
	}
	if len(paramDefaults) > 0 {
		meta["parameter_defaults"] = paramDefaults
	}

	if rt := lang.ChildByFieldName(n, "return_type"); rt != nil {
		meta["return_type"] = lang.NodeText(rt, source)
	}

	if raises := collectRaises(n, source); len(raises) > 0 {
		meta["raises"] = raises
	}

	return meta
}

// DecoratorsOf reads decorator texts from a "decorated_definition" wrapper
// node (tree-sitter-python emits decorators as the wrapper's children
// preceding the actual function/class definition). The chunker does not
// call it, so chunk metadata carries no decorators.
func DecoratorsOf(wrapper *lang.Node, source []byte) []string {
	var out []string
	for _, c := range wrapper.Children {
		if c.Type == "decorator" {
			out = append(out, strings.TrimPrefix(lang.NodeText(c, source), "@"))
		}
	}
	return out
}

func parsePythonParam(p *lang.Node, source []byte) (name, typ, def string, ok bool) {
	switch p.Type {
	case "identifier":
		return lang.NodeText(p, source), "", "", true
	case "typed_parameter":
		id := firstChildOfType(p, "identifier")
		t := lang.ChildByFieldName(p, "type")
		if id == nil {
			return "", "", "", false
		}
		name = lang.NodeText(id, source)
		if t != nil {
			typ = lang.NodeText(t, source)
		}
		return name, typ, "", true
	case "default_parameter":
		nameNode := lang.ChildByFieldName(p, "name")
		valueNode := lang.ChildByFieldName(p, "value")
		if nameNode == nil {
			return "", "", "", false
		}
		name = lang.NodeText(nameNode, source)
		if valueNode != nil {
			def = lang.NodeText(valueNode, source)
		}
		return name, "", def, true
	case "typed_default_parameter":
		nameNode := lang.ChildByFieldName(p, "name")
		typeNode := lang.ChildByFieldName(p, "type")
		valueNode := lang.ChildByFieldName(p, "value")
		if nameNode == nil {
			return "", "", "", false
		}
		name = lang.NodeText(nameNode, source)
		if typeNode != nil {
			typ = lang.NodeText(typeNode, source)
		}
		if valueNode != nil {
			def = lang.NodeText(valueNode, source)
		}
		return name, typ, def, true
	default:
		return "", "", "", false
	}
}

func firstChildOfType(n *lang.Node, t string) *lang.Node {
	for _, c := range n.Children {
		if c.Type == t {
			return c
		}
	}
	return nil
}

// collectRaises walks n's body collecting exception identifiers/attributes
// from raise_statement nodes, skipping any nested function_definition's
// body (raises inside a closure belong to that closure, not n).
func collectRaises(n *lang.Node, source []byte) []string {
	body := lang.FindChildByType(n, "block")
	if body == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	var walk func(node *lang.Node)
	walk = func(node *lang.Node) {
		if node.Type == "function_definition" && node != body {
			return // nested function body is out of scope
		}
		if node.Type == "raise_statement" {
			for _, c := range node.Children {
				if c.Type == "identifier" || c.Type == "attribute" || c.Type == "call" {
					name := strings.TrimSpace(lang.NodeText(c, source))
					if idx := strings.Index(name, "("); idx > 0 {
						name = name[:idx]
					}
					if name != "" && !seen[name] {
						seen[name] = true
						out = append(out, name)
					}
					break
				}
			}
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(body)
	return out
}
