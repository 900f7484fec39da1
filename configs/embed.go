// Package configs provides the embedded configuration templates written
// to disk by `codewiki init` and `codewiki config init`.
//
// Templates are embedded at build time with //go:embed, so they ship in
// every distribution (go install, binary release) without needing a
// separate data directory alongside the binary.
package configs

import _ "embed"

// UserConfigTemplate seeds ~/.config/codewiki/config.yaml: machine-wide
// settings (embedding/LLM provider, Ollama host) that apply across every
// project on this machine, per internal/config.Load's precedence order.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate seeds .codewiki.yaml at a repository's root:
// project-specific overrides (indexer excludes, hybrid search weights,
// chunking thresholds) that get version-controlled with the project.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
