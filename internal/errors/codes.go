// Package errors provides the structured error taxonomy for codewiki.
//
// Kinds map directly onto the ten error kinds of the component design:
//   - Parser:       UnsupportedFile, ParseWarning
//   - Embedding:    EmbeddingFailure
//   - LLM:          LLMConnectionError, LLMModelNotFound
//   - LLM Cache:    CacheCorruption
//   - Vector Store: VectorStoreIO
//   - Research:     CancelledError, PartialSubQueryFailure
//   - Indexer:      SchemaTooNew
package errors

// Kind is the closed set of error kinds raised by the core components.
type Kind string

const (
	KindUnsupportedFile        Kind = "UnsupportedFile"
	KindParseWarning           Kind = "ParseWarning"
	KindEmbeddingFailure       Kind = "EmbeddingFailure"
	KindLLMConnectionError     Kind = "LLMConnectionError"
	KindLLMModelNotFound       Kind = "LLMModelNotFound"
	KindCacheCorruption        Kind = "CacheCorruption"
	KindVectorStoreIO          Kind = "VectorStoreIO"
	KindCancelledError         Kind = "CancelledError"
	KindSchemaTooNew           Kind = "SchemaTooNew"
	KindPartialSubQueryFailure Kind = "PartialSubQueryFailure"
)

// Category groups kinds for logging/metrics purposes.
type Category string

const (
	CategoryParser   Category = "PARSER"
	CategoryProvider Category = "PROVIDER"
	CategoryCache    Category = "CACHE"
	CategoryStore    Category = "STORE"
	CategoryResearch Category = "RESEARCH"
	CategoryIndex    Category = "INDEX"
)

// Severity mirrors the recovery column of the component design's error table.
type Severity string

const (
	SeverityIgnore  Severity = "IGNORE"  // skip silently / proceed
	SeverityWarning Severity = "WARNING" // retry, log and continue
	SeverityError   Severity = "ERROR"   // surface to caller
	SeverityFatal   Severity = "FATAL"   // terminal, refuse to run
)

func categoryOf(k Kind) Category {
	switch k {
	case KindUnsupportedFile, KindParseWarning:
		return CategoryParser
	case KindEmbeddingFailure, KindLLMConnectionError, KindLLMModelNotFound:
		return CategoryProvider
	case KindCacheCorruption:
		return CategoryCache
	case KindVectorStoreIO:
		return CategoryStore
	case KindCancelledError, KindPartialSubQueryFailure:
		return CategoryResearch
	case KindSchemaTooNew:
		return CategoryIndex
	default:
		return CategoryIndex
	}
}

func severityOf(k Kind) Severity {
	switch k {
	case KindUnsupportedFile, KindParseWarning, KindCacheCorruption:
		return SeverityIgnore
	case KindEmbeddingFailure, KindLLMConnectionError:
		return SeverityWarning
	case KindLLMModelNotFound, KindSchemaTooNew:
		return SeverityFatal
	case KindVectorStoreIO, KindCancelledError, KindPartialSubQueryFailure:
		return SeverityError
	default:
		return SeverityError
	}
}

func retryableOf(k Kind) bool {
	switch k {
	case KindEmbeddingFailure, KindLLMConnectionError:
		return true
	default:
		return false
	}
}
