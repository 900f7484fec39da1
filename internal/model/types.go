// Package model defines the shared data types that flow between the parser,
// chunker, vector store, indexer, and research pipeline.
package model

import "time"

// Language is the closed set of source languages the parser recognizes.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
	LanguageJava       Language = "java"
	LanguageC          Language = "c"
	LanguageCPP        Language = "cpp"
	LanguageRuby       Language = "ruby"
	LanguagePHP        Language = "php"
	LanguageKotlin     Language = "kotlin"
	LanguageCSharp     Language = "csharp"
	LanguageSwift      Language = "swift"
)

// ChunkType is the closed set of chunk kinds the chunker emits.
type ChunkType string

const (
	ChunkTypeModule   ChunkType = "module"
	ChunkTypeImport   ChunkType = "import"
	ChunkTypeClass    ChunkType = "class"
	ChunkTypeMethod   ChunkType = "method"
	ChunkTypeFunction ChunkType = "function"
)

// CodeChunk is a contiguous semantic unit of source code.
type CodeChunk struct {
	ID         string
	FilePath   string
	Language   Language
	ChunkType  ChunkType
	Name       string
	Content    string
	StartLine  int
	EndLine    int
	Docstring  string
	ParentName string
	Metadata   map[string]any
}

// FileInfo describes a scanned file. Created on scan, destroyed on next scan.
type FileInfo struct {
	RelPath      string
	AbsolutePath string
	Language     Language
	SHA256Hex    string
	SizeBytes    int64
	ModTime      time.Time
}

// FileStatus is the per-file bookkeeping entry inside IndexStatus.
type FileStatus struct {
	SHA256   string   `json:"sha256"`
	ChunkIDs []string `json:"chunk_ids"`
}

// IndexStatus is the persisted state of a repository's index.
type IndexStatus struct {
	IndexedAt     float64               `json:"indexed_at"`
	TotalFiles    int                   `json:"total_files"`
	TotalChunks   int                   `json:"total_chunks"`
	SchemaVersion int                   `json:"schema_version"`
	Files         map[string]FileStatus `json:"files"`
}

// SearchResult pairs a chunk with its relevance score in [0,1].
type SearchResult struct {
	Chunk CodeChunk
	Score float64
}

// SubQuestionCategory is the closed set of decomposition categories.
type SubQuestionCategory string

const (
	CategoryStructure    SubQuestionCategory = "structure"
	CategoryFlow         SubQuestionCategory = "flow"
	CategoryDependencies SubQuestionCategory = "dependencies"
	CategoryImpact       SubQuestionCategory = "impact"
	CategoryComparison   SubQuestionCategory = "comparison"
)

// NormalizeCategory maps any unknown category string to CategoryStructure.
func NormalizeCategory(raw string) SubQuestionCategory {
	switch SubQuestionCategory(raw) {
	case CategoryStructure, CategoryFlow, CategoryDependencies, CategoryImpact, CategoryComparison:
		return SubQuestionCategory(raw)
	default:
		return CategoryStructure
	}
}

// SubQuestion is a narrower question produced by the decomposition step.
type SubQuestion struct {
	Question string              `json:"question"`
	Category SubQuestionCategory `json:"category"`
}

// ResearchStepType names the four kinds of steps recorded in the trace.
type ResearchStepType string

const (
	StepDecomposition ResearchStepType = "decomposition"
	StepRetrieval     ResearchStepType = "retrieval"
	StepGapAnalysis   ResearchStepType = "gap_analysis"
	StepSynthesis     ResearchStepType = "synthesis"
)

// ResearchStep is one entry in a DeepResearchResult's reasoning trace.
type ResearchStep struct {
	StepType    ResearchStepType `json:"step_type"`
	Description string           `json:"description"`
	DurationMS  int64            `json:"duration_ms"`
}

// ResearchProgressType is the closed set of progress event kinds.
type ResearchProgressType string

const (
	ProgressStarted               ResearchProgressType = "started"
	ProgressDecompositionComplete ResearchProgressType = "decomposition_complete"
	ProgressRetrievalComplete     ResearchProgressType = "retrieval_complete"
	ProgressGapAnalysisComplete   ResearchProgressType = "gap_analysis_complete"
	ProgressFollowupComplete      ResearchProgressType = "followup_complete"
	ProgressSynthesisStarted      ResearchProgressType = "synthesis_started"
	ProgressComplete              ResearchProgressType = "complete"
)

// ResearchProgress is one event emitted on the pipeline's progress channel.
type ResearchProgress struct {
	Step     int
	StepType ResearchProgressType
	Message  string

	SubQuestions     []SubQuestion
	ChunkCount       int
	FollowUpQueries  []string
	DurationMS       int64
}

// SourceReference cites a chunk that contributed to a research answer.
type SourceReference struct {
	FilePath       string
	StartLine      int
	EndLine        int
	ChunkType      ChunkType
	Name           string
	RelevanceScore float64
}

// DeepResearchResult is the terminal output of the Research Pipeline.
type DeepResearchResult struct {
	Question            string
	Answer               string
	SubQuestions         []SubQuestion
	Sources              []SourceReference
	ReasoningTrace       []ResearchStep
	TotalChunksAnalyzed  int
	TotalLLMCalls        int
}

// CacheRecord is one row of the LLM response cache.
type CacheRecord struct {
	ID           string
	ExactHash    string
	Vector       []float32
	SystemPrompt string
	Prompt       string
	Response     string
	Temperature  float64
	ModelName    string
	CreatedAt    time.Time
	HitCount     int
	LastHitAt    time.Time
	TTLSeconds   int
}
