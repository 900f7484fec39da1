package research

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cwerrors "github.com/codewiki-dev/codewiki/internal/errors"
	"github.com/codewiki-dev/codewiki/internal/llm"
	"github.com/codewiki-dev/codewiki/internal/model"
)

const noRelevantCodeMessage = "I couldn't find any relevant code in this repository to answer that question."

type decomposeResponse struct {
	SubQuestions []struct {
		Question string `json:"question"`
		Category string `json:"category"`
	} `json:"sub_questions"`
}

type gapAnalysisResponse struct {
	Gaps            []string `json:"gaps"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// Run executes the five-state machine for one question. cancel is polled
// before each state; progress receives a "started" event, one completion
// event after each of decompose, retrieve, gap analysis and follow-up
// retrieval, a "synthesis_started" event, and a final "complete" event.
// Both callbacks are optional (nil is fine).
func (p *Pipeline) Run(ctx context.Context, question string, cancel CancelFunc, progress ProgressFunc) (model.DeepResearchResult, error) {
	emit(progress, ProgressEvent{StepType: "started", Message: "starting research"})

	if err := checkCancel(cancel, "decompose"); err != nil {
		return model.DeepResearchResult{}, err
	}
	decomposeStart := time.Now()
	subQuestions := p.decompose(ctx, question)
	trace := []model.ResearchStep{{
		StepType:    model.StepDecomposition,
		Description: "decomposed question into sub-questions",
		DurationMS:  time.Since(decomposeStart).Milliseconds(),
	}}
	emit(progress, ProgressEvent{Step: 1, StepType: "decomposition_complete", SubQuestions: len(subQuestions), DurationMS: trace[0].DurationMS})

	if err := checkCancel(cancel, "retrieve"); err != nil {
		return model.DeepResearchResult{}, err
	}
	retrieveStart := time.Now()
	queries := make([]string, len(subQuestions))
	for i, sq := range subQuestions {
		queries[i] = sq.Question
	}
	if len(queries) == 0 {
		// No sub-questions (e.g. a decompose parse failure): retrieve for
		// the original question so gap analysis still has context to review.
		queries = []string{question}
	}
	initial := p.fanOutSearch(ctx, queries, p.cfg.ChunksPerSubquestion)
	trace = append(trace, model.ResearchStep{
		StepType:    model.StepRetrieval,
		Description: "retrieved initial context",
		DurationMS:  time.Since(retrieveStart).Milliseconds(),
	})
	emit(progress, ProgressEvent{Step: 2, StepType: "retrieval_complete", ChunkCount: len(initial), DurationMS: trace[1].DurationMS})

	if err := checkCancel(cancel, "gap_analysis"); err != nil {
		return model.DeepResearchResult{}, err
	}
	gapStart := time.Now()
	var followUps []string
	if len(initial) == 0 {
		followUps = []string{question}
	} else {
		followUps = p.gapAnalysis(ctx, question, subQuestions, initial)
	}
	trace = append(trace, model.ResearchStep{
		StepType:    model.StepGapAnalysis,
		Description: "identified gaps in retrieved context",
		DurationMS:  time.Since(gapStart).Milliseconds(),
	})
	emit(progress, ProgressEvent{Step: 3, StepType: "gap_analysis_complete", FollowUpQueries: followUps, DurationMS: trace[2].DurationMS})

	var additional []model.SearchResult
	if len(followUps) > 0 {
		if err := checkCancel(cancel, "follow_up_retrieve"); err != nil {
			return model.DeepResearchResult{}, err
		}
		followUpStart := time.Now()
		limit := p.cfg.ChunksPerSubquestion - 2
		if limit < 3 {
			limit = 3
		}
		additional = p.fanOutSearch(ctx, followUps, limit)
		emit(progress, ProgressEvent{Step: 4, StepType: "followup_complete", ChunkCount: len(additional), DurationMS: time.Since(followUpStart).Milliseconds()})
	}

	prepared := dedupeByChunkID(initial, additional, p.cfg.MaxTotalChunks)

	if err := checkCancel(cancel, "synthesize"); err != nil {
		return model.DeepResearchResult{}, err
	}
	synthStart := time.Now()
	emit(progress, ProgressEvent{Step: 5, StepType: "synthesis_started", ChunkCount: len(prepared)})
	answer := p.synthesize(ctx, question, subQuestions, prepared)
	trace = append(trace, model.ResearchStep{
		StepType:    model.StepSynthesis,
		Description: "synthesized answer from prepared context",
		DurationMS:  time.Since(synthStart).Milliseconds(),
	})

	sources := make([]model.SourceReference, len(prepared))
	for i, r := range prepared {
		sources[i] = model.SourceReference{
			FilePath:       r.Chunk.FilePath,
			StartLine:      r.Chunk.StartLine,
			EndLine:        r.Chunk.EndLine,
			ChunkType:      r.Chunk.ChunkType,
			Name:           r.Chunk.Name,
			RelevanceScore: r.Score,
		}
	}

	result := model.DeepResearchResult{
		Question:            question,
		Answer:              answer,
		SubQuestions:        subQuestions,
		Sources:             sources,
		ReasoningTrace:       trace,
		TotalChunksAnalyzed: len(prepared),
		TotalLLMCalls:       3,
	}
	emit(progress, ProgressEvent{Step: 6, StepType: "complete", ChunkCount: len(prepared), DurationMS: time.Since(decomposeStart).Milliseconds()})
	return result, nil
}

// decompose implements spec.md §4.8's Decompose state. A parsing failure
// (malformed JSON, no sub_questions array) yields an empty slice; the
// caller still runs gap analysis against the original question.
func (p *Pipeline) decompose(ctx context.Context, question string) []model.SubQuestion {
	raw, err := p.llmProvider.Generate(ctx, decomposeUserPrompt(question), llm.GenerateOptions{SystemPrompt: decomposeSystemPrompt})
	if err != nil {
		slog.Warn("research: decompose call failed", slog.String("error", err.Error()))
		return nil
	}

	obj, ok := extractFirstJSONObject(raw)
	if !ok {
		return nil
	}
	var parsed decomposeResponse
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil
	}

	subQuestions := make([]model.SubQuestion, 0, len(parsed.SubQuestions))
	for _, sq := range parsed.SubQuestions {
		if sq.Question == "" {
			continue
		}
		subQuestions = append(subQuestions, model.SubQuestion{
			Question: sq.Question,
			Category: model.NormalizeCategory(sq.Category),
		})
		if len(subQuestions) >= p.cfg.MaxSubQuestions {
			break
		}
	}
	return subQuestions
}

// gapAnalysis implements spec.md §4.8's Gap analysis state.
func (p *Pipeline) gapAnalysis(ctx context.Context, question string, subQuestions []model.SubQuestion, retrieved []model.SearchResult) []string {
	summary := groupedSummary(retrieved)
	raw, err := p.llmProvider.Generate(ctx, gapAnalysisUserPrompt(question, subQuestions, summary), llm.GenerateOptions{SystemPrompt: gapAnalysisSystemPrompt})
	if err != nil {
		slog.Warn("research: gap analysis call failed", slog.String("error", err.Error()))
		return nil
	}

	obj, ok := extractFirstJSONObject(raw)
	if !ok {
		return nil
	}
	var parsed gapAnalysisResponse
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil
	}

	queries := make([]string, 0, len(parsed.FollowUpQueries))
	for _, q := range parsed.FollowUpQueries {
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) >= p.cfg.MaxFollowUpQueries {
			break
		}
	}
	return queries
}

// synthesize implements spec.md §4.8's Synthesize state.
func (p *Pipeline) synthesize(ctx context.Context, question string, subQuestions []model.SubQuestion, prepared []model.SearchResult) string {
	if len(prepared) == 0 {
		return noRelevantCodeMessage
	}

	uniqueFiles := make(map[string]bool, len(prepared))
	for _, r := range prepared {
		uniqueFiles[r.Chunk.FilePath] = true
	}

	prompt := synthesisUserPrompt(question, subQuestions, len(uniqueFiles), len(prepared), buildFullContext(prepared))
	answer, err := p.llmProvider.Generate(ctx, prompt, llm.GenerateOptions{
		SystemPrompt: synthesisSystemPrompt,
		Temperature:  p.cfg.SynthesisTemperature,
		MaxTokens:    p.cfg.SynthesisMaxTokens,
	})
	if err != nil {
		slog.Warn("research: synthesis call failed", slog.String("error", err.Error()))
		return noRelevantCodeMessage
	}
	return answer
}

func checkCancel(cancel CancelFunc, step string) error {
	if cancel != nil && cancel() {
		return cwerrors.Cancelled(step)
	}
	return nil
}

func emit(progress ProgressFunc, event ProgressEvent) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("research: progress callback panicked", slog.Any("recover", r))
		}
	}()
	progress(event)
}
