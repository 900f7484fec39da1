package research

import (
	"fmt"
	"strings"

	"github.com/codewiki-dev/codewiki/internal/model"
)

const decomposeSystemPrompt = `You are a research planner for a codebase question-answering system. Given a question about a software repository, break it into a small number of focused sub-questions that together cover what is needed to answer it fully.

Respond with a single JSON object of the shape:
{"sub_questions": [{"question": "...", "category": "structure|flow|dependencies|impact|comparison"}]}

Use only the categories listed. If the question is already narrow, return a single sub-question that restates it.`

func decomposeUserPrompt(question string) string {
	return fmt.Sprintf("Question: %s", question)
}

const gapAnalysisSystemPrompt = `You are reviewing retrieved code context for a research question. Identify what is still missing and propose follow-up search queries that would close the gap.

Respond with a single JSON object of the shape:
{"gaps": ["..."], "follow_up_queries": ["..."]}

Keep follow-up queries short and specific to the codebase. Return an empty array for either field if there is nothing to add.`

func gapAnalysisUserPrompt(question string, subQuestions []model.SubQuestion, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n\n", question)
	b.WriteString("Sub-questions considered:\n")
	for _, sq := range subQuestions {
		fmt.Fprintf(&b, "- [%s] %s\n", sq.Category, sq.Question)
	}
	b.WriteString("\nRetrieved context summary:\n")
	b.WriteString(summary)
	return b.String()
}

const synthesisSystemPrompt = `You are an expert software engineer answering a question about a codebase using only the provided source excerpts. Cite file paths and line ranges when referencing specific code. If the excerpts do not fully answer the question, say so plainly rather than speculating.`

func synthesisUserPrompt(question string, subQuestions []model.SubQuestion, uniqueFiles, chunkCount int, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	if len(subQuestions) > 0 {
		b.WriteString("Sub-questions investigated:\n")
		for _, sq := range subQuestions {
			fmt.Fprintf(&b, "- %s\n", sq.Question)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Context drawn from %d chunk(s) across %d file(s):\n\n", chunkCount, uniqueFiles)
	b.WriteString(context)
	return b.String()
}

// groupedSummary implements the gap-analysis summarization rule: group
// results per file, at most 3 items per file, at most 10 files shown.
func groupedSummary(results []model.SearchResult) string {
	type fileGroup struct {
		path  string
		items []model.SearchResult
	}
	order := make([]string, 0)
	groups := make(map[string]*fileGroup)
	for _, r := range results {
		g, ok := groups[r.Chunk.FilePath]
		if !ok {
			g = &fileGroup{path: r.Chunk.FilePath}
			groups[r.Chunk.FilePath] = g
			order = append(order, r.Chunk.FilePath)
		}
		if len(g.items) < 3 {
			g.items = append(g.items, r)
		}
	}

	var b strings.Builder
	shown := 0
	for _, path := range order {
		if shown >= 10 {
			break
		}
		g := groups[path]
		fmt.Fprintf(&b, "%s:\n", path)
		for _, item := range g.items {
			fmt.Fprintf(&b, "  - %s %q (lines %d-%d)\n", item.Chunk.ChunkType, item.Chunk.Name, item.Chunk.StartLine, item.Chunk.EndLine)
		}
		shown++
	}
	return b.String()
}

// chunkFrame renders one chunk the way the synthesis prompt's context
// block frames it: "File: path:start-end | Type: T | Name: N" followed by
// a fenced code block.
func chunkFrame(c model.CodeChunk) string {
	return fmt.Sprintf("File: %s:%d-%d | Type: %s | Name: %s\n```\n%s\n```", c.FilePath, c.StartLine, c.EndLine, c.ChunkType, c.Name, c.Content)
}

func buildFullContext(results []model.SearchResult) string {
	frames := make([]string, len(results))
	for i, r := range results {
		frames[i] = chunkFrame(r.Chunk)
	}
	return strings.Join(frames, "\n\n---\n\n")
}
