package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// defaultStopWords is the small English stop-word list the teacher ships
// with its BM25 index; it keeps query terms like "the" or "and" from
// drowning out identifier tokens.
var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with",
}

// lexicalBackend is the BM25 full-text contract both sqlite/FTS5 and bleve
// implementations satisfy; Store.lexical is one or the other depending on
// the configured `search.bm25_backend`.
type lexicalBackend interface {
	index(ctx context.Context, docs map[string]string) error
	deleteDocs(ctx context.Context, docIDs []string) error
	search(ctx context.Context, query string, limit int) ([]lexicalResult, error)
	close() error
}

// lexicalIndex is a BM25 full-text index over chunk content, built on
// SQLite FTS5 the same way the teacher's SQLiteBM25Index is: WAL mode for
// concurrent access, and content pre-tokenized with code-aware splitting
// (camelCase/snake_case) before insertion so identifier fragments are
// independently searchable.
type lexicalIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	stopWords map[string]struct{}
}

func newLexicalIndex(path string) (*lexicalIndex, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create lexical index directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	idx := &lexicalIndex{db: db, stopWords: buildStopWordMap(defaultStopWords)}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init lexical schema: %w", err)
	}
	return idx, nil
}

func (l *lexicalIndex) initSchema() error {
	_, err := l.db.Exec(`
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);
	`)
	return err
}

func (l *lexicalIndex) index(ctx context.Context, docs map[string]string) error {
	if len(docs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lexical index tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare lexical delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare lexical insert: %w", err)
	}
	defer ins.Close()

	for docID, content := range docs {
		tokens := filterStopWords(tokenizeCode(content), l.stopWords)
		if _, err := del.ExecContext(ctx, docID); err != nil {
			return fmt.Errorf("delete existing lexical doc %s: %w", docID, err)
		}
		if _, err := ins.ExecContext(ctx, docID, strings.Join(tokens, " ")); err != nil {
			return fmt.Errorf("insert lexical doc %s: %w", docID, err)
		}
	}
	return tx.Commit()
}

func (l *lexicalIndex) deleteDocs(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range docIDs {
		if _, err := l.db.ExecContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`, id); err != nil {
			return fmt.Errorf("delete lexical doc %s: %w", id, err)
		}
	}
	return nil
}

// lexicalResult pairs a doc ID with its rank position (1-based, best
// first); the raw bm25() score is discarded because RRF only needs rank.
type lexicalResult struct {
	DocID string
	Rank  int
}

func (l *lexicalIndex) search(ctx context.Context, query string, limit int) ([]lexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tokens := filterStopWords(tokenizeCode(query), l.stopWords)
	if len(tokens) == 0 {
		return nil, nil
	}
	matchQuery := strings.Join(tokens, " ")

	rows, err := l.db.QueryContext(ctx, `
		SELECT doc_id FROM fts_content WHERE content MATCH ? ORDER BY bm25(fts_content) LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []lexicalResult
	rank := 1
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		out = append(out, lexicalResult{DocID: docID, Rank: rank})
		rank++
	}
	return out, rows.Err()
}

func (l *lexicalIndex) close() error {
	return l.db.Close()
}

var _ lexicalBackend = (*lexicalIndex)(nil)
