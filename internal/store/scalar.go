package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	"github.com/codewiki-dev/codewiki/internal/model"
)

// scalarStore persists chunk rows (everything except the embedding vector,
// which lives in the ANN index) in SQLite, following the teacher's
// WAL-mode, single-writer, busy-timeout conventions for safe concurrent
// access from the watcher and CLI at once.
type scalarStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

func newScalarStore(path string) (*scalarStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create scalar store directory: %w", err)
		}
		if err := validateSQLiteIntegrity(path); err != nil {
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open scalar store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &scalarStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init scalar schema: %w", err)
	}
	return s, nil
}

// validateSQLiteIntegrity runs PRAGMA integrity_check read-only before the
// real connection opens, so a corrupted file gets cleared instead of
// wedging the writer. A missing file is not corruption.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for integrity check: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("scalar store corrupted: %s", result)
	}
	return nil
}

func (s *scalarStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		file_path   TEXT NOT NULL,
		language    TEXT NOT NULL,
		chunk_type  TEXT NOT NULL,
		name        TEXT NOT NULL,
		content     TEXT NOT NULL,
		start_line  INTEGER NOT NULL,
		end_line    INTEGER NOT NULL,
		docstring   TEXT NOT NULL DEFAULT '',
		parent_name TEXT NOT NULL DEFAULT '',
		metadata    TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_path  ON chunks(file_path);
	CREATE INDEX IF NOT EXISTS idx_chunks_language   ON chunks(language);
	CREATE INDEX IF NOT EXISTS idx_chunks_chunk_type ON chunks(chunk_type);
	CREATE INDEX IF NOT EXISTS idx_chunks_name       ON chunks(name);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *scalarStore) upsert(ctx context.Context, chunks []model.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scalar upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file_path, language, chunk_type, name, content, start_line, end_line, docstring, parent_name, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_path=excluded.file_path, language=excluded.language, chunk_type=excluded.chunk_type,
			name=excluded.name, content=excluded.content, start_line=excluded.start_line,
			end_line=excluded.end_line, docstring=excluded.docstring, parent_name=excluded.parent_name,
			metadata=excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("prepare scalar upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata for %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.FilePath, string(c.Language), string(c.ChunkType),
			c.Name, c.Content, c.StartLine, c.EndLine, c.Docstring, c.ParentName, string(meta)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *scalarStore) getByID(ctx context.Context, id string) (model.CodeChunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT id, file_path, language, chunk_type, name, content, start_line, end_line, docstring, parent_name, metadata FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return model.CodeChunk{}, false, nil
	}
	if err != nil {
		return model.CodeChunk{}, false, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return c, true, nil
}

func (s *scalarStore) getManyByID(ctx context.Context, ids []string) (map[string]model.CodeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, file_path, language, chunk_type, name, content, start_line, end_line, docstring, parent_name, metadata FROM chunks WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks by id: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.CodeChunk, len(ids))
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

func (s *scalarStore) getByFile(ctx context.Context, relPath string) ([]model.CodeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, file_path, language, chunk_type, name, content, start_line, end_line, docstring, parent_name, metadata FROM chunks WHERE file_path = ? ORDER BY start_line`, relPath)
	if err != nil {
		return nil, fmt.Errorf("get chunks by file: %w", err)
	}
	defer rows.Close()

	var out []model.CodeChunk
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *scalarStore) deleteByFile(ctx context.Context, relPath string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE file_path = ?`, relPath)
	if err != nil {
		return nil, fmt.Errorf("select chunk ids for delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, relPath); err != nil {
		return nil, fmt.Errorf("delete chunks for file %s: %w", relPath, err)
	}
	return ids, nil
}

func (s *scalarStore) stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.RowCount); err != nil {
		return st, fmt.Errorf("count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT file_path) FROM chunks`).Scan(&st.UniqueFiles); err != nil {
		return st, fmt.Errorf("count distinct files: %w", err)
	}
	return st, nil
}

func (s *scalarStore) close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row *sql.Row) (model.CodeChunk, error) {
	return scanInto(row)
}

func scanChunkRows(rows *sql.Rows) (model.CodeChunk, error) {
	return scanInto(rows)
}

func scanInto(r rowScanner) (model.CodeChunk, error) {
	var c model.CodeChunk
	var language, chunkType, metaJSON string
	if err := r.Scan(&c.ID, &c.FilePath, &language, &chunkType, &c.Name, &c.Content,
		&c.StartLine, &c.EndLine, &c.Docstring, &c.ParentName, &metaJSON); err != nil {
		return model.CodeChunk{}, err
	}
	c.Language = model.Language(language)
	c.ChunkType = model.ChunkType(chunkType)
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return model.CodeChunk{}, fmt.Errorf("unmarshal metadata for %s: %w", c.ID, err)
		}
	}
	return c, nil
}
