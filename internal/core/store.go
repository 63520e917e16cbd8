package core

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed persistence layer for the response cache and the
// decision history.
type Store struct{ db *sql.DB }

//go:embed migrations/*.sql
var migrationFS embed.FS

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("db not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CacheRow is a persisted cache entry. Response holds the cached answer as
// JSON; expiry is enforced at read time.
type CacheRow struct {
	Key         string
	Provider    string
	Model       string
	Response    []byte
	TotalTokens int
	SizeBytes   int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// GetCacheEntry returns the entry for key, skipping expired rows.
func (s *Store) GetCacheEntry(ctx context.Context, key string, now time.Time) (*CacheRow, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, provider, model, response, total_tokens, size_bytes, created_at, expires_at
		 FROM cache_entries WHERE key = ? AND expires_at > ?`, key, now.Unix())

	var r CacheRow
	var created, expires int64
	err := row.Scan(&r.Key, &r.Provider, &r.Model, &r.Response, &r.TotalTokens, &r.SizeBytes, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}
	r.CreatedAt = time.Unix(created, 0)
	r.ExpiresAt = time.Unix(expires, 0)
	return &r, true, nil
}

// PutCacheEntry inserts or replaces a cache entry.
func (s *Store) PutCacheEntry(ctx context.Context, r CacheRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, provider, model, response, total_tokens, size_bytes, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   response = excluded.response,
		   total_tokens = excluded.total_tokens,
		   size_bytes = excluded.size_bytes,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		r.Key, r.Provider, r.Model, r.Response, r.TotalTokens, r.SizeBytes,
		r.CreatedAt.Unix(), r.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes rows past their expiry and reports how many.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return res.RowsAffected()
}

// PurgeCache removes all cache entries and reports how many.
func (s *Store) PurgeCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// CacheUsage reports the persisted entry count and total response bytes.
func (s *Store) CacheUsage(ctx context.Context) (entries int64, bytes int64, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_entries`)
	if err := row.Scan(&entries, &bytes); err != nil {
		return 0, 0, fmt.Errorf("cache usage: %w", err)
	}
	return entries, bytes, nil
}

// SaveDecision persists a completed decision with its answers in one
// transaction.
func (s *Store) SaveDecision(ctx context.Context, d *Decision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO decisions (id, question, summary, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Question, d.Summary, string(d.Status), d.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	for _, a := range d.Answers {
		errText := ""
		if a.Err != nil {
			errText = a.Err.Error()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO answers (id, decision_id, role, provider, model, content, prompt_tokens, completion_tokens, cached, duration_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, d.ID, a.Role, a.Provider, a.Model, a.Content,
			a.Usage.PromptTokens, a.Usage.CompletionTokens, boolToInt(a.Cached),
			a.Duration.Milliseconds(), errText)
		if err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	return tx.Commit()
}

// DecisionSummary is one row of the decision history listing.
type DecisionSummary struct {
	ID        string
	Question  string
	Status    string
	CreatedAt time.Time
}

// ListDecisions returns the most recent decisions, newest first.
func (s *Store) ListDecisions(ctx context.Context, limit int) ([]DecisionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, status, created_at FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionSummary
	for rows.Next() {
		var d DecisionSummary
		var created int64
		if err := rows.Scan(&d.ID, &d.Question, &d.Status, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.CreatedAt = time.Unix(created, 0)
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
