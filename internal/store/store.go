package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/DesiroReboot/VideoTranslate-Rework/internal"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/dispatch"
	"github.com/DesiroReboot/VideoTranslate-Rework/internal/similarity"
)

// Store is the sqlite-backed audit trail and result memory. Every request,
// every node candidate and every final selection is persisted so past
// decisions can be reconstructed offline.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transduction_requests (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		source_lang TEXT,
		target_lang TEXT,
		source_tag TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS node_results (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		node_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		native_confidence REAL,
		latency_ms INTEGER,
		coefficient REAL,
		excluded BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (request_id) REFERENCES transduction_requests(id)
	);

	CREATE TABLE IF NOT EXISTS selections (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		final_text TEXT NOT NULL,
		composite_score REAL,
		accept_cutoff REAL,
		repair_cutoff REAL,
		repaired BOOLEAN DEFAULT FALSE,
		repair_attempts INTEGER DEFAULT 0,
		unverified BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (request_id) REFERENCES transduction_requests(id)
	);

	CREATE TABLE IF NOT EXISTS result_memory (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		source_lang TEXT,
		target_lang TEXT,
		final_text TEXT NOT NULL,
		composite_score REAL,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(payload, source_lang, target_lang)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON result_memory(payload, source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_node_results_request ON node_results(request_id);
	CREATE INDEX IF NOT EXISTS idx_selections_request ON selections(request_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) SaveRequest(ctx context.Context, req internal.TransductionRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transduction_requests (id, payload, source_lang, target_lang, source_tag, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.Payload, req.SourceLang, req.TargetLang, req.SourceTag, req.Timestamp)
	return err
}

// SaveNodeResult persists one candidate with its consensus standing.
func (s *Store) SaveNodeResult(ctx context.Context, requestID string, cand dispatch.Candidate, coefficient float64, excluded bool) error {
	id := fmt.Sprintf("%s_n%d", requestID, cand.NodeID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_results (id, request_id, node_id, text, native_confidence, latency_ms, coefficient, excluded) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, requestID, cand.NodeID, cand.Text, cand.NativeConfidence, cand.Latency.Milliseconds(), coefficient, excluded)
	return err
}

// Selection is a row from the selections table.
type Selection struct {
	ID             string
	RequestID      string
	FinalText      string
	CompositeScore float64
	AcceptCutoff   float64
	RepairCutoff   float64
	Repaired       bool
	RepairAttempts int
	Unverified     bool
	CreatedAt      time.Time
}

func (s *Store) SaveSelection(ctx context.Context, sel Selection) error {
	id := fmt.Sprintf("%s_final", sel.RequestID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selections (id, request_id, final_text, composite_score, accept_cutoff, repair_cutoff, repaired, repair_attempts, unverified) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sel.RequestID, sel.FinalText, sel.CompositeScore, sel.AcceptCutoff, sel.RepairCutoff, sel.Repaired, sel.RepairAttempts, sel.Unverified)
	return err
}

// ListSelections returns past selections, newest first, capped at limit
// (limit <= 0 returns everything).
func (s *Store) ListSelections(ctx context.Context, limit int) ([]Selection, error) {
	query := `SELECT id, request_id, final_text, composite_score, accept_cutoff, repair_cutoff, repaired, repair_attempts, unverified, created_at FROM selections ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Selection
	for rows.Next() {
		var sel Selection
		if err := rows.Scan(&sel.ID, &sel.RequestID, &sel.FinalText, &sel.CompositeScore, &sel.AcceptCutoff, &sel.RepairCutoff, &sel.Repaired, &sel.RepairAttempts, &sel.Unverified, &sel.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, sel)
	}
	return results, rows.Err()
}

func (s *Store) GetCachedResult(ctx context.Context, payload, sourceLang, targetLang string) (string, bool, error) {
	var finalText string
	var invalidated bool

	err := s.db.QueryRowContext(ctx,
		`SELECT final_text, invalidated FROM result_memory WHERE payload = ? AND source_lang = ? AND target_lang = ?`,
		normalizeText(payload), sourceLang, targetLang).Scan(&finalText, &invalidated)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if invalidated {
		return "", false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE result_memory SET usage_count = usage_count + 1, last_used = ? WHERE payload = ? AND source_lang = ? AND target_lang = ?`,
		time.Now(), normalizeText(payload), sourceLang, targetLang)

	return finalText, true, err
}

func (s *Store) SaveToMemory(ctx context.Context, payload, sourceLang, targetLang, finalText string, compositeScore float64) error {
	id := fmt.Sprintf("mem_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO result_memory (id, payload, source_lang, target_lang, final_text, composite_score, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, normalizeText(payload), sourceLang, targetLang, finalText, compositeScore, time.Now(), time.Now())
	return err
}

// FuzzyGetCachedResult returns a cached result whose normalised payload
// has at least threshold similarity (0-1) to payload. Pass threshold <= 0
// to disable. To avoid O(n^2) cost, payloads longer than 1 000 runes are
// not fuzzy-matched.
func (s *Store) FuzzyGetCachedResult(ctx context.Context, payload, sourceLang, targetLang string, threshold float64) (string, bool, error) {
	if threshold <= 0 {
		return "", false, nil
	}

	normalized := normalizeText(payload)
	const maxFuzzyRunes = 1000
	if len([]rune(normalized)) > maxFuzzyRunes {
		return "", false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, final_text FROM result_memory
		 WHERE source_lang = ? AND target_lang = ? AND NOT invalidated`,
		sourceLang, targetLang)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	var bestFinal string
	bestScore := 0.0

	for rows.Next() {
		var cachedPayload, finalText string
		if err := rows.Scan(&cachedPayload, &finalText); err != nil {
			return "", false, err
		}

		// Quick length pre-filter: if the length difference alone makes it
		// impossible to reach the threshold, skip the expensive edit distance.
		ls, lr := len([]rune(normalized)), len([]rune(cachedPayload))
		maxL := ls
		if lr > maxL {
			maxL = lr
		}
		diff := ls - lr
		if diff < 0 {
			diff = -diff
		}
		if maxL > 0 && 1.0-float64(diff)/float64(maxL) < threshold {
			continue
		}

		score := similarity.Score(normalized, cachedPayload)
		if score >= threshold && score > bestScore {
			bestScore = score
			bestFinal = finalText
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, err
	}

	if bestFinal != "" {
		return bestFinal, true, nil
	}
	return "", false, nil
}

// MemoryEntry is a row from the result_memory table.
type MemoryEntry struct {
	ID             string
	Payload        string
	SourceLang     string
	TargetLang     string
	FinalText      string
	CompositeScore float64
	UsageCount     int
	Invalidated    bool
	LastUsed       time.Time
}

// CacheStats summarises result memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE result_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// DeleteMemory permanently removes a result memory entry by ID.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM result_memory WHERE id = ?`, id)
	return err
}

// ClearMemory removes all result memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM result_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all result memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, source_lang, target_lang, final_text, composite_score, usage_count, invalidated, last_used FROM result_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.Payload, &e.SourceLang, &e.TargetLang, &e.FinalText, &e.CompositeScore, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the result memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM result_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
