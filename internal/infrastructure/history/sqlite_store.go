package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// SQLiteStore keeps session entries and the decision audit trail in one
// SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite creates (or opens) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init %s: %w", path, err)
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS session_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		type TEXT NOT NULL,
		custom_type TEXT,
		data TEXT,
		timestamp TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_session_entries_session ON session_entries(session_id, id);
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		timestamp TEXT,
		source TEXT,
		operation TEXT,
		level TEXT,
		unknown INTEGER,
		reason TEXT,
		permission_level TEXT,
		allowed INTEGER,
		block_reason TEXT
	);`)
	return err
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Session returns the session log for id.
func (s *SQLiteStore) Session(id string) *SQLiteSession {
	return &SQLiteSession{store: s, id: id}
}

// Save inserts a decision record.
func (s *SQLiteStore) Save(ctx context.Context, record domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO decisions
		(id, session_id, timestamp, source, operation, level, unknown, reason, permission_level, allowed, block_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.SessionID,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.Source,
		record.Operation,
		string(record.Level),
		boolToInt(record.Unknown),
		record.Reason,
		string(record.PermissionLevel),
		boolToInt(record.Allowed),
		record.BlockReason,
	)
	return err
}

// Records returns the newest decisions first. limit <= 0 returns all.
func (s *SQLiteStore) Records(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	query := `SELECT id, session_id, timestamp, source, operation, level, unknown, reason, permission_level, allowed, block_reason
		FROM decisions ORDER BY timestamp DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var ts, level, permission string
		var unknown, allowed int
		if err := rows.Scan(&rec.ID, &rec.SessionID, &ts, &rec.Source, &rec.Operation, &level, &unknown, &rec.Reason, &permission, &allowed, &rec.BlockReason); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Level = domain.ImpactLevel(level)
		rec.PermissionLevel = domain.PermissionLevel(permission)
		rec.Unknown = unknown == 1
		rec.Allowed = allowed == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates the audit trail.
func (s *SQLiteStore) Stats(ctx context.Context) (domain.DecisionStats, error) {
	stats := domain.DecisionStats{ByLevel: map[domain.ImpactLevel]int{}}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(allowed), 0), COALESCE(SUM(unknown), 0) FROM decisions`)
	if err := row.Scan(&stats.Total, &stats.Allowed, &stats.Unknown); err != nil {
		return stats, err
	}
	stats.Blocked = stats.Total - stats.Allowed

	rows, err := s.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM decisions GROUP BY level`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return stats, err
		}
		stats.ByLevel[domain.ImpactLevel(level)] = count
	}
	return stats, rows.Err()
}

// Clear deletes every decision record.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM decisions")
	return err
}

// SQLiteSession is the session log of one session id.
type SQLiteSession struct {
	store *SQLiteStore
	id    string
}

// ID returns the session id.
func (s *SQLiteSession) ID() string {
	return s.id
}

// Path returns the database path.
func (s *SQLiteSession) Path() string {
	return s.store.path
}

// Append adds an entry to the session.
func (s *SQLiteSession) Append(ctx context.Context, entry domain.SessionEntry) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO session_entries (session_id, type, custom_type, data, timestamp) VALUES (?, ?, ?, ?, ?)`,
		s.id, entry.Type, entry.CustomType, string(entry.Data), entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Entries returns the session in append order.
func (s *SQLiteSession) Entries(ctx context.Context) ([]domain.SessionEntry, error) {
	return s.query(ctx, `SELECT type, custom_type, data, timestamp FROM session_entries WHERE session_id = ? ORDER BY id ASC`, s.id)
}

// RecentUserMessages returns up to n user texts, newest first.
func (s *SQLiteSession) RecentUserMessages(ctx context.Context, n int) ([]string, error) {
	entries, err := s.query(ctx, `SELECT type, custom_type, data, timestamp FROM session_entries
		WHERE session_id = ? AND type = ? ORDER BY id DESC`, s.id, domain.EntryTypeMessage)
	if err != nil {
		return nil, err
	}
	return userTexts(entries, n), nil
}

func (s *SQLiteSession) query(ctx context.Context, query string, args ...interface{}) ([]domain.SessionEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.SessionEntry
	for rows.Next() {
		var entry domain.SessionEntry
		var customType, data sql.NullString
		var ts string
		if err := rows.Scan(&entry.Type, &customType, &data, &ts); err != nil {
			return nil, err
		}
		entry.CustomType = customType.String
		if data.String != "" {
			entry.Data = json.RawMessage(data.String)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// userTexts picks up to n user texts from entries ordered newest first.
func userTexts(entries []domain.SessionEntry, n int) []string {
	var texts []string
	for _, entry := range entries {
		if n > 0 && len(texts) >= n {
			break
		}
		if text, ok := entry.UserText(); ok {
			texts = append(texts, text)
		}
	}
	return texts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ ports.DecisionStore = (*SQLiteStore)(nil)
	_ ports.SessionLog    = (*SQLiteSession)(nil)
)
