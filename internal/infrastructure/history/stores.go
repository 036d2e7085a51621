package history

import (
	"io"
	"path/filepath"
	"regexp"

	"github.com/doeshing/sentry-go/internal/ports"
)

// DefaultSessionID is used when the host does not name a session.
const DefaultSessionID = "default"

// Stores bundles the session log and the audit store.
type Stores struct {
	Session   ports.SessionLog
	Decisions ports.DecisionStore
	Backend   string
	closer    io.Closer
}

// Close releases the backing database, if any.
func (s Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

var unsafeSessionChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Open prefers SQLite under dir/history/sentry.db and falls back to JSONL
// files when the database cannot be opened.
func Open(dir, sessionID string, logger ports.Logger) Stores {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	dbPath := filepath.Join(dir, "history", "sentry.db")
	store, err := OpenSQLite(dbPath)
	if err == nil {
		return Stores{
			Session:   store.Session(sessionID),
			Decisions: store,
			Backend:   "sqlite",
			closer:    store,
		}
	}

	logger.Warn("sqlite history unavailable, using jsonl files", map[string]interface{}{
		"path":  dbPath,
		"error": err.Error(),
	})
	safeID := unsafeSessionChars.ReplaceAllString(sessionID, "_")
	return Stores{
		Session:   NewFileSessionLog(filepath.Join(dir, "sessions", safeID+".jsonl")),
		Decisions: NewFileDecisionStore(filepath.Join(dir, "history", "decisions.jsonl")),
		Backend:   "jsonl",
	}
}
