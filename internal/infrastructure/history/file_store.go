package history

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// jsonlFile appends JSON values to a file, one per line.
type jsonlFile struct {
	path string
	mu   sync.Mutex
}

func (f *jsonlFile) append(value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = file.Write(append(data, '\n'))
	return err
}

// lines returns every non-empty line (best-effort).
func (f *jsonlFile) lines() ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out [][]byte
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *jsonlFile) remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FileSessionLog is the JSONL session log used when SQLite is unavailable.
type FileSessionLog struct {
	file jsonlFile
}

// NewFileSessionLog stores the session at path.
func NewFileSessionLog(path string) *FileSessionLog {
	return &FileSessionLog{file: jsonlFile{path: path}}
}

func (l *FileSessionLog) Path() string {
	return l.file.path
}

func (l *FileSessionLog) Append(_ context.Context, entry domain.SessionEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return l.file.append(entry)
}

func (l *FileSessionLog) Entries(context.Context) ([]domain.SessionEntry, error) {
	lines, err := l.file.lines()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.SessionEntry, 0, len(lines))
	for _, line := range lines {
		var entry domain.SessionEntry
		if err := json.Unmarshal(line, &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (l *FileSessionLog) RecentUserMessages(ctx context.Context, n int) ([]string, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	reversed := make([]domain.SessionEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		reversed = append(reversed, entries[i])
	}
	return userTexts(reversed, n), nil
}

// FileDecisionStore appends decision records to a JSONL file.
type FileDecisionStore struct {
	file jsonlFile
}

// NewFileDecisionStore stores records at path.
func NewFileDecisionStore(path string) *FileDecisionStore {
	return &FileDecisionStore{file: jsonlFile{path: path}}
}

func (s *FileDecisionStore) Path() string {
	return s.file.path
}

func (s *FileDecisionStore) Save(_ context.Context, record domain.DecisionRecord) error {
	return s.file.append(record)
}

func (s *FileDecisionStore) Records(_ context.Context, limit int) ([]domain.DecisionRecord, error) {
	lines, err := s.file.lines()
	if err != nil {
		return nil, err
	}
	records := make([]domain.DecisionRecord, 0, len(lines))
	for _, line := range lines {
		var rec domain.DecisionRecord
		if err := json.Unmarshal(line, &rec); err == nil {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *FileDecisionStore) Stats(ctx context.Context) (domain.DecisionStats, error) {
	records, err := s.Records(ctx, 0)
	if err != nil {
		return domain.DecisionStats{}, err
	}
	return Summarize(records), nil
}

func (s *FileDecisionStore) Clear(context.Context) error {
	return s.file.remove()
}

// Summarize aggregates decision records.
func Summarize(records []domain.DecisionRecord) domain.DecisionStats {
	stats := domain.DecisionStats{Total: len(records), ByLevel: map[domain.ImpactLevel]int{}}
	for _, rec := range records {
		if rec.Allowed {
			stats.Allowed++
		} else {
			stats.Blocked++
		}
		if rec.Unknown {
			stats.Unknown++
		}
		stats.ByLevel[rec.Level]++
	}
	return stats
}

var (
	_ ports.SessionLog    = (*FileSessionLog)(nil)
	_ ports.DecisionStore = (*FileDecisionStore)(nil)
)
