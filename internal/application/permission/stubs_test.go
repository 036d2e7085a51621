package permission

import (
	"context"
	"errors"
	"sync"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

type notification struct {
	Message string
	Level   ports.NotifyLevel
}

type stubUI struct {
	mu            sync.Mutex
	interactive   bool
	choice        string
	dismissed     bool
	selectErr     error
	notifications []notification
	statuses      []string
	titles        []string
	options       [][]string
}

func (u *stubUI) HasUI() bool { return u.interactive }

func (u *stubUI) Notify(_ context.Context, message string, level ports.NotifyLevel) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notifications = append(u.notifications, notification{Message: message, Level: level})
}

func (u *stubUI) SetStatus(_ context.Context, text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statuses = append(u.statuses, text)
}

func (u *stubUI) Select(_ context.Context, title string, options []string) (string, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.titles = append(u.titles, title)
	u.options = append(u.options, options)
	if u.selectErr != nil {
		return "", false, u.selectErr
	}
	if u.dismissed {
		return "", false, nil
	}
	return u.choice, true, nil
}

func (u *stubUI) messages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.notifications))
	for _, n := range u.notifications {
		out = append(out, n.Message)
	}
	return out
}

func (u *stubUI) lastStatus() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.statuses) == 0 {
		return ""
	}
	return u.statuses[len(u.statuses)-1]
}

type stubConfig struct {
	cfg       domain.Config
	saveErr   error
	levels    []domain.PermissionLevel
	shortcuts []string
}

func (c *stubConfig) Load(context.Context) (domain.Config, error) { return c.cfg, nil }

func (c *stubConfig) SaveLevel(_ context.Context, level domain.PermissionLevel) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.levels = append(c.levels, level)
	return nil
}

func (c *stubConfig) SaveShortcut(_ context.Context, shortcut string) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.shortcuts = append(c.shortcuts, shortcut)
	c.cfg.CycleShortcut = shortcut
	return nil
}

func (c *stubConfig) GlobalPath() string { return "/home/test/.sentry/config.json" }

type stubSession struct {
	mu      sync.Mutex
	entries []domain.SessionEntry
}

func (s *stubSession) Append(_ context.Context, entry domain.SessionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubSession) Entries(context.Context) ([]domain.SessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionEntry(nil), s.entries...), nil
}

func (s *stubSession) RecentUserMessages(context.Context, int) ([]string, error) { return nil, nil }

func (s *stubSession) Path() string { return "memory" }

type stubDecisions struct {
	mu      sync.Mutex
	records []domain.DecisionRecord
	saveErr error
}

func (d *stubDecisions) Save(_ context.Context, record domain.DecisionRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return d.saveErr
	}
	d.records = append(d.records, record)
	return nil
}

func (d *stubDecisions) Records(context.Context, int) ([]domain.DecisionRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.DecisionRecord(nil), d.records...), nil
}

func (d *stubDecisions) Stats(context.Context) (domain.DecisionStats, error) {
	return domain.DecisionStats{}, nil
}

func (d *stubDecisions) Clear(context.Context) error { return nil }

type published struct {
	Topic   string
	Payload interface{}
}

type stubPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *stubPublisher) Publish(topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Payload: payload})
	return p.err
}

func (p *stubPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Topic)
	}
	return out
}

type stubClassifier struct {
	assessment domain.Assessment
	calls      int
}

func (c *stubClassifier) Classify(context.Context, domain.ToolCall, ports.Conversation) domain.Assessment {
	c.calls++
	return c.assessment
}

func (c *stubClassifier) ClassifyUserBash(_ context.Context, command string, _ ports.Conversation) domain.Assessment {
	c.calls++
	a := c.assessment
	a.Source = domain.SourceUserBash
	a.Operation = command
	return a
}

type stubEscalator struct {
	level domain.ImpactLevel
}

func (e stubEscalator) EscalateWithHistory(_ context.Context, assessment domain.Assessment, _ ports.Conversation) domain.Assessment {
	if assessment.Unknown || e.level == "" || e.level.Rank() <= assessment.Level.Rank() {
		return assessment
	}
	return assessment.WithLevel(e.level, domain.ReasonHistoryEscalated)
}

var errDisk = errors.New("disk full")
