package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

type handlerFixture struct {
	handler    *Handler
	ui         *stubUI
	config     *stubConfig
	decisions  *stubDecisions
	events     *stubPublisher
	classifier *stubClassifier
}

func newHandlerFixture(scheme domain.Scheme, assessment domain.Assessment) handlerFixture {
	f := handlerFixture{
		ui:         &stubUI{},
		config:     &stubConfig{},
		decisions:  &stubDecisions{},
		events:     &stubPublisher{},
		classifier: &stubClassifier{assessment: assessment},
	}
	store := NewLevelStore(scheme, "shift+tab", StoreDeps{UI: f.ui, Config: f.config, Events: f.events})
	f.handler = &Handler{
		Store:      store,
		Classifier: f.classifier,
		Config:     f.config,
		Decisions:  f.decisions,
		Events:     f.events,
		SessionID:  "test",
	}
	return f
}

func TestOnToolCallAuditsDecision(t *testing.T) {
	f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{
		Level: domain.ImpactHigh, Source: domain.SourceAgentBash, Operation: "git push origin main", Reason: "remote mutation",
	})

	outcome := f.handler.OnToolCall(context.Background(), domain.ToolCall{
		ToolName: "bash", Input: map[string]interface{}{"command": "git push origin main"},
	}, nil)

	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, "Blocked high-risk operation: git push origin main", outcome.Decision.Reason)

	require.Len(t, f.decisions.records, 1)
	record := f.decisions.records[0]
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "test", record.SessionID)
	assert.Equal(t, domain.PermissionLow, record.PermissionLevel)
	assert.False(t, record.Allowed)
	assert.Equal(t, outcome.Decision.Reason, record.BlockReason)
	assert.Contains(t, f.events.topics(), ports.TopicDecided)
}

func TestOnToolCallEscalatesBeforeAuthorizing(t *testing.T) {
	f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{
		Level: domain.ImpactLow, Source: domain.SourceAgentBash, Operation: "cat secrets.env", Reason: "read-only file",
	})
	f.handler.Escalator = stubEscalator{level: domain.ImpactHigh}

	outcome := f.handler.OnToolCall(context.Background(), domain.ToolCall{ToolName: "bash"}, nil)

	assert.Equal(t, domain.ImpactHigh, outcome.Assessment.Level)
	assert.Equal(t, domain.ReasonHistoryEscalated, outcome.Assessment.Reason)
	assert.False(t, outcome.Decision.Allowed)
}

func TestOnToolCallYOLOSkipsClassification(t *testing.T) {
	f := newHandlerFixture(domain.SchemeYOLO, domain.Assessment{Level: domain.ImpactHigh, Unknown: true})
	require.NoError(t, f.handler.Store.Set(context.Background(), domain.PermissionYOLO, Transiently()))

	outcome := f.handler.OnToolCall(context.Background(), domain.ToolCall{ToolName: "bash"}, nil)

	assert.True(t, outcome.Decision.Allowed)
	assert.Zero(t, f.classifier.calls)
	assert.Empty(t, f.decisions.records)
}

func TestOnUserBash(t *testing.T) {
	t.Run("blocked", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{Level: domain.ImpactHigh, Reason: "destructive delete"})

		result, outcome := f.handler.OnUserBash(context.Background(), domain.BashEvent{Command: "rm -rf dist"}, nil)

		require.NotNil(t, result)
		assert.Equal(t, domain.BashResult{Output: "Blocked high-risk operation: rm -rf dist", ExitCode: 1}, *result)
		assert.Equal(t, domain.SourceUserBash, outcome.Assessment.Source)
	})

	t.Run("allowed", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{Level: domain.ImpactLow, Reason: "display"})

		result, outcome := f.handler.OnUserBash(context.Background(), domain.BashEvent{Command: "echo hi"}, nil)

		assert.Nil(t, result)
		assert.True(t, outcome.Decision.Allowed)
	})
}

func TestHandlePermissionCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("sets recognized level", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		require.NoError(t, f.handler.HandlePermissionCommand(ctx, " High "))
		assert.Equal(t, domain.PermissionHigh, f.handler.Store.Current())
		assert.Equal(t, []domain.PermissionLevel{domain.PermissionHigh}, f.config.levels)
	})

	t.Run("usage with suggestion", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		err := f.handler.HandlePermissionCommand(ctx, "meduim")
		require.ErrorIs(t, err, domain.ErrInvalidLevel)
		require.Len(t, f.ui.notifications, 1)
		assert.Equal(t, notification{
			Message: `Usage: /permission [low|medium|high] (did you mean "medium"?)`,
			Level:   ports.NotifyWarning,
		}, f.ui.notifications[0])
	})

	t.Run("usage without suggestion", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeYOLO, domain.Assessment{})
		require.Error(t, f.handler.HandlePermissionCommand(ctx, "everything"))
		assert.Equal(t, []string{"Usage: /permission [low|medium|yolo]"}, f.ui.messages())
	})

	t.Run("headless shows current level", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		require.NoError(t, f.handler.HandlePermissionCommand(ctx, ""))
		assert.Equal(t, []string{"Permission level: LOW"}, f.ui.messages())
	})

	t.Run("selector picks level", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		f.ui.interactive = true
		f.ui.choice = LevelOption(domain.PermissionMedium)

		require.NoError(t, f.handler.HandlePermissionCommand(ctx, ""))

		assert.Equal(t, domain.PermissionMedium, f.handler.Store.Current())
		assert.Equal(t, []string{"Select permission level:"}, f.ui.titles)
		assert.Equal(t, []string{
			"low: allow edits + read-only commands",
			"medium: allow reversible commands",
			"high: allow all commands",
		}, f.ui.options[0])
	})

	t.Run("selector dismissed", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		f.ui.interactive = true
		f.ui.dismissed = true

		require.NoError(t, f.handler.HandlePermissionCommand(ctx, ""))
		assert.Equal(t, domain.PermissionLow, f.handler.Store.Current())
	})
}

func TestHandleShortcutCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("no args shows current", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		f.config.cfg.CycleShortcut = "ctrl+o"

		reload, err := f.handler.HandleShortcutCommand(ctx, "  ")
		require.NoError(t, err)
		assert.False(t, reload)
		assert.Equal(t, []string{"Current shortcut: ctrl+o", ShortcutUsage}, f.ui.messages())
	})

	t.Run("saves shortcut", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})

		reload, err := f.handler.HandleShortcutCommand(ctx, "ctrl+shift+p")
		require.NoError(t, err)
		assert.False(t, reload)
		assert.Equal(t, []string{"ctrl+shift+p"}, f.config.shortcuts)
		assert.Equal(t, []string{
			"Saved shortcut: ctrl+shift+p",
			"It will take effect after /reload (or restart).",
		}, f.ui.messages())
	})

	t.Run("reload flag", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})

		reload, err := f.handler.HandleShortcutCommand(ctx, "--reload alt+p")
		require.NoError(t, err)
		assert.True(t, reload)
		assert.Equal(t, []string{"alt+p"}, f.config.shortcuts)
		assert.Equal(t, []string{"Saved shortcut: alt+p. Reloading..."}, f.ui.messages())
	})

	t.Run("only reload flag", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})

		_, err := f.handler.HandleShortcutCommand(ctx, "--reload")
		require.NoError(t, err)
		assert.Empty(t, f.config.shortcuts)
		assert.Equal(t, []string{ShortcutUsage}, f.ui.messages())
	})

	t.Run("persistence failure", func(t *testing.T) {
		f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
		f.config.saveErr = errDisk

		_, err := f.handler.HandleShortcutCommand(ctx, "ctrl+p")
		require.ErrorIs(t, err, errDisk)
		assert.Equal(t, []string{"Failed to persist shortcut to /home/test/.sentry/config.json"}, f.ui.messages())
	})
}

func TestSystemPromptSuffix(t *testing.T) {
	f := newHandlerFixture(domain.SchemeYOLO, domain.Assessment{})
	f.handler.AIEnabled = true

	assert.Equal(t,
		"Permission policy active. Current level: LOW. Unknown bash/tool impacts are AI-classified from operation semantics and conversation intent. YOLO level bypasses all checks.",
		f.handler.SystemPromptSuffix())

	g := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
	assert.Equal(t,
		"Permission policy active. Current level: LOW. Unknown bash/tool risks require approval.",
		g.handler.SystemPromptSuffix())
}

func TestRecordUserMessage(t *testing.T) {
	f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{})
	session := &stubSession{}
	f.handler.Session = session

	require.NoError(t, f.handler.RecordUserMessage(context.Background(), "  deploy to prod  "))
	require.NoError(t, f.handler.RecordUserMessage(context.Background(), ""))

	require.Len(t, session.entries, 1)
	text, ok := session.entries[0].UserText()
	require.True(t, ok)
	assert.Equal(t, "deploy to prod", text)
}

func TestAssessDoesNotAuthorize(t *testing.T) {
	f := newHandlerFixture(domain.SchemeThreeLevel, domain.Assessment{
		Level: domain.ImpactLow, Source: domain.SourceAgentBash, Operation: "ls", Reason: "read-only",
	})
	f.handler.Escalator = stubEscalator{level: domain.ImpactMedium}

	assessment := f.handler.Assess(context.Background(), domain.ToolCall{
		ToolName: "bash", Input: map[string]interface{}{"command": "ls"},
	}, nil)

	assert.Equal(t, domain.ImpactMedium, assessment.Level)
	assert.Equal(t, domain.ReasonHistoryEscalated, assessment.Reason)
	assert.Empty(t, f.decisions.records)
	assert.Empty(t, f.ui.titles)
}
