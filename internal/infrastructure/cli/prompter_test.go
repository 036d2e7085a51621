package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

var approvalOptions = []string{"Yes, allow", "No, Cancel"}

func TestSelectAnswers(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		choice string
		ok     bool
	}{
		{name: "number", input: "1\n", choice: "Yes, allow", ok: true},
		{name: "second number", input: "2\n", choice: "No, Cancel", ok: true},
		{name: "option text", input: "no, cancel\n", choice: "No, Cancel", ok: true},
		{name: "yes shorthand", input: "y\n", choice: "Yes, allow", ok: true},
		{name: "no shorthand", input: "No\n", choice: "No, Cancel", ok: true},
		{name: "empty line", input: "\n", ok: false},
		{name: "eof", input: "", ok: false},
		{name: "out of range", input: "7\n", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			ui := NewPrompter(strings.NewReader(tt.input), &out, true)

			choice, ok, err := ui.Select(context.Background(), "Allow high-risk bash?", approvalOptions)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.choice, choice)
			assert.Contains(t, out.String(), "1) Yes, allow")
		})
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	time.Sleep(time.Hour)
	return 0, nil
}

func TestSelectCancelledContext(t *testing.T) {
	ui := NewPrompter(blockingReader{}, &bytes.Buffer{}, true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := ui.Select(ctx, "title", approvalOptions)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeadlessUI(t *testing.T) {
	var out bytes.Buffer
	ui := NewTerminalUI(strings.NewReader(""), &out, true)
	assert.False(t, ui.HasUI())

	_, _, err := ui.Select(context.Background(), "title", approvalOptions)
	assert.ErrorIs(t, err, domain.ErrUIUnavailable)

	ui.Notify(context.Background(), "Failed to persist", ports.NotifyError)
	ui.SetStatus(context.Background(), "Perm (Low)")
	ui.SetStatus(context.Background(), "Perm (Low)")
	assert.Equal(t, "error: Failed to persist\nPerm (Low)\n", out.String())
	assert.Equal(t, "Perm (Low)", ui.Status())
}

func TestSelectYesOnlyAnswersApproval(t *testing.T) {
	levels := []string{
		permission.LevelOption(domain.PermissionLow),
		permission.LevelOption(domain.PermissionMedium),
		permission.LevelOption(domain.PermissionHigh),
	}
	for _, reply := range []string{"y\n", "yes\n", "n\n"} {
		ui := NewPrompter(strings.NewReader(reply), &bytes.Buffer{}, true)
		choice, ok, err := ui.Select(context.Background(), "Select permission level:", levels)
		require.NoError(t, err)
		assert.False(t, ok, "reply %q", reply)
		assert.Empty(t, choice)
	}
}

func TestSelectReusesReadLeftByCancelledPrompt(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ui := NewPrompter(r, &bytes.Buffer{}, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := ui.Select(ctx, "first", approvalOptions)
	require.NoError(t, err)
	assert.False(t, ok)

	go func() { _, _ = w.Write([]byte("2\n")) }()
	choice, ok, err := ui.Select(context.Background(), "second", approvalOptions)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "No, Cancel", choice)
}

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestCloseReleasesTTY(t *testing.T) {
	tty := &countingCloser{}
	ui := NewPrompter(strings.NewReader(""), &bytes.Buffer{}, true)
	ui.tty = tty

	require.NoError(t, ui.Close())
	require.NoError(t, ui.Close())
	assert.Equal(t, 1, tty.closed)

	require.NoError(t, NewPrompter(strings.NewReader(""), &bytes.Buffer{}, false).Close())
}

func TestSetStatusFitsTerminalWidth(t *testing.T) {
	var out bytes.Buffer
	ui := NewPrompter(strings.NewReader(""), &out, true)
	ui.width = func() int { return 14 }

	text := permission.WidgetText(domain.PermissionHigh, "shift+tab")
	ui.SetStatus(context.Background(), text)
	assert.Equal(t, "Perm (High)...\n", out.String())
	assert.Equal(t, text, ui.Status())

	ui.width = func() int { return 0 }
	ui.SetStatus(context.Background(), "Perm (Low)")
	assert.Equal(t, "Perm (High)...\nPerm (Low)\n", out.String())
}
