package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/ports"
)

// TerminalUI implements ports.UI on a terminal. Prompts are written to out
// and answered on in; when stdin carries data, /dev/tty is used instead.
type TerminalUI struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	status      string
	// width reports the terminal width; nil or 0 disables status fitting.
	width func() int
	// tty is the /dev/tty handle opened for prompts, closed by Close.
	tty io.Closer
	// pending carries the answer of a read that outlived a cancelled
	// prompt. The next prompt takes it over instead of reading again.
	pending chan answer
}

type answer struct {
	line string
	err  error
}

// NewTerminalUI detects whether a user can answer prompts. headless forces
// a non-interactive UI.
func NewTerminalUI(in io.Reader, out io.Writer, headless bool) *TerminalUI {
	ui := &TerminalUI{out: out, width: terminalWidth(out)}
	if headless || !isTerminal(out) {
		ui.in = bufio.NewReader(in)
		return ui
	}
	if isTerminal(in) {
		ui.in = bufio.NewReader(in)
		ui.interactive = true
		return ui
	}
	if tty, err := os.Open("/dev/tty"); err == nil {
		ui.in = bufio.NewReader(tty)
		ui.tty = tty
		ui.interactive = true
		return ui
	}
	ui.in = bufio.NewReader(in)
	return ui
}

// NewPrompter builds a UI over explicit streams.
func NewPrompter(in io.Reader, out io.Writer, interactive bool) *TerminalUI {
	return &TerminalUI{in: bufio.NewReader(in), out: out, interactive: interactive}
}

func isTerminal(stream interface{}) bool {
	file, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func terminalWidth(stream interface{}) func() int {
	file, ok := stream.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return nil
	}
	return func() int {
		width, _, err := term.GetSize(int(file.Fd()))
		if err != nil {
			return 0
		}
		return width
	}
}

// Close releases the /dev/tty handle, if one was opened.
func (u *TerminalUI) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tty == nil {
		return nil
	}
	err := u.tty.Close()
	u.tty = nil
	return err
}

// HasUI reports whether prompts can be answered.
func (u *TerminalUI) HasUI() bool {
	return u.interactive
}

// Notify prints a message with its severity.
func (u *TerminalUI) Notify(_ context.Context, message string, level ports.NotifyLevel) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch level {
	case ports.NotifyError:
		fmt.Fprintf(u.out, "error: %s\n", message)
	case ports.NotifyWarning:
		fmt.Fprintf(u.out, "warning: %s\n", message)
	default:
		fmt.Fprintln(u.out, message)
	}
}

// SetStatus prints the status line when it changes, fitted to the
// terminal width.
func (u *TerminalUI) SetStatus(_ context.Context, text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if text == u.status {
		return
	}
	u.status = text
	width := 0
	if u.width != nil {
		width = u.width()
	}
	fmt.Fprintln(u.out, permission.FitWidth(text, width))
}

// Status returns the last status text.
func (u *TerminalUI) Status() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Select lists the options and reads a number or an option text. An empty
// answer, end of input or a cancelled context dismisses the prompt.
func (u *TerminalUI) Select(ctx context.Context, title string, options []string) (string, bool, error) {
	if !u.interactive {
		return "", false, domain.ErrUIUnavailable
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	fmt.Fprintf(u.out, "\n%s\n", title)
	for i, option := range options {
		fmt.Fprintf(u.out, "  %d) %s\n", i+1, option)
	}
	fmt.Fprintf(u.out, "Choice [1-%d]: ", len(options))

	if u.pending == nil {
		answers := make(chan answer, 1)
		go func(in *bufio.Reader) {
			line, err := in.ReadString('\n')
			answers <- answer{line: line, err: err}
		}(u.in)
		u.pending = answers
	}

	var got answer
	select {
	case <-ctx.Done():
		fmt.Fprintln(u.out)
		return "", false, nil
	case got = <-u.pending:
		u.pending = nil
	}
	if got.err != nil && got.err != io.EOF {
		return "", false, got.err
	}
	return matchOption(strings.TrimSpace(got.line), options)
}

func matchOption(reply string, options []string) (string, bool, error) {
	if reply == "" {
		return "", false, nil
	}
	if n, err := strconv.Atoi(reply); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true, nil
	}
	for _, option := range options {
		if strings.EqualFold(option, reply) {
			return option, true, nil
		}
	}
	if isApproval(options) {
		switch strings.ToLower(reply) {
		case "y", "yes":
			return permission.OptionAllow, true, nil
		case "n", "no":
			return permission.OptionCancel, true, nil
		}
	}
	return "", false, nil
}

// isApproval reports whether options are those of the approval prompt, the
// only selector that accepts y/n.
func isApproval(options []string) bool {
	return len(options) == 2 && options[0] == permission.OptionAllow && options[1] == permission.OptionCancel
}

var _ ports.UI = (*TerminalUI)(nil)
