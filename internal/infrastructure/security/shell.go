package security

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize trims a command and collapses whitespace runs to one space.
func Normalize(command string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(command), " ")
}

func parseShell(command string) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	return parser.Parse(strings.NewReader(command), "")
}

// Split breaks a command line into the simple commands joined by &&, ||,
// ;, |, |&, & and newlines. Groups and subshells are opened up, but command
// substitutions are left inside the command that contains them. Input the
// shell parser rejects is split by a quote-aware scanner instead.
func Split(command string) []string {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	file, err := parseShell(command)
	if err != nil {
		return scanSplit(command)
	}

	var parts []string
	var visit func(stmt *syntax.Stmt)
	visit = func(stmt *syntax.Stmt) {
		switch cmd := stmt.Cmd.(type) {
		case *syntax.BinaryCmd:
			visit(cmd.X)
			visit(cmd.Y)
			return
		case *syntax.Block:
			for _, inner := range cmd.Stmts {
				visit(inner)
			}
			return
		case *syntax.Subshell:
			for _, inner := range cmd.Stmts {
				visit(inner)
			}
			return
		}
		start, end := stmt.Pos().Offset(), stmt.End().Offset()
		if end > uint(len(command)) || start >= end {
			return
		}
		if part := trimStatement(command[start:end]); part != "" {
			parts = append(parts, part)
		}
	}
	for _, stmt := range file.Stmts {
		visit(stmt)
	}
	if len(parts) == 0 {
		return []string{command}
	}
	return parts
}

// trimStatement drops the terminator the parser includes in a statement's
// range.
func trimStatement(text string) string {
	text = strings.TrimSpace(text)
	for {
		switch {
		case strings.HasSuffix(text, ";"):
			text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
		case strings.HasSuffix(text, "&") && !strings.HasSuffix(text, ">&") && !strings.HasSuffix(text, "\\&"):
			text = strings.TrimSpace(strings.TrimSuffix(text, "&"))
		default:
			return text
		}
	}
}

// scanSplit is the fallback splitter. It honors quotes and escapes, and
// does not treat the & of >&, &> or <& redirections as a separator.
func scanSplit(command string) []string {
	var (
		parts   []string
		current strings.Builder
		quote   byte
	)
	flush := func() {
		if part := strings.TrimSpace(current.String()); part != "" {
			parts = append(parts, part)
		}
		current.Reset()
	}

	for i := 0; i < len(command); i++ {
		c := command[i]
		if quote != 0 {
			current.WriteByte(c)
			if c == '\\' && quote == '"' && i+1 < len(command) {
				i++
				current.WriteByte(command[i])
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\\':
			current.WriteByte(c)
			if i+1 < len(command) {
				i++
				current.WriteByte(command[i])
			}
		case '\'', '"':
			quote = c
			current.WriteByte(c)
		case ';', '\n':
			flush()
		case '|':
			flush()
			if i+1 < len(command) && (command[i+1] == '|' || command[i+1] == '&') {
				i++
			}
		case '&':
			prev := byte(0)
			if i > 0 {
				prev = command[i-1]
			}
			next := byte(0)
			if i+1 < len(command) {
				next = command[i+1]
			}
			if prev == '>' || prev == '<' || next == '>' {
				current.WriteByte(c)
				continue
			}
			flush()
			if next == '&' {
				i++
			}
		default:
			current.WriteByte(c)
		}
	}
	flush()
	if len(parts) == 0 {
		return []string{strings.TrimSpace(command)}
	}
	return parts
}

var (
	fallbackWriteRedirect  = regexp.MustCompile(`(^|[^<>&])>([^>&]|$)`)
	fallbackAppendRedirect = regexp.MustCompile(`>>`)
)

// discardTargets are redirection targets that never touch a file.
var discardTargets = map[string]bool{
	"/dev/null":   true,
	"/dev/stdout": true,
	"/dev/stderr": true,
	"/dev/tty":    true,
}

func hasWriteRedirect(command string) bool {
	found, ok := scanRedirects(command, func(r *syntax.Redirect) bool {
		switch r.Op {
		case syntax.RdrOut, syntax.ClbOut, syntax.RdrAll, syntax.RdrInOut:
			return !discardTargets[r.Word.Lit()]
		}
		return false
	})
	if !ok {
		return fallbackWriteRedirect.MatchString(command)
	}
	return found
}

func hasAppendRedirect(command string) bool {
	found, ok := scanRedirects(command, func(r *syntax.Redirect) bool {
		switch r.Op {
		case syntax.AppOut, syntax.AppAll:
			return !discardTargets[r.Word.Lit()]
		}
		return false
	})
	if !ok {
		return fallbackAppendRedirect.MatchString(command)
	}
	return found
}

// scanRedirects reports whether any redirection in command satisfies match.
// ok is false when the command could not be parsed.
func scanRedirects(command string, match func(*syntax.Redirect) bool) (found bool, ok bool) {
	if !strings.ContainsRune(command, '>') {
		return false, true
	}
	file, err := parseShell(command)
	if err != nil {
		return false, false
	}
	syntax.Walk(file, func(node syntax.Node) bool {
		if found {
			return false
		}
		if redirect, isRedirect := node.(*syntax.Redirect); isRedirect && redirect.Word != nil && match(redirect) {
			found = true
			return false
		}
		return true
	})
	return found, true
}
