package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/infrastructure/events"
	"github.com/doeshing/sentry-go/internal/ports"
)

const maxLineBytes = 4 << 20

// Subscriber streams bus events.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan events.Event, error)
}

// Server answers host requests. Requests run concurrently so a tool call
// waiting on a prompt does not hold up the select_result that answers it.
type Server struct {
	Handler      *permission.Handler
	Conversation ports.Conversation
	Events       Subscriber
	// Reload applies a saved shortcut immediately. Optional.
	Reload func(ctx context.Context) error
	// Interactive tells the engine that the host can answer prompts.
	Interactive bool
	Logger      ports.Logger

	writeMu sync.Mutex
	enc     *json.Encoder

	pendingMu sync.Mutex
	pending   map[string]chan selectResultParams
}

// Serve reads requests from in until EOF or ctx is done. Prompts still
// open when input ends are dismissed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.enc = json.NewEncoder(out)
	s.pending = make(map[string]chan selectResultParams)
	s.Handler.Store.SetUI(&hostUI{server: s})

	var wg sync.WaitGroup
	s.forwardEvents(ctx, &wg)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var requests sync.WaitGroup
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.fail("", CodeParseError, err.Error())
			continue
		}
		if req.Method == MethodSelectResult {
			s.resolveSelect(req)
			continue
		}
		requests.Add(1)
		go func(req Request) {
			defer requests.Done()
			s.dispatch(ctx, req)
		}(req)
	}

	cancel()
	requests.Wait()
	wg.Wait()
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) {
	result, err := s.call(ctx, req)
	if err != nil {
		var reqErr *Error
		if errors.As(err, &reqErr) {
			s.fail(req.ID, reqErr.Code, reqErr.Message)
			return
		}
		s.fail(req.ID, CodeInternal, err.Error())
		return
	}
	s.write(Message{Type: TypeResponse, ID: req.ID, Result: result})
}

func (s *Server) call(ctx context.Context, req Request) (interface{}, error) {
	h := s.Handler
	switch req.Method {
	case MethodSessionStart:
		var params sessionStartParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		return LevelResult{Level: string(h.SessionStart(ctx, params.PermissionLevel))}, nil

	case MethodToolCall:
		var call domain.ToolCall
		if err := decodeParams(req.Params, &call); err != nil {
			return nil, err
		}
		if call.ToolName == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "toolName is required"}
		}
		return h.OnToolCall(ctx, call, s.Conversation), nil

	case MethodUserBash:
		var event domain.BashEvent
		if err := decodeParams(req.Params, &event); err != nil {
			return nil, err
		}
		result, outcome := h.OnUserBash(ctx, event, s.Conversation)
		return UserBashResult{Result: result, Outcome: outcome}, nil

	case MethodPermission:
		var params argsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if err := h.HandlePermissionCommand(ctx, params.Args); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
		}
		return LevelResult{Level: string(h.Store.Current())}, nil

	case MethodCycle:
		return LevelResult{Level: string(h.Cycle(ctx))}, nil

	case MethodStatus:
		store := h.Store
		return StatusResult{
			Level:    string(store.Current()),
			Scheme:   string(store.Scheme()),
			Shortcut: store.Shortcut(),
			Widget:   permission.WidgetText(store.Current(), store.Shortcut()),
		}, nil

	case MethodShortcut:
		var params argsParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		reload, err := h.HandleShortcutCommand(ctx, params.Args)
		if err != nil {
			return nil, err
		}
		if reload && s.Reload != nil {
			if err := s.Reload(ctx); err != nil {
				return nil, err
			}
		}
		return map[string]bool{"reload": reload}, nil

	case MethodMessage:
		var params messageParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, err
		}
		if err := h.RecordUserMessage(ctx, params.Text); err != nil {
			return nil, err
		}
		return map[string]bool{"recorded": true}, nil

	case MethodSystemPrompt:
		return map[string]string{"suffix": h.SystemPromptSuffix()}, nil

	default:
		return nil, &Error{Code: CodeUnknownMethod, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func decodeParams(raw json.RawMessage, value interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, value); err != nil {
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *Server) forwardEvents(ctx context.Context, wg *sync.WaitGroup) {
	if s.Events == nil {
		return
	}
	for _, topic := range []string{ports.TopicLevelChanged, ports.TopicDecided} {
		stream, err := s.Events.Subscribe(ctx, topic)
		if err != nil {
			s.warn("event subscription failed", map[string]interface{}{"topic": topic, "error": err.Error()})
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range stream {
				s.write(Message{Type: TypeEvent, ID: event.ID, Topic: event.Topic, Payload: event.Payload})
			}
		}()
	}
}

// ask sends a select message and waits for its select_result.
func (s *Server) ask(ctx context.Context, title string, options []string) (string, bool) {
	id := ulid.Make().String()
	answer := make(chan selectResultParams, 1)

	s.pendingMu.Lock()
	s.pending[id] = answer
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	s.write(Message{Type: TypeSelect, ID: id, Title: title, Options: options})

	select {
	case <-ctx.Done():
		return "", false
	case got := <-answer:
		if got.Choice == "" {
			return "", false
		}
		for _, option := range options {
			if option == got.Choice {
				return option, true
			}
		}
		return "", false
	}
}

func (s *Server) resolveSelect(req Request) {
	var params selectResultParams
	if err := decodeParams(req.Params, &params); err != nil {
		s.fail(req.ID, CodeInvalidParams, err.Error())
		return
	}
	s.pendingMu.Lock()
	answer, ok := s.pending[params.ID]
	s.pendingMu.Unlock()
	if !ok {
		s.fail(req.ID, CodeUnknownSelect, fmt.Sprintf("no open prompt %q", params.ID))
		return
	}
	select {
	case answer <- params:
	default:
	}
	if req.ID != "" {
		s.write(Message{Type: TypeResponse, ID: req.ID, Result: map[string]bool{"accepted": true}})
	}
}

func (s *Server) write(msg Message) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(msg); err != nil {
		s.warn("write to host failed", map[string]interface{}{"type": msg.Type, "error": err.Error()})
	}
}

func (s *Server) fail(id, code, message string) {
	s.write(Message{Type: TypeResponse, ID: id, Error: &Error{Code: code, Message: message}})
}

func (s *Server) warn(msg string, fields map[string]interface{}) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields)
	}
}

// hostUI forwards UI calls to the host as messages.
type hostUI struct {
	server *Server
}

func (u *hostUI) HasUI() bool {
	return u.server.Interactive
}

func (u *hostUI) Notify(_ context.Context, message string, level ports.NotifyLevel) {
	u.server.write(Message{Type: TypeNotify, Message: message, Level: string(level)})
}

func (u *hostUI) SetStatus(_ context.Context, text string) {
	u.server.write(Message{Type: TypeStatus, Text: text})
}

func (u *hostUI) Select(ctx context.Context, title string, options []string) (string, bool, error) {
	if !u.server.Interactive {
		return "", false, domain.ErrUIUnavailable
	}
	choice, ok := u.server.ask(ctx, title, options)
	return choice, ok, nil
}

var _ ports.UI = (*hostUI)(nil)
