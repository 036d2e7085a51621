package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
)

// ClassifyRequest asks for the assessment of a shell command.
type ClassifyRequest struct {
	Command string `json:"command"`
}

// MessageRequest records a user message.
type MessageRequest struct {
	Text string `json:"text"`
}

// PermissionRequest sets the level.
type PermissionRequest struct {
	Level string `json:"level"`
}

// PermissionResponse describes the permission state.
type PermissionResponse struct {
	Level    domain.PermissionLevel `json:"level"`
	Scheme   domain.Scheme          `json:"scheme"`
	Shortcut string                 `json:"shortcut"`
	Widget   string                 `json:"widget"`
}

// UserBashResponse carries the failed result of a blocked command. Result
// is null when the command may run.
type UserBashResponse struct {
	Result  *domain.BashResult `json:"result"`
	Outcome permission.Outcome `json:"outcome"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) toolCall(w http.ResponseWriter, r *http.Request) {
	var call domain.ToolCall
	if err := decodeBody(w, r, &call); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if call.ToolName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "toolName is required")
		return
	}
	writeJSON(w, http.StatusOK, s.handler.OnToolCall(r.Context(), call, s.conversation))
}

func (s *Server) userBash(w http.ResponseWriter, r *http.Request) {
	var event domain.BashEvent
	if err := decodeBody(w, r, &event); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	result, outcome := s.handler.OnUserBash(r.Context(), event, s.conversation)
	writeJSON(w, http.StatusOK, UserBashResponse{Result: result, Outcome: outcome})
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	call := domain.ToolCall{ToolName: "bash", Input: map[string]interface{}{"command": req.Command}}
	writeJSON(w, http.StatusOK, s.handler.Assess(r.Context(), call, s.conversation))
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "text is required")
		return
	}
	if err := s.handler.RecordUserMessage(r.Context(), req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) systemPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"suffix": s.handler.SystemPromptSuffix()})
}

func (s *Server) getPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.permissionState())
}

func (s *Server) setPermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	store := s.handler.Store
	level, err := store.Scheme().Parse(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidLevel, err.Error())
		return
	}
	if err := store.Set(r.Context(), level, permission.SetOptions{}); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidLevel) {
			status = http.StatusBadRequest
		}
		writeError(w, status, ErrCodeInvalidLevel, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.permissionState())
}

func (s *Server) cyclePermission(w http.ResponseWriter, r *http.Request) {
	s.handler.Cycle(r.Context())
	writeJSON(w, http.StatusOK, s.permissionState())
}

func (s *Server) permissionState() PermissionResponse {
	store := s.handler.Store
	level := store.Current()
	return PermissionResponse{
		Level:    level,
		Scheme:   store.Scheme(),
		Shortcut: store.Shortcut(),
		Widget:   permission.WidgetText(level, store.Shortcut()),
	}
}
