package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/zensu/focusflow/internal/domain/daykey"
	"github.com/zensu/focusflow/internal/session"
)

// SessionsHandler handles the session lifecycle endpoints.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// startRequest mirrors the schema for POST /sessions/start.
type startRequest struct {
	UserID    string   `json:"user_id"`
	SubjectID string   `json:"subject_id"`
	Timezone  string   `json:"timezone"`
	Scopes    []string `json:"scopes"`
}

func (r startRequest) validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(r.Timezone) == "":
		return errors.New("missing timezone")
	}
	return nil
}

// userRequest is the shared body of the per-user lifecycle endpoints.
type userRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	SessionID     string   `json:"session_id"`
	UserID        string   `json:"user_id"`
	SubjectID     string   `json:"subject_id,omitempty"`
	Timezone      string   `json:"timezone"`
	Scopes        []string `json:"scopes"`
	State         string   `json:"state"`
	StartedAt     string   `json:"started_at"`
	Interruptions int      `json:"interruptions"`
}

type completeResponse struct {
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	SubjectID       string `json:"subject_id,omitempty"`
	DurationSeconds int64  `json:"duration_seconds"`
	Interruptions   int    `json:"interruptions"`
}

type elapsedResponse struct {
	UserID         string `json:"user_id"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
}

// HandleStart handles POST /sessions/start.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	rec, err := h.deps.StartSession(r.Context(), req.UserID, req.SubjectID, req.Timezone, req.Scopes)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionExists):
			writeError(w, http.StatusConflict, "session_exists", err)
		case errors.Is(err, daykey.ErrUnknownTimezone):
			writeError(w, http.StatusBadRequest, "unknown_timezone", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		SubjectID: rec.SubjectID,
		Timezone:  rec.Timezone,
		Scopes:    rec.Scopes,
		State:     string(rec.State),
		StartedAt: rec.Start.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// HandleHeartbeat handles POST /sessions/heartbeat for clients that
// drive their own tick cadence.
func (h *SessionsHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, func(userID string) (any, error) {
		elapsed, err := h.deps.Heartbeat(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return elapsedResponse{UserID: userID, ElapsedSeconds: elapsed}, nil
	})
}

// HandleInterrupt handles POST /sessions/interrupt.
func (h *SessionsHandler) HandleInterrupt(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, func(userID string) (any, error) {
		if err := h.deps.MarkInterrupted(r.Context(), userID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "interrupted"}, nil
	})
}

// HandleFocus handles POST /sessions/focus (focus regained).
func (h *SessionsHandler) HandleFocus(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, func(userID string) (any, error) {
		if err := h.deps.MarkResumedFocus(r.Context(), userID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "active"}, nil
	})
}

// HandleComplete handles POST /sessions/complete.
func (h *SessionsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, func(userID string) (any, error) {
		cs, err := h.deps.CompleteSession(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return completeResponse{
			SessionID:       cs.SessionID,
			UserID:          cs.UserID,
			SubjectID:       cs.SubjectID,
			DurationSeconds: cs.DurationSeconds,
			Interruptions:   cs.Interruptions,
		}, nil
	})
}

// HandleElapsed handles GET /sessions/elapsed?user_id=X.
func (h *SessionsHandler) HandleElapsed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing user_id"))
		return
	}
	elapsed, err := h.deps.Elapsed(userID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elapsedResponse{UserID: userID, ElapsedSeconds: elapsed})
}

// userAction decodes the shared user body and maps session errors.
func (h *SessionsHandler) userAction(w http.ResponseWriter, r *http.Request, fn func(userID string) (any, error)) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing user_id"))
		return
	}
	resp, err := fn(req.UserID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no_active_session", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
