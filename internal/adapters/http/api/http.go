// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/internal/domain/types"
)

// Dependencies bundles what the handlers need from the service layer.
// An interface keeps the transport loosely coupled to the app wiring.
type Dependencies interface {
	// Session lifecycle.
	StartSession(ctx context.Context, userID, subjectID, tz string, scopes []string) (model.SessionRecord, error)
	Heartbeat(ctx context.Context, userID string) (int64, error)
	MarkInterrupted(ctx context.Context, userID string) error
	MarkResumedFocus(ctx context.Context, userID string) error
	CompleteSession(ctx context.Context, userID string) (model.CompletedSession, error)
	Elapsed(userID string) (int64, error)

	// Leaderboard reads.
	TopN(ctx context.Context, scope, tz string, n int) ([]Entry, error)
	Rank(ctx context.Context, scope, tz, userID string) (Entry, error)
	UserToday(ctx context.Context, scope, tz, userID string) (int64, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionsHandler:    NewSessionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/sessions/start", MetricsMiddleware(s.sessionsHandler.HandleStart, "sessions_start"))
	mux.HandleFunc("/sessions/heartbeat", MetricsMiddleware(s.sessionsHandler.HandleHeartbeat, "sessions_heartbeat"))
	mux.HandleFunc("/sessions/interrupt", MetricsMiddleware(s.sessionsHandler.HandleInterrupt, "sessions_interrupt"))
	mux.HandleFunc("/sessions/focus", MetricsMiddleware(s.sessionsHandler.HandleFocus, "sessions_focus"))
	mux.HandleFunc("/sessions/complete", MetricsMiddleware(s.sessionsHandler.HandleComplete, "sessions_complete"))
	mux.HandleFunc("/sessions/elapsed", MetricsMiddleware(s.sessionsHandler.HandleElapsed, "sessions_elapsed"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
