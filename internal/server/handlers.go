package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/strategy-validator/internal/models"
	"github.com/yourusername/strategy-validator/internal/validation"
)

// startRequest overrides the default session config; zero values keep the default.
type startRequest struct {
	StrategyID            string                        `json:"strategy_id"`
	PacingIntervalSeconds *int                          `json:"pacing_interval_seconds"`
	MaxTotalTests         int                           `json:"max_total_tests"`
	DefaultWindowDays     int                           `json:"default_window_days"`
	AutoAdjust            *bool                         `json:"auto_adjust"`
	StopOnProfitability   *bool                         `json:"stop_on_profitability"`
	RunTimeoutSeconds     int                           `json:"run_timeout_seconds"`
	PollIntervalMs        int                           `json:"poll_interval_ms"`
	Criteria              *models.ProfitabilityCriteria `json:"criteria"`
}

type startResponse struct {
	ID uuid.UUID `json:"id"`
}

type sessionResponse struct {
	models.SessionSnapshot
	Processing bool `json:"processing"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (req startRequest) apply(cfg models.SessionConfig) models.SessionConfig {
	if req.StrategyID != "" {
		cfg.StrategyID = req.StrategyID
	}
	if req.PacingIntervalSeconds != nil {
		cfg.PacingInterval = time.Duration(*req.PacingIntervalSeconds) * time.Second
	}
	if req.MaxTotalTests > 0 {
		cfg.MaxTotalTests = req.MaxTotalTests
	}
	if req.DefaultWindowDays > 0 {
		cfg.DefaultWindowDays = req.DefaultWindowDays
	}
	if req.AutoAdjust != nil {
		cfg.AutoAdjust = *req.AutoAdjust
	}
	if req.StopOnProfitability != nil {
		cfg.StopOnProfitability = *req.StopOnProfitability
	}
	if req.RunTimeoutSeconds > 0 {
		cfg.RunTimeout = time.Duration(req.RunTimeoutSeconds) * time.Second
	}
	if req.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(req.PollIntervalMs) * time.Millisecond
	}
	if req.Criteria != nil {
		cfg.Criteria = *req.Criteria
	}
	return cfg
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	id, err := s.sessions.Start(actorContext(r), req.apply(s.cfg.Defaults))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{ID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snapshots := s.sessions.List()
	out := make([]sessionResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, sessionResponse{SessionSnapshot: snap, Processing: snap.IsProcessing()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.sessions.Status(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionSnapshot: snap, Processing: snap.IsProcessing()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	history, err := s.sessions.History(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var action func(context.Context, uuid.UUID) error
	switch r.PathValue("action") {
	case "pause":
		action = s.sessions.Pause
	case "resume":
		action = s.sessions.Resume
	case "stop":
		action = s.sessions.Stop
	case "reset":
		action = s.sessions.Reset
	case "restart":
		action = s.sessions.Restart
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown action %q", r.PathValue("action")))
		return
	}

	if err := action(actorContext(r), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	snap, err := s.sessions.Status(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionSnapshot: snap, Processing: snap.IsProcessing()})
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", models.ErrInvalidID, raw)
	}
	return id, nil
}

// actorContext tags the request context with the caller for audit logs.
func actorContext(r *http.Request) context.Context {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = r.RemoteAddr
	}
	return validation.WithActor(r.Context(), actor)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, validation.ErrInvalidConfig), errors.Is(err, models.ErrInvalidID):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
