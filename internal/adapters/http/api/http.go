// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/codeboard/internal/adapters/repository"
	service "github.com/okian/codeboard/internal/app"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/types"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider
	LeaderboardDependencies
	RankDependencies
	LinkDependencies
	GradingDependencies
	NotificationDependencies
	AdminDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	leaderboardHandler  *LeaderboardHandler
	rankHandler         *RankHandler
	linksHandler        *LinksHandler
	gradingHandler      *GradingHandler
	notificationHandler *NotificationHandler
	deps                Dependencies
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(deps),
		leaderboardHandler:  NewLeaderboardHandler(deps, maxLimit),
		rankHandler:         NewRankHandler(deps),
		linksHandler:        NewLinksHandler(deps),
		gradingHandler:      NewGradingHandler(deps),
		notificationHandler: NewNotificationHandler(deps),
		deps:                deps,
	}
}

// Register attaches all HTTP routes to mux. Background syncs started over
// HTTP run under ctx.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	admin := NewAdminHandler(ctx, s.deps)

	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/students", MetricsMiddleware(s.linksHandler.HandleCreateStudent, "students"))
	mux.HandleFunc("/links", MetricsMiddleware(s.linksHandler.HandleSubmitLink, "links"))
	mux.HandleFunc("/links/review", MetricsMiddleware(s.linksHandler.HandleReviewLink, "links_review"))
	mux.HandleFunc("/refresh/", MetricsMiddleware(s.linksHandler.HandleRefresh, "refresh"))
	mux.HandleFunc("/grading", MetricsMiddleware(s.gradingHandler.HandleGrading, "grading"))
	mux.HandleFunc("/notifications/", MetricsMiddleware(s.notificationHandler.HandleNotifications, "notifications"))
	mux.HandleFunc("/admin/sync", MetricsMiddleware(admin.HandleSync, "admin_sync"))
	mux.HandleFunc("/admin/recompute", MetricsMiddleware(admin.HandleRecompute, "admin_recompute"))
}

type ackResponse struct {
	Status string `json:"status"`
	Queued int    `json:"queued,omitempty"`
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
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrDuplicateStudent):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, model.ErrUnknownMetric):
		return http.StatusBadRequest, "unknown_metric"
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrBackpressure), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// pathParams splits the path after prefix into its non-empty segments.
func pathParams(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
