package api

import (
	"context"
	"net/http"

	service "github.com/okian/codeboard/internal/app"
	"github.com/okian/codeboard/internal/domain/model"
)

// GradingDependencies reads and updates the grading rule.
type GradingDependencies interface {
	GradingRule(ctx context.Context) (map[model.Metric]int64, error)
	SetGradingPoints(ctx context.Context, req service.SetPointsRequest) error
}

// GradingHandler handles grading rule requests.
type GradingHandler struct {
	deps GradingDependencies
}

// NewGradingHandler creates a new grading handler.
func NewGradingHandler(deps GradingDependencies) *GradingHandler {
	return &GradingHandler{deps: deps}
}

// HandleGrading serves GET /grading (full mapping) and PUT /grading (one
// metric). The ranking picks up changes on its next recompute.
func (h *GradingHandler) HandleGrading(w http.ResponseWriter, r *http.Request) {
	const op = "api.grading"
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req service.SetPointsRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		if err := h.deps.SetGradingPoints(r.Context(), req); err != nil {
			writeDomainError(w, Wrap(op, err))
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	rule, err := h.deps.GradingRule(r.Context())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
