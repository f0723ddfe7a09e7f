package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/okian/codeboard/internal/domain/types"
)

// AdminDependencies triggers batch operations.
type AdminDependencies interface {
	RunScheduledSync(ctx context.Context) error
	Recompute(ctx context.Context) (types.Ranking, error)
}

// AdminHandler handles manual batch triggers.
type AdminHandler struct {
	deps    AdminDependencies
	base    context.Context
	syncing atomic.Bool
}

// NewAdminHandler creates an admin handler. Syncs it starts run under base.
func NewAdminHandler(base context.Context, deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps, base: base}
}

type recomputeResponse struct {
	Students   int       `json:"students"`
	AllZero    bool      `json:"all_zero"`
	ComputedAt time.Time `json:"computed_at"`
}

// HandleSync handles POST /admin/sync. The sync runs in the background; a
// request made while one is running is acknowledged without starting another.
func (h *AdminHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.syncing.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "already_running"})
		return
	}
	go func() {
		defer h.syncing.Store(false)
		_ = h.deps.RunScheduledSync(h.base)
	}()
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleRecompute handles POST /admin/recompute and waits for the result.
func (h *AdminHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.Recompute(r.Context())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, recomputeResponse{
		Students:   len(res.Entries),
		AllZero:    res.AllZero,
		ComputedAt: res.ComputedAt,
	})
}
