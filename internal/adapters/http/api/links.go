package api

import (
	"context"
	"net/http"

	service "github.com/okian/codeboard/internal/app"
	"github.com/okian/codeboard/internal/domain/model"
)

// LinkDependencies covers roster seeding and the platform link workflow.
type LinkDependencies interface {
	CreateStudent(ctx context.Context, req service.CreateStudentRequest) (model.Student, error)
	SubmitPlatformLink(ctx context.Context, req service.SubmitLinkRequest) (model.PlatformLink, error)
	ReviewPlatformLink(ctx context.Context, req service.ReviewLinkRequest) (model.PlatformLink, error)
	RequestManualRefresh(ctx context.Context, studentID string) (int, error)
}

// LinksHandler handles student and platform link requests.
type LinksHandler struct {
	deps LinkDependencies
}

// NewLinksHandler creates a new links handler.
func NewLinksHandler(deps LinkDependencies) *LinksHandler {
	return &LinksHandler{deps: deps}
}

// HandleCreateStudent handles POST /students requests.
func (h *LinksHandler) HandleCreateStudent(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_student"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req service.CreateStudentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	st, err := h.deps.CreateStudent(r.Context(), req)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleSubmitLink handles POST /links requests.
func (h *LinksHandler) HandleSubmitLink(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_link"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req service.SubmitLinkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	link, err := h.deps.SubmitPlatformLink(r.Context(), req)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, link)
}

// HandleReviewLink handles POST /links/review requests.
func (h *LinksHandler) HandleReviewLink(w http.ResponseWriter, r *http.Request) {
	const op = "api.review_link"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req service.ReviewLinkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	link, err := h.deps.ReviewPlatformLink(r.Context(), req)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// HandleRefresh handles POST /refresh/{student_id} requests.
func (h *LinksHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	params := pathParams(r, "/refresh/")
	if len(params) != 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	queued, err := h.deps.RequestManualRefresh(r.Context(), params[0])
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Queued: queued})
}
