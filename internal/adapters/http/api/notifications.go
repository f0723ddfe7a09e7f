package api

import (
	"context"
	"net/http"

	"github.com/okian/codeboard/internal/domain/model"
)

// NotificationDependencies lists and acknowledges notifications.
type NotificationDependencies interface {
	Notifications(ctx context.Context, studentID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, studentID, id string) error
}

// NotificationHandler handles notification requests.
type NotificationHandler struct {
	deps NotificationDependencies
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(deps NotificationDependencies) *NotificationHandler {
	return &NotificationHandler{deps: deps}
}

// HandleNotifications serves GET /notifications/{student_id} and
// POST /notifications/{student_id}/{id}/read.
func (h *NotificationHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	const op = "api.notifications"
	params := pathParams(r, "/notifications/")
	switch {
	case r.Method == http.MethodGet && len(params) == 1:
		list, err := h.deps.Notifications(r.Context(), params[0])
		if err != nil {
			writeDomainError(w, Wrap(op, err))
			return
		}
		if list == nil {
			list = []model.Notification{}
		}
		writeJSON(w, http.StatusOK, list)
	case r.Method == http.MethodPost && len(params) == 3 && params[2] == "read":
		if err := h.deps.MarkNotificationRead(r.Context(), params[0], params[1]); err != nil {
			writeDomainError(w, Wrap(op, err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet || r.Method == http.MethodPost:
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
	default:
		http.NotFound(w, r)
	}
}
