package service

import (
	"context"
	"fmt"

	"github.com/okian/codeboard/internal/adapters/platform"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/logger"
)

// CreateStudent adds a student with a zeroed performance record.
func (s *Service) CreateStudent(ctx context.Context, req CreateStudentRequest) (model.Student, error) {
	req.normalize()
	if err := invalid(s.validate, req); err != nil {
		return model.Student{}, err
	}
	st := model.Student{ID: req.ID, Name: req.Name, Department: req.Department, Batch: req.Batch}
	if err := s.store.CreateStudent(ctx, st); err != nil {
		return model.Student{}, err
	}
	s.logger.Info(ctx, "student created", logger.String("student_id", st.ID))
	return st, nil
}

// SubmitPlatformLink records a claimed username. With verification required
// the link waits for review; otherwise it is accepted and synced at once.
func (s *Service) SubmitPlatformLink(ctx context.Context, req SubmitLinkRequest) (model.PlatformLink, error) {
	req.normalize()
	if err := invalid(s.validate, req); err != nil {
		return model.PlatformLink{}, err
	}
	p, err := model.ParsePlatform(req.Platform)
	if err != nil {
		return model.PlatformLink{}, err
	}
	if err := platform.ValidateUsername(p, req.Username); err != nil {
		return model.PlatformLink{}, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}

	event := model.EventSubmitForReview
	if !s.verificationRequired {
		event = model.EventSubmitTrusted
	}
	link, err := s.store.MutateLink(ctx, req.StudentID, p, func(l *model.PlatformLink) error {
		l.Username = model.StringPtr(req.Username)
		l.VerifiedBy = nil
		l.RejectionReason = nil
		return l.Apply(event, s.now())
	})
	if err != nil {
		return model.PlatformLink{}, err
	}
	s.logger.Info(ctx, "platform link submitted",
		logger.String("student_id", req.StudentID),
		logger.String("platform", p.String()),
		logger.String("status", string(link.Status)))

	if link.Status == model.StatusAccepted {
		_ = s.trigger(ctx, model.SyncTask{StudentID: link.StudentID, Platform: p, Username: link.User()})
	}
	return link, nil
}

// ReviewPlatformLink approves or rejects a pending link. Approval triggers a
// sync.
func (s *Service) ReviewPlatformLink(ctx context.Context, req ReviewLinkRequest) (model.PlatformLink, error) {
	req.normalize()
	if err := invalid(s.validate, req); err != nil {
		return model.PlatformLink{}, err
	}
	p, err := model.ParsePlatform(req.Platform)
	if err != nil {
		return model.PlatformLink{}, err
	}
	if _, err := s.store.GetLink(ctx, req.StudentID, p); err != nil {
		return model.PlatformLink{}, err
	}

	approve := req.Action == ActionApprove
	link, err := s.store.MutateLink(ctx, req.StudentID, p, func(l *model.PlatformLink) error {
		if approve {
			if err := l.Apply(model.EventApprove, s.now()); err != nil {
				return err
			}
			l.RejectionReason = nil
		} else {
			if err := l.Apply(model.EventReject, s.now()); err != nil {
				return err
			}
			l.RejectionReason = model.StringPtr(req.Reason)
		}
		l.VerifiedBy = model.StringPtr(req.ReviewerID)
		return nil
	})
	if err != nil {
		return model.PlatformLink{}, err
	}
	s.logger.Info(ctx, "platform link reviewed",
		logger.String("student_id", req.StudentID),
		logger.String("platform", p.String()),
		logger.String("action", req.Action),
		logger.String("reviewer", req.ReviewerID))

	if approve {
		_ = s.trigger(ctx, model.SyncTask{StudentID: link.StudentID, Platform: p, Username: link.User()})
	}
	return link, nil
}

// RequestManualRefresh queues a sync of every accepted or suspended link of
// the student and returns how many were queued.
func (s *Service) RequestManualRefresh(ctx context.Context, studentID string) (int, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return 0, err
	}
	links, err := s.store.ListStudentLinks(ctx, studentID)
	if err != nil {
		return 0, err
	}
	queued := 0
	for i := range links {
		l := &links[i]
		if !l.Status.Syncable() || l.User() == "" {
			continue
		}
		ok, err := s.dispatch(ctx, model.SyncTask{StudentID: studentID, Platform: l.Platform, Username: l.User()}, s.ranking.Request, false)
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	s.logger.Info(ctx, "manual refresh requested", logger.String("student_id", studentID), logger.Int("queued", queued))
	return queued, nil
}
