package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/codeboard/internal/domain/model"
)

// Review actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// CreateStudentRequest seeds one roster entry.
type CreateStudentRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	Department string `json:"department" validate:"max=100"`
	Batch      string `json:"batch" validate:"max=50"`
}

func (r *CreateStudentRequest) normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.Department = strings.TrimSpace(r.Department)
	r.Batch = strings.TrimSpace(r.Batch)
}

// SubmitLinkRequest claims a username on a platform.
type SubmitLinkRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Platform  string `json:"platform" validate:"required,oneof=leetcode codechef codeforces hackerrank github"`
	Username  string `json:"username" validate:"required,max=64"`
}

func (r *SubmitLinkRequest) normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	r.Username = strings.TrimSpace(r.Username)
}

// ReviewLinkRequest approves or rejects a pending link. Reason is required
// when rejecting.
type ReviewLinkRequest struct {
	StudentID  string `json:"student_id" validate:"required"`
	Platform   string `json:"platform" validate:"required,oneof=leetcode codechef codeforces hackerrank github"`
	Action     string `json:"action" validate:"required,oneof=approve reject"`
	ReviewerID string `json:"reviewer_id" validate:"required"`
	Reason     string `json:"reason" validate:"required_if=Action reject,max=500"`
}

func (r *ReviewLinkRequest) normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.ReviewerID = strings.TrimSpace(r.ReviewerID)
	r.Reason = strings.TrimSpace(r.Reason)
}

// SetPointsRequest updates the points of one metric.
type SetPointsRequest struct {
	Metric string `json:"metric" validate:"required"`
	Points int64  `json:"points" validate:"min=0"`
}

func (r *SetPointsRequest) normalize() { r.Metric = strings.TrimSpace(r.Metric) }

func invalid(v *validator.Validate, req any) error {
	if err := v.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return nil
}
