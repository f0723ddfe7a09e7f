package model

import "time"

// PlatformLink is a student's claimed username on one platform plus its
// verification and health status.
type PlatformLink struct {
	StudentID         string     `json:"student_id" db:"student_id"`
	Platform          Platform   `json:"platform" db:"platform"`
	Username          *string    `json:"username,omitempty" db:"username"`
	Status            LinkStatus `json:"status" db:"status"`
	Verified          bool       `json:"verified" db:"verified"`
	VerifiedBy        *string    `json:"verified_by,omitempty" db:"verified_by"`
	RejectionReason   *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	LastScrapeAttempt *time.Time `json:"last_scrape_attempt,omitempty" db:"last_scrape_attempt"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// NewLink returns a link in the initial "none" state.
func NewLink(studentID string, p Platform) PlatformLink {
	return PlatformLink{StudentID: studentID, Platform: p, Status: StatusNone}
}

// Key identifies the link.
func (l *PlatformLink) Key() LinkKey { return LinkKey{StudentID: l.StudentID, Platform: l.Platform} }

// User returns the username or "" when unset.
func (l *PlatformLink) User() string {
	if l.Username == nil {
		return ""
	}
	return *l.Username
}

// Apply moves the link through e and keeps the verified flag consistent with
// the resulting status.
func (l *PlatformLink) Apply(e LinkEvent, at time.Time) error {
	next, err := Transition(l.Status, e)
	if err != nil {
		return err
	}
	l.Status = next
	switch e {
	case EventSubmitForReview, EventReject:
		l.Verified = false
	case EventSubmitTrusted, EventApprove:
		l.Verified = true
	case EventSyncFailed, EventSyncSucceeded:
	}
	l.UpdatedAt = at
	return nil
}

// LinkKey identifies one (student, platform) pair.
type LinkKey struct {
	StudentID string
	Platform  Platform
}

// SyncTask is one unit of synchronization work.
type SyncTask struct {
	StudentID string
	Platform  Platform
	Username  string
}

// Key returns the link key of the task.
func (t SyncTask) Key() LinkKey { return LinkKey{StudentID: t.StudentID, Platform: t.Platform} }

// ID returns a stable identifier used for in-flight de-duplication.
func (t SyncTask) ID() string { return t.StudentID + "/" + string(t.Platform) }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
