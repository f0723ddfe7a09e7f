package model

import (
	"database/sql/driver"
	"fmt"
)

// LinkStatus is the verification/health state of a PlatformLink.
type LinkStatus string

// Link statuses.
const (
	StatusNone      LinkStatus = "none"
	StatusPending   LinkStatus = "pending"
	StatusAccepted  LinkStatus = "accepted"
	StatusRejected  LinkStatus = "rejected"
	StatusSuspended LinkStatus = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s LinkStatus) Valid() bool {
	switch s {
	case StatusNone, StatusPending, StatusAccepted, StatusRejected, StatusSuspended:
		return true
	}
	return false
}

// Counts reports whether metrics of a link in this status contribute to scoring.
func (s LinkStatus) Counts() bool { return s == StatusAccepted }

// Syncable reports whether a link in this status may be synchronized.
func (s LinkStatus) Syncable() bool { return s == StatusAccepted || s == StatusSuspended }

// Value implements driver.Valuer.
func (s LinkStatus) Value() (driver.Value, error) { return string(s), nil }

// Scan implements sql.Scanner.
func (s *LinkStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = StatusNone
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan link status: unsupported type %T", src)
	}
	st := LinkStatus(raw)
	if !st.Valid() {
		return fmt.Errorf("scan link status: unknown value %q", raw)
	}
	*s = st
	return nil
}

// LinkEvent drives a status transition.
type LinkEvent int

// Link events.
const (
	EventSubmitForReview LinkEvent = iota // username submitted, verification required
	EventSubmitTrusted                    // username submitted, verification disabled
	EventApprove
	EventReject
	EventSyncFailed
	EventSyncSucceeded
)

func (e LinkEvent) String() string {
	switch e {
	case EventSubmitForReview:
		return "submit_for_review"
	case EventSubmitTrusted:
		return "submit_trusted"
	case EventApprove:
		return "approve"
	case EventReject:
		return "reject"
	case EventSyncFailed:
		return "sync_failed"
	case EventSyncSucceeded:
		return "sync_succeeded"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Transition returns the status reached from s on event e. Pairs not listed
// are illegal, e.g. pending cannot be suspended and rejected cannot be approved.
func Transition(s LinkStatus, e LinkEvent) (LinkStatus, error) {
	switch e {
	case EventSubmitForReview:
		if s.Valid() {
			return StatusPending, nil
		}
	case EventSubmitTrusted:
		if s.Valid() {
			return StatusAccepted, nil
		}
	case EventApprove:
		if s == StatusPending {
			return StatusAccepted, nil
		}
	case EventReject:
		if s == StatusPending {
			return StatusRejected, nil
		}
	case EventSyncFailed:
		if s.Syncable() {
			return StatusSuspended, nil
		}
	case EventSyncSucceeded:
		if s.Syncable() {
			return StatusAccepted, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, s)
}
