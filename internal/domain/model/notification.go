package model

import "time"

// Notification status tags.
const (
	TagSuspended   = "suspended"
	TagReactivated = "reactivated"
)

// Notification is an outbound message to a student.
type Notification struct {
	ID        string    `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	StatusTag string    `json:"status_tag" db:"status_tag"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
