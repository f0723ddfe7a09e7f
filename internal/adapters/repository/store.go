// Package repository defines the persistence contract of the sync and
// ranking core plus an in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/codeboard/internal/domain/model"
)

// LinkMutator edits a link inside a store transaction. Returning an error
// discards every change.
type LinkMutator func(link *model.PlatformLink) error

// SyncMutator edits a link and the owning student's record together.
type SyncMutator func(link *model.PlatformLink, rec *model.PerformanceRecord) error

// Stats summarizes store contents.
type Stats struct {
	Students      int                      `json:"students"`
	Links         map[model.LinkStatus]int `json:"links"`
	Notifications int                      `json:"notifications"`
}

// Store provides read/write access to students, links, records, the grading
// rule and notifications. Writes are row-scoped and atomic.
type Store interface {
	// CreateStudent adds a student with a zeroed performance record.
	CreateStudent(ctx context.Context, s model.Student) error
	// GetStudent returns ErrNotFound for unknown ids.
	GetStudent(ctx context.Context, id string) (model.Student, error)

	// GetLink returns ErrNotFound when the student has no link on p.
	GetLink(ctx context.Context, studentID string, p model.Platform) (model.PlatformLink, error)
	ListLinks(ctx context.Context) ([]model.PlatformLink, error)
	ListStudentLinks(ctx context.Context, studentID string) ([]model.PlatformLink, error)
	// MutateLink applies fn to the link, creating it in status none first
	// when missing. The student must exist.
	MutateLink(ctx context.Context, studentID string, p model.Platform, fn LinkMutator) (model.PlatformLink, error)
	// ApplySync applies fn to an existing link and the student's record.
	ApplySync(ctx context.Context, studentID string, p model.Platform, fn SyncMutator) error

	GetRecord(ctx context.Context, studentID string) (model.PerformanceRecord, error)

	// Snapshot reads every student with record and link statuses consistently.
	Snapshot(ctx context.Context) ([]model.StudentSnapshot, error)
	// SaveRanking writes score and rank of every listed student in one
	// transaction, touching no other column.
	SaveRanking(ctx context.Context, standings []model.Standing) error

	Points(ctx context.Context) (map[model.Metric]int64, error)
	SetPoints(ctx context.Context, metric model.Metric, points int64) error
	// SeedPoints inserts defaults for metrics without an entry.
	SeedPoints(ctx context.Context, defaults map[model.Metric]int64) error

	AppendNotification(ctx context.Context, n model.Notification) error
	// ListNotifications returns newest first.
	ListNotifications(ctx context.Context, studentID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, studentID, id string) error

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
