package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/codeboard/internal/domain/model"
)

func metricColumns() []string {
	ms := model.AllMetrics()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}

func schema() []string {
	var cols strings.Builder
	for _, c := range metricColumns() {
		fmt.Fprintf(&cols, "\n\t%s BIGINT NOT NULL DEFAULT 0,", c)
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	batch TEXT NOT NULL DEFAULT '',
	score BIGINT NOT NULL DEFAULT 0,
	rank INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS performance_records (
	student_id TEXT PRIMARY KEY REFERENCES students(id) ON DELETE CASCADE,` + cols.String() + `
	last_updated TIMESTAMPTZ
)`,
		`CREATE TABLE IF NOT EXISTS platform_links (
	student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	platform TEXT NOT NULL,
	username TEXT,
	status TEXT NOT NULL DEFAULT 'none',
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	verified_by TEXT,
	rejection_reason TEXT,
	last_scrape_attempt TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (student_id, platform)
)`,
		`CREATE INDEX IF NOT EXISTS platform_links_status_idx ON platform_links (status)`,
		`CREATE TABLE IF NOT EXISTS grading_points (
	metric TEXT PRIMARY KEY,
	points BIGINT NOT NULL CHECK (points >= 0)
)`,
		`CREATE TABLE IF NOT EXISTS notifications (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	status_tag TEXT NOT NULL,
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
		`CREATE INDEX IF NOT EXISTS notifications_student_idx ON notifications (student_id, created_at DESC)`,
	}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
