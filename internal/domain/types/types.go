// Package types contains common read shapes used across the application
package types

import (
	"time"

	"github.com/okian/codeboard/internal/domain/model"
)

// PlatformView is the gated per-platform breakdown of a ranking entry.
type PlatformView struct {
	Status   model.LinkStatus       `json:"status"`
	Score    int64                  `json:"score"`
	Problems int64                  `json:"problems"`
	Contests int64                  `json:"contests"`
	Metrics  map[model.Metric]int64 `json:"metrics"`
}

// Entry represents a leaderboard row
type Entry struct {
	Rank          int                             `json:"rank"`
	StudentID     string                          `json:"student_id"`
	Name          string                          `json:"name,omitempty"`
	Department    string                          `json:"department,omitempty"`
	Batch         string                          `json:"batch,omitempty"`
	Score         int64                           `json:"score"`
	TotalProblems int64                           `json:"total_problems"`
	TotalContests int64                           `json:"total_contests"`
	Platforms     map[model.Platform]PlatformView `json:"platforms"`
}

// Filter narrows a ranking read. Zero values match everything.
type Filter struct {
	Department string
	Batch      string
	// Platform keeps students whose link on that platform is accepted.
	Platform model.Platform
	// Limit caps the number of rows; 0 means no limit.
	Limit int
}

// Match reports whether e passes the filter, ignoring Limit.
func (f Filter) Match(e *Entry) bool {
	if f.Department != "" && e.Department != f.Department {
		return false
	}
	if f.Batch != "" && e.Batch != f.Batch {
		return false
	}
	if f.Platform != "" {
		v, ok := e.Platforms[f.Platform]
		if !ok || !v.Status.Counts() {
			return false
		}
	}
	return true
}

// Apply filters entries in order and honors Limit.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for i := range entries {
		if !f.Match(&entries[i]) {
			continue
		}
		out = append(out, entries[i])
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Ranking is one full recompute result, ordered by rank.
type Ranking struct {
	Entries    []Entry   `json:"entries"`
	AllZero    bool      `json:"all_zero"`
	ComputedAt time.Time `json:"computed_at"`
}

// Find returns the entry of studentID.
func (r *Ranking) Find(studentID string) (Entry, bool) {
	for i := range r.Entries {
		if r.Entries[i].StudentID == studentID {
			return r.Entries[i], true
		}
	}
	return Entry{}, false
}
