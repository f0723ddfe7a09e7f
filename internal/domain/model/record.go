package model

import "time"

// Student is a ranked participant.
type Student struct {
	ID         string `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	Department string `json:"department" db:"department"`
	Batch      string `json:"batch" db:"batch"`
	Score      int64  `json:"score" db:"score"`
	Rank       int    `json:"rank" db:"rank"`
}

// PerformanceRecord holds one value per catalogue metric for a student.
type PerformanceRecord struct {
	StudentID   string           `json:"student_id"`
	Values      map[Metric]int64 `json:"values"`
	LastUpdated *time.Time       `json:"last_updated,omitempty"`
}

// NewPerformanceRecord returns a record with every metric zeroed.
func NewPerformanceRecord(studentID string) PerformanceRecord {
	values := make(map[Metric]int64, len(catalogue))
	for m := range catalogue {
		values[m] = 0
	}
	return PerformanceRecord{StudentID: studentID, Values: values}
}

// Value returns the stored value of m.
func (r *PerformanceRecord) Value(m Metric) int64 { return r.Values[m] }

// Merge overwrites the metrics owned by pm.Platform. Owned metrics missing
// from pm are written as zero; metrics owned by other platforms are ignored.
func (r *PerformanceRecord) Merge(pm PlatformMetrics, at time.Time) {
	if r.Values == nil {
		r.Values = make(map[Metric]int64, len(catalogue))
	}
	for _, m := range MetricsFor(pm.Platform) {
		r.Values[m] = pm.Values[m]
	}
	r.LastUpdated = TimePtr(at)
}

// Clone returns a deep copy.
func (r PerformanceRecord) Clone() PerformanceRecord {
	out := r
	out.Values = make(map[Metric]int64, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	if r.LastUpdated != nil {
		out.LastUpdated = TimePtr(*r.LastUpdated)
	}
	return out
}

// StudentSnapshot is the per-student join consumed by the ranking engine.
type StudentSnapshot struct {
	Student Student
	Record  PerformanceRecord
	Links   map[Platform]LinkStatus
}

// Status returns the link status for p, or none when no link exists.
func (s *StudentSnapshot) Status(p Platform) LinkStatus {
	if st, ok := s.Links[p]; ok {
		return st
	}
	return StatusNone
}

// Standing is the score/rank pair written back onto a student.
type Standing struct {
	StudentID string `db:"id"`
	Score     int64  `db:"score"`
	Rank      int    `db:"rank"`
}
