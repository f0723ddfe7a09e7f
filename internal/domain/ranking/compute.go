package ranking

import (
	"sort"

	"github.com/okian/codeboard/internal/domain/grading"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/types"
)

// Compute scores, orders and ranks a snapshot. Ties on score are broken by
// student id ascending, so the order is total and ranks have no gaps. The
// second return value reports the all-zero case, where the order is by id.
func Compute(rule grading.Rule, snaps []model.StudentSnapshot) ([]types.Entry, bool) {
	entries := make([]types.Entry, 0, len(snaps))
	allZero := true
	for i := range snaps {
		e := enrich(rule, &snaps[i])
		if e.Score != 0 {
			allZero = false
		}
		entries = append(entries, e)
	}

	if allZero {
		sort.Slice(entries, func(i, j int) bool { return entries[i].StudentID < entries[j].StudentID })
	} else {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Score != entries[j].Score {
				return entries[i].Score > entries[j].Score
			}
			return entries[i].StudentID < entries[j].StudentID
		})
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, allZero
}

// enrich builds the gated per-platform view of one student.
func enrich(rule grading.Rule, snap *model.StudentSnapshot) types.Entry {
	statuses := make(map[model.Platform]model.LinkStatus, len(model.Platforms))
	for _, p := range model.Platforms {
		statuses[p] = snap.Status(p)
	}

	e := types.Entry{
		StudentID:  snap.Student.ID,
		Name:       snap.Student.Name,
		Department: snap.Student.Department,
		Batch:      snap.Student.Batch,
		Platforms:  make(map[model.Platform]types.PlatformView, len(model.Platforms)),
	}
	for _, p := range model.Platforms {
		view := types.PlatformView{
			Status:  statuses[p],
			Metrics: make(map[model.Metric]int64),
		}
		for _, m := range model.MetricsFor(p) {
			v := grading.Gated(&snap.Record, statuses, m)
			view.Metrics[m] = v
			view.Score += v * rule.Points(m)
			switch m.Kind() {
			case model.KindProblems:
				view.Problems += v
			case model.KindContests:
				view.Contests += v
			case model.KindOther:
			}
		}
		e.Score += view.Score
		e.TotalProblems += view.Problems
		e.TotalContests += view.Contests
		e.Platforms[p] = view
	}
	return e
}

// Standings projects entries onto the write-back shape.
func Standings(entries []types.Entry) []model.Standing {
	out := make([]model.Standing, len(entries))
	for i, e := range entries {
		out[i] = model.Standing{StudentID: e.StudentID, Score: e.Score, Rank: e.Rank}
	}
	return out
}
