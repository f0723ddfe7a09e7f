package grading

import "github.com/okian/codeboard/internal/domain/model"

// DefaultPoints is the rule used when configuration provides none.
func DefaultPoints() map[model.Metric]int64 {
	return map[model.Metric]int64{
		model.EasyLC:          1,
		model.MediumLC:        3,
		model.HardLC:          5,
		model.ContestsLC:      2,
		model.BadgesLC:        2,
		model.ProblemsCC:      2,
		model.ContestsCC:      2,
		model.StarsCC:         5,
		model.ProblemsCF:      2,
		model.ContestsCF:      2,
		model.StarsHR:         5,
		model.BadgesHR:        2,
		model.ReposGH:         1,
		model.ContributionsGH: 0,
	}
}

// ParsePoints converts a configuration map into a validated rule mapping.
// Unknown metric names are returned as an error.
func ParsePoints(raw map[string]int64) (map[model.Metric]int64, error) {
	out := make(map[model.Metric]int64, len(raw))
	for name, p := range raw {
		m := model.Metric(name)
		if !m.Known() {
			return nil, unknownMetric(name)
		}
		out[m] = p
	}
	return out, nil
}
