package model

import "sort"

// Metric names one numeric field of a PerformanceRecord.
type Metric string

// MetricKind groups metrics for the derived ranking view.
type MetricKind int

// Metric kinds.
const (
	KindOther MetricKind = iota
	KindProblems
	KindContests
)

// Metric catalogue.
const (
	EasyLC     Metric = "easy_lc"
	MediumLC   Metric = "medium_lc"
	HardLC     Metric = "hard_lc"
	ContestsLC Metric = "contests_lc"
	BadgesLC   Metric = "badges_lc"

	ProblemsCC Metric = "problems_cc"
	ContestsCC Metric = "contests_cc"
	StarsCC    Metric = "stars_cc"

	ProblemsCF Metric = "problems_cf"
	ContestsCF Metric = "contests_cf"

	StarsHR  Metric = "stars_hr"
	BadgesHR Metric = "badges_hr"

	ReposGH         Metric = "repos_gh"
	ContributionsGH Metric = "contributions_gh"
)

type metricInfo struct {
	platform Platform
	kind     MetricKind
}

var catalogue = map[Metric]metricInfo{
	EasyLC:     {LeetCode, KindProblems},
	MediumLC:   {LeetCode, KindProblems},
	HardLC:     {LeetCode, KindProblems},
	ContestsLC: {LeetCode, KindContests},
	BadgesLC:   {LeetCode, KindOther},

	ProblemsCC: {CodeChef, KindProblems},
	ContestsCC: {CodeChef, KindContests},
	StarsCC:    {CodeChef, KindOther},

	ProblemsCF: {Codeforces, KindProblems},
	ContestsCF: {Codeforces, KindContests},

	StarsHR:  {HackerRank, KindOther},
	BadgesHR: {HackerRank, KindOther},

	ReposGH:         {GitHub, KindOther},
	ContributionsGH: {GitHub, KindOther},
}

// Known reports whether m is part of the catalogue.
func (m Metric) Known() bool {
	_, ok := catalogue[m]
	return ok
}

// Platform returns the platform owning m, or "" for unknown metrics.
func (m Metric) Platform() Platform { return catalogue[m].platform }

// Kind returns the metric kind.
func (m Metric) Kind() MetricKind { return catalogue[m].kind }

// AllMetrics returns the catalogue sorted by name.
func AllMetrics() []Metric {
	out := make([]Metric, 0, len(catalogue))
	for m := range catalogue {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MetricsFor returns the metrics owned by p, sorted by name.
func MetricsFor(p Platform) []Metric {
	var out []Metric
	for m, info := range catalogue {
		if info.platform == p {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PlatformMetrics is the normalized result of one adapter fetch.
type PlatformMetrics struct {
	Platform Platform
	Values   map[Metric]int64
}
