package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/types"
)

const podium = 3

func renderRanking(w io.Writer, entries []types.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, color.YellowString("no ranked students match"))
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Student", "Name", "Department", "Batch", "Score", "Problems", "Contests"})
	for _, e := range entries {
		rank := strconv.Itoa(e.Rank)
		if e.Rank <= podium {
			rank = color.YellowString(rank)
		}
		table.Append([]string{
			rank,
			e.StudentID,
			e.Name,
			e.Department,
			e.Batch,
			color.GreenString(strconv.FormatInt(e.Score, 10)),
			strconv.FormatInt(e.TotalProblems, 10),
			strconv.FormatInt(e.TotalContests, 10),
		})
	}
	table.Render()
}

func renderEntry(w io.Writer, e types.Entry) {
	fmt.Fprintf(w, "%s #%d %s (%s)  score %s\n",
		color.CyanString("rank"), e.Rank, e.StudentID, e.Name, color.GreenString(strconv.FormatInt(e.Score, 10)))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Platform", "Status", "Score", "Problems", "Contests"})
	for _, p := range model.Platforms {
		v, ok := e.Platforms[p]
		if !ok {
			continue
		}
		table.Append([]string{
			p.String(),
			statusString(v.Status),
			strconv.FormatInt(v.Score, 10),
			strconv.FormatInt(v.Problems, 10),
			strconv.FormatInt(v.Contests, 10),
		})
	}
	table.Render()
}

func statusString(s model.LinkStatus) string {
	switch s {
	case model.StatusAccepted:
		return color.GreenString(string(s))
	case model.StatusSuspended, model.StatusRejected:
		return color.RedString(string(s))
	case model.StatusPending:
		return color.YellowString(string(s))
	}
	return string(s)
}

func renderStats(w io.Writer, stats map[string]any) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Value"})
	for _, k := range keys {
		table.Append([]string{k, formatValue(stats[k])})
	}
	table.Render()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case map[model.LinkStatus]int:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+strconv.Itoa(t[model.LinkStatus(k)]))
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}
