package engine

import (
	"slices"
	"time"
)

type Failure struct {
	ReportID   string
	ReportName string
	Status     string
	Message    string
}

// Summary aggregates a run the way the final report presents it. Table and
// column counts are distinct across reports.
type Summary struct {
	RunID             string
	Source            string
	Total             int
	Succeeded         int
	Tables            int
	Columns           int
	UnusedColumns     int
	ReportsWithUnused int
	ReportsWithHidden int
	SensitiveUnused   []string
	Failures          []Failure
	Elapsed           time.Duration
}

func Summarize(run *Run) Summary {
	s := Summary{
		RunID:   run.ID.String(),
		Source:  run.Source,
		Total:   len(run.Outcomes),
		Elapsed: run.Finished.Sub(run.Started),
	}

	tables := make(map[string]bool)
	columns := make(map[string]bool)
	unused := make(map[string]bool)
	sensitive := make(map[string]bool)

	for _, out := range run.Outcomes {
		if out.Err != nil || out.Result == nil {
			s.Failures = append(s.Failures, Failure{
				ReportID:   out.Item.ID,
				ReportName: out.Item.Name,
				Status:     out.Status,
				Message:    errorText(out.Err),
			})
			continue
		}
		res := out.Result
		s.Succeeded++

		for _, t := range res.Tables {
			tables[t] = true
		}
		for _, c := range res.AllColumns {
			columns[c] = true
		}
		for _, c := range res.UnusedColumns {
			unused[c] = true
		}
		for _, sc := range res.SensitiveUnused {
			sensitive[sc.Column+" ("+sc.Meaning+")"] = true
		}
		if len(res.UnusedColumns) > 0 {
			s.ReportsWithUnused++
		}
		if res.HiddenColumnCount > 0 {
			s.ReportsWithHidden++
		}
	}

	s.Tables = len(tables)
	s.Columns = len(columns)
	s.UnusedColumns = len(unused)
	for k := range sensitive {
		s.SensitiveUnused = append(s.SensitiveUnused, k)
	}
	slices.Sort(s.SensitiveUnused)
	return s
}

func errorText(err error) string {
	if err == nil {
		return "no result"
	}
	return err.Error()
}
