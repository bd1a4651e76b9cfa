package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-analyzer/internal/analysis"
	"pb-analyzer/internal/engine"
	"pb-analyzer/internal/powerbi"
	"pb-analyzer/internal/source"
)

const salesSchema = `{"Entities":[{"Name":"Sales","Properties":[
  {"Name":"Region"},{"Name":"Amount"},{"Name":"Cost","Hidden":true},{"Name":"Email"}]}]}`

const amountVisual = `{"Select":[{"Column":{"Expression":{"SourceRef":{"Entity":"Sales"}},"Property":"Amount"}}]}`

type memSource struct {
	defs    map[string]*powerbi.Definition
	fetches atomic.Int32
	delay   time.Duration
}

func (m *memSource) Kind() string { return "mem" }

func (m *memSource) List(context.Context) ([]source.Item, error) { return nil, nil }

func (m *memSource) Fetch(ctx context.Context, item source.Item) (*powerbi.Definition, error) {
	m.fetches.Add(1)
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	def, ok := m.defs[item.ID]
	if !ok {
		return nil, errors.New("404 report not found")
	}
	return def, nil
}

func def(schema, visual string) *powerbi.Definition {
	return &powerbi.Definition{Schema: []byte(schema), Exploration: []byte(visual)}
}

func TestExecute_MixedOutcomes(t *testing.T) {
	src := &memSource{defs: map[string]*powerbi.Definition{
		"r1": def(salesSchema, amountVisual),
		"r2": def(`{"Entities":[{"Properties":[]}]}`, `{}`),
		"r3": def(salesSchema, amountVisual),
	}}
	items := []source.Item{
		{ID: "r3", Name: "Copy"},
		{ID: "r1", Name: "Sales"},
		{ID: "r2", Name: "Broken"},
		{ID: "r9", Name: "Gone"},
	}

	var progressed int
	run := engine.Execute(context.Background(), src, items, engine.Options{Workers: 2}, func(engine.Outcome) { progressed++ })
	require.Len(t, run.Outcomes, 4)
	assert.Equal(t, 4, progressed)
	assert.Equal(t, "mem", run.Source)

	byID := map[string]engine.Outcome{}
	var names []string
	for _, o := range run.Outcomes {
		byID[o.Item.ID] = o
		names = append(names, o.Item.Name)
	}
	assert.Equal(t, []string{"Broken", "Copy", "Gone", "Sales"}, names)

	assert.Equal(t, engine.StatusOK, byID["r1"].Status)
	assert.Equal(t, []string{"Sales.Cost", "Sales.Email", "Sales.Region"}, byID["r1"].Result.UnusedColumns)

	// identical definitions are analyzed once but reported under their own id
	assert.Equal(t, "r3", byID["r3"].Result.ReportID)
	assert.Equal(t, "Copy", byID["r3"].Result.ReportName)
	assert.NotEqual(t, byID["r1"].Shared, byID["r3"].Shared)

	assert.Equal(t, "FAILED: schema-parse", byID["r2"].Status)
	assert.True(t, errors.Is(byID["r2"].Err, analysis.ErrSchemaParse))

	assert.Equal(t, "FAILED: fetch", byID["r9"].Status)
	assert.True(t, errors.Is(byID["r9"].Err, analysis.ErrFetch))
}

func TestExecute_Deadline(t *testing.T) {
	src := &memSource{delay: time.Second, defs: map[string]*powerbi.Definition{}}
	var items []source.Item
	for _, id := range []string{"a", "b", "c", "d"} {
		items = append(items, source.Item{ID: id, Name: id})
	}

	start := time.Now()
	run := engine.Execute(context.Background(), src, items, engine.Options{Workers: 1, Timeout: 50 * time.Millisecond}, nil)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	for _, o := range run.Outcomes {
		assert.Equal(t, engine.StatusDeadline, o.Status, o.Item.ID)
		assert.True(t, errors.Is(o.Err, context.DeadlineExceeded))
	}
	// only the first report reached the source
	assert.Equal(t, int32(1), src.fetches.Load())
}

func TestSummarize(t *testing.T) {
	src := &memSource{defs: map[string]*powerbi.Definition{
		"r1": def(salesSchema, amountVisual),
		"r2": def(`{"Entities":[{"Name":"HR","Properties":[{"Name":"Salary"}]}]}`, `{"Select":[{"Column":{"Expression":{"SourceRef":{"Entity":"HR"}},"Property":"Salary"}}]}`),
	}}
	items := []source.Item{{ID: "r1", Name: "Sales"}, {ID: "r2", Name: "HR"}, {ID: "r3", Name: "Ghost"}}
	run := engine.Execute(context.Background(), src, items, engine.Options{}, nil)

	s := engine.Summarize(run)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 2, s.Tables)
	assert.Equal(t, 5, s.Columns)
	assert.Equal(t, 3, s.UnusedColumns)
	assert.Equal(t, 1, s.ReportsWithUnused)
	assert.Equal(t, 1, s.ReportsWithHidden)
	assert.Equal(t, []string{"Sales.Email (email)"}, s.SensitiveUnused)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, "r3", s.Failures[0].ReportID)
	assert.Contains(t, s.Failures[0].Message, "404 report not found")
	assert.Equal(t, run.ID.String(), s.RunID)
}
