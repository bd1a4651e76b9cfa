package analysis

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaParse = errors.New("schema parse error")
	ErrFetch       = errors.New("fetch error")
)

type FailureKind int

const (
	FailureSchemaParse FailureKind = iota
	FailureFetch
)

func (k FailureKind) String() string {
	switch k {
	case FailureSchemaParse:
		return "schema-parse"
	case FailureFetch:
		return "fetch"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

func (k FailureKind) sentinel() error {
	if k == FailureFetch {
		return ErrFetch
	}
	return ErrSchemaParse
}

// AnalysisFailure is the per-report error outcome. It matches ErrSchemaParse
// or ErrFetch with errors.Is, and unwraps to the underlying cause.
type AnalysisFailure struct {
	Kind       FailureKind
	ReportID   string
	ReportName string
	Err        error
}

func (f *AnalysisFailure) Error() string {
	name := f.ReportName
	if name == "" {
		name = f.ReportID
	}
	return fmt.Sprintf("analyze report %q: %s: %v", name, f.Kind, f.Err)
}

func (f *AnalysisFailure) Unwrap() []error {
	return []error{f.Kind.sentinel(), f.Err}
}

// FetchFailure wraps an error raised while retrieving a report definition,
// so that callers can report it alongside analysis failures.
func FetchFailure(reportID, reportName string, err error) *AnalysisFailure {
	return &AnalysisFailure{Kind: FailureFetch, ReportID: reportID, ReportName: reportName, Err: err}
}
