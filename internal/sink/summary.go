package sink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pb-analyzer/internal/engine"
)

const (
	bannerWidth = 65
	projectName = "Power BI Analyzer"
)

var banner = strings.Repeat("=", bannerWidth)

// Center pads s with spaces on both sides to width, left-biased like
// Python's str.center.
func Center(s string, width int) string {
	n := width - len(s)
	if n <= 0 {
		return s
	}
	left := n / 2
	if n%2 == 1 && width%2 == 1 {
		left++
	}
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", n-left)
}

// ResultLines renders the counters of a run summary, one per line.
func ResultLines(s engine.Summary) []string {
	lines := []string{
		fmt.Sprintf("Number of reports analyzed successfully: %d/%d", s.Succeeded, s.Total),
		fmt.Sprintf("Total tables scanned: %d", s.Tables),
		fmt.Sprintf("Unique columns scanned: %d", s.Columns),
		fmt.Sprintf("Unused columns found: %d", s.UnusedColumns),
		fmt.Sprintf("Reports with unused columns: %d", s.ReportsWithUnused),
		fmt.Sprintf("Reports with hidden columns: %d", s.ReportsWithHidden),
		fmt.Sprintf("Scan time: %s", FormatElapsed(s.Elapsed)),
	}
	if len(s.SensitiveUnused) > 0 {
		lines = append(lines, fmt.Sprintf("Sensitive unused columns: %d", len(s.SensitiveUnused)))
		for _, c := range s.SensitiveUnused {
			lines = append(lines, "  - "+c)
		}
	}
	return lines
}

// ErrorLines has one line per failed report.
func ErrorLines(s engine.Summary) []string {
	lines := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		lines = append(lines, fmt.Sprintf("Failed to analyze %q. Error: %q", f.ReportID, f.Message))
	}
	return lines
}

// FormatElapsed prints h:mm:ss.ffffff.
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Microsecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second
	return fmt.Sprintf("%d:%02d:%02d.%06d", h, m, sec, d/time.Microsecond)
}

// WriteSummary writes the plain-text run report: title, result counters,
// failures and the location of the full results.
func WriteSummary(w io.Writer, tool string, s engine.Summary, resultsPath string) error {
	lines := []string{"", "Project: " + projectName, "Tool: " + tool, ""}
	lines = append(lines, banner, Center("Results", bannerWidth), banner, "")
	lines = append(lines, ResultLines(s)...)
	lines = append(lines, "", banner)
	lines = append(lines, ErrorLines(s)...)
	if resultsPath != "" {
		lines = append(lines, "", "Full analysis saved to "+resultsPath)
	}

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

func SaveSummary(path, tool string, s engine.Summary, resultsPath string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteSummary(f, tool, s, resultsPath); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
