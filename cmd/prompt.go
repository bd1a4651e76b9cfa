package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"
)

// outputFiles are the two files a batch run writes.
type outputFiles struct {
	Results        string
	Summary        string
	DefaultResults bool
	DefaultSummary bool
}

// resolveOutputFiles applies Flag > Config > Default. Defaults are
// timestamped names in the output directory.
func resolveOutputFiles(cfg OutputConfig, resultsFlag, summaryFlag string, now time.Time) (outputFiles, error) {
	files := outputFiles{Results: resultsFlag, Summary: summaryFlag}
	if files.Results == "" {
		files.Results = cfg.Results
	}
	if files.Summary == "" {
		files.Summary = cfg.Summary
	}

	if files.Results != "" && !strings.EqualFold(filepath.Ext(files.Results), ".csv") {
		return files, fmt.Errorf("output file must be a CSV file: %s", files.Results)
	}
	if files.Summary != "" && !strings.EqualFold(filepath.Ext(files.Summary), ".txt") {
		return files, fmt.Errorf("summary file must be a TXT file: %s", files.Summary)
	}

	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if files.Results == "" {
		files.Results = filepath.Join(dir, fmt.Sprintf("SharedReportsWithUnusedData_%d.csv", now.Unix()))
		files.DefaultResults = true
	}
	if files.Summary == "" {
		files.Summary = filepath.Join(dir, fmt.Sprintf("PBAnalyzerResults_%d.txt", now.Unix()))
		files.DefaultSummary = true
	}
	return files, nil
}

// relocate moves the default files into dir; explicit paths stay put.
func (f *outputFiles) relocate(dir string) {
	if f.DefaultResults {
		f.Results = filepath.Join(dir, filepath.Base(f.Results))
	}
	if f.DefaultSummary {
		f.Summary = filepath.Join(dir, filepath.Base(f.Summary))
	}
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// promptOutputDir asks for another output directory. An empty answer keeps
// current. Anything that looks like a file name is rejected.
func promptOutputDir(in io.Reader, out io.Writer, current string) string {
	fmt.Fprintf(out, "📁 Default output directory: %s\n", current)
	fmt.Fprintln(out, "Press Enter to continue with the default directory or type a new directory.")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return current
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		fmt.Fprintf(out, "Output directory: %s\n\n", current)
		return current
	}

	if strings.Contains(filepath.Base(answer), ".") && answer != "." && answer != ".." {
		fmt.Fprintln(out, "Invalid directory. Using default paths.")
		return current
	}
	if err := os.MkdirAll(answer, 0o755); err != nil {
		fmt.Fprintf(out, "Cannot create %s: %v. Using default paths.\n", answer, err)
		return current
	}

	fmt.Fprintf(out, "Output directory: %s\n\n", answer)
	return answer
}
