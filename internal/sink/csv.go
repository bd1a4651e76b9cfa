package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"pb-analyzer/internal/engine"
)

// OrgHeaders is the results layout for reports listed through the admin API.
var OrgHeaders = []string{
	"Report Id",
	"Report Name",
	"Shared by",
	"Published to web",
	"Number of hidden columns",
	"Number of columns",
	"Unused columns",
	"Status",
}

// EmbedHeaders replace the last column (the embed URL) of an embed-code export.
var EmbedHeaders = []string{"Number of hidden columns", "All columns", "Unused columns", "Status"}

// WriteResultsCSV writes one row per outcome. With inputHeaders set, rows
// keep the input row minus its last column followed by EmbedHeaders;
// otherwise OrgHeaders are used. Failed reports leave the analysis cells
// blank and carry their status.
func WriteResultsCSV(w io.Writer, run *engine.Run, inputHeaders []string) error {
	cw := csv.NewWriter(w)

	embed := inputHeaders != nil
	var headers []string
	if embed {
		headers = append(dropLast(inputHeaders), EmbedHeaders...)
	} else {
		headers = OrgHeaders
	}
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, out := range run.Outcomes {
		var row []string
		if embed {
			row = embedRow(out, len(headers)-len(EmbedHeaders))
		} else {
			row = orgRow(out)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", out.Item.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveResultsCSV creates (or truncates) path and writes the results into it.
func SaveResultsCSV(path string, run *engine.Run, inputHeaders []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteResultsCSV(f, run, inputHeaders); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func orgRow(out engine.Outcome) []string {
	row := []string{
		out.Item.ID,
		out.Item.Name,
		out.Item.SharedBy,
		strconv.FormatBool(out.Item.PublishedToWeb),
		"", "", "",
		out.Status,
	}
	if res := out.Result; res != nil {
		row[4] = strconv.Itoa(res.HiddenColumnCount)
		row[5] = strconv.Itoa(len(res.AllColumns))
		row[6] = strings.Join(res.UnusedColumns, ", ")
	}
	return row
}

func embedRow(out engine.Outcome, width int) []string {
	row := make([]string, width, width+len(EmbedHeaders))
	copy(row, dropLast(out.Item.Row))

	if res := out.Result; res != nil {
		return append(row,
			strconv.Itoa(res.HiddenColumnCount),
			strings.Join(res.AllColumns, ", "),
			strings.Join(res.UnusedColumns, ", "),
			out.Status)
	}
	return append(row, "", "", "", out.Status)
}

func dropLast(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s[:len(s)-1:len(s)-1]
}
