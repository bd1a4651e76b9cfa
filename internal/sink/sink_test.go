package sink

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-analyzer/internal/analysis"
	"pb-analyzer/internal/dialect"
	"pb-analyzer/internal/engine"
	"pb-analyzer/internal/source"
)

func sampleRun() *engine.Run {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &engine.Run{
		ID:       uuid.MustParse("6f1c3c1e-8a38-4c4f-9d5e-0b7f0d6a1b11"),
		Source:   "org",
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Outcomes: []engine.Outcome{
			{
				Item: source.Item{ID: "r1", Name: "Sales", SharedBy: "ana@contoso.com", PublishedToWeb: true,
					Row: []string{"Sales", "Workspace A", "Active", "ana@contoso.com", "https://app.powerbi.com/view?r=x"}},
				Result: &analysis.Result{
					ReportID:          "r1",
					ReportName:        "Sales",
					HiddenColumnCount: 1,
					Tables:            []string{"Sales"},
					AllColumns:        []string{"Sales.Amount", "Sales.Cost", "Sales.Email"},
					UnusedColumns:     []string{"Sales.Cost", "Sales.Email"},
					SensitiveUnused:   []analysis.SensitiveColumn{{Column: "Sales.Email", Meaning: "email"}},
				},
				Status: engine.StatusOK,
			},
			{
				Item:   source.Item{ID: "r2", Name: "Broken", SharedBy: "bo@contoso.com", Row: []string{"Broken", "Workspace B", "Active", "bo@contoso.com", "https://app.powerbi.com/view?r=y"}},
				Err:    errors.New("fetch: status 404"),
				Status: engine.StatusFailed + ": fetch",
			},
		},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteResultsCSVOrg(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, sampleRun(), nil))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, OrgHeaders, records[0])
	assert.Equal(t, []string{"r1", "Sales", "ana@contoso.com", "true", "1", "3", "Sales.Cost, Sales.Email", "OK"}, records[1])
	assert.Equal(t, []string{"r2", "Broken", "bo@contoso.com", "false", "", "", "", "FAILED: fetch"}, records[2])
}

func TestWriteResultsCSVEmbed(t *testing.T) {
	headers := []string{"Report name", "Workspace name", "Status", "Published by", "Embed code"}
	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, sampleRun(), headers))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Report name", "Workspace name", "Status", "Published by",
		"Number of hidden columns", "All columns", "Unused columns", "Status"}, records[0])
	assert.Equal(t, []string{"Sales", "Workspace A", "Active", "ana@contoso.com", "1",
		"Sales.Amount, Sales.Cost, Sales.Email", "Sales.Cost, Sales.Email", "OK"}, records[1])
	assert.Equal(t, []string{"Broken", "Workspace B", "Active", "bo@contoso.com", "", "", "", "FAILED: fetch"}, records[2])
}

func TestSaveResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, SaveResultsCSV(path, sampleRun(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, data), 3)

	err = SaveResultsCSV(filepath.Join(t.TempDir(), "missing", "results.csv"), sampleRun(), nil)
	assert.Error(t, err)
}

func TestCenter(t *testing.T) {
	got := Center("Results", 65)
	assert.Len(t, got, 65)
	assert.Equal(t, strings.Repeat(" ", 29)+"Results"+strings.Repeat(" ", 29), got)
	assert.Equal(t, "toolong", Center("toolong", 3))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:00:01.500000", FormatElapsed(1500*time.Millisecond))
	assert.Equal(t, "1:02:03.000004", FormatElapsed(time.Hour+2*time.Minute+3*time.Second+4*time.Microsecond))
}

func TestWriteSummary(t *testing.T) {
	run := sampleRun()
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, "Reports shared to whole organization analyzer", engine.Summarize(run), "/tmp/results.csv"))

	out := buf.String()
	assert.Contains(t, out, "Tool: Reports shared to whole organization analyzer\n")
	assert.Contains(t, out, strings.Repeat("=", 65)+"\n")
	assert.Contains(t, out, "Number of reports analyzed successfully: 1/2\n")
	assert.Contains(t, out, "Total tables scanned: 1\n")
	assert.Contains(t, out, "Unique columns scanned: 3\n")
	assert.Contains(t, out, "Unused columns found: 2\n")
	assert.Contains(t, out, "Reports with unused columns: 1\n")
	assert.Contains(t, out, "Reports with hidden columns: 1\n")
	assert.Contains(t, out, "Scan time: 0:00:01.500000\n")
	assert.Contains(t, out, "Sensitive unused columns: 1\n  - Sales.Email (email)\n")
	assert.Contains(t, out, `Failed to analyze "r2".`)
	assert.True(t, strings.HasSuffix(out, "Full analysis saved to /tmp/results.csv\n"))
}

func TestSplitColumnKey(t *testing.T) {
	table, column := splitColumnKey("dbo.Sales.Amount", []string{"dbo", "dbo.Sales"})
	assert.Equal(t, "dbo.Sales", table)
	assert.Equal(t, "Amount", column)

	table, column = splitColumnKey("X.Y", nil)
	assert.Equal(t, "X", table)
	assert.Equal(t, "Y", column)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "pba/run-1/results.csv", ObjectName("pba", "run-1", "/tmp/out/results.csv"))
	assert.Equal(t, "run-1/summary.txt", ObjectName("", "run-1", "summary.txt"))
	assert.Equal(t, "text/csv", contentType("a.csv"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}

func TestNewUploaderRequiresBucket(t *testing.T) {
	_, err := NewUploader(MinIOConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	u, err := NewUploader(MinIOConfig{Endpoint: "localhost:9000", Bucket: "results"})
	require.NoError(t, err)
	assert.NotNil(t, u)
}

// --- recording database/sql driver ---

type execRecord struct {
	query string
	args  []driver.Value
}

type recorder struct {
	mu        sync.Mutex
	execs     []execRecord
	committed bool
}

func (r *recorder) add(query string, args []driver.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, execRecord{query: query, args: args})
}

var recorders sync.Map // dsn -> *recorder

type recDriver struct{}

func (recDriver) Open(dsn string) (driver.Conn, error) {
	r, ok := recorders.Load(dsn)
	if !ok {
		return nil, errors.New("unknown dsn")
	}
	return &recConn{rec: r.(*recorder)}, nil
}

type recConn struct{ rec *recorder }

func (c *recConn) Prepare(query string) (driver.Stmt, error) {
	return &recStmt{rec: c.rec, query: query}, nil
}
func (c *recConn) Close() error              { return nil }
func (c *recConn) Begin() (driver.Tx, error) { return &recTx{rec: c.rec}, nil }

type recTx struct{ rec *recorder }

func (t *recTx) Commit() error {
	t.rec.mu.Lock()
	t.rec.committed = true
	t.rec.mu.Unlock()
	return nil
}
func (t *recTx) Rollback() error { return nil }

type recStmt struct {
	rec   *recorder
	query string
}

func (s *recStmt) Close() error  { return nil }
func (s *recStmt) NumInput() int { return -1 }
func (s *recStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.rec.add(s.query, args)
	return driver.RowsAffected(1), nil
}
func (s *recStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, errors.New("not supported")
}

func init() {
	sql.Register("pba-recorder", recDriver{})
}

func openRecorder(t *testing.T) (*sql.DB, *recorder) {
	t.Helper()
	rec := &recorder{}
	dsn := t.Name()
	recorders.Store(dsn, rec)
	db, err := sql.Open("pba-recorder", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, rec
}

func TestSQLWrite(t *testing.T) {
	db, rec := openRecorder(t)
	s := NewSQL(db, dialect.GetDialect("postgres"), "", nil)

	n, err := s.Write(t.Context(), sampleRun(), true)
	require.NoError(t, err)
	assert.Equal(t, 4, n) // three columns + one failed report
	assert.True(t, rec.committed)

	require.Len(t, rec.execs, 6)
	assert.True(t, strings.HasPrefix(rec.execs[0].query, `CREATE TABLE IF NOT EXISTS "pba_column_usage"`))
	assert.Equal(t, `TRUNCATE TABLE "pba_column_usage" CASCADE`, rec.execs[1].query)

	insert := rec.execs[2]
	assert.Contains(t, insert.query, "$12")
	require.Len(t, insert.args, len(resultColumns))
	assert.Equal(t, "6f1c3c1e-8a38-4c4f-9d5e-0b7f0d6a1b11", insert.args[1])
	assert.Equal(t, "Sales", insert.args[5])
	assert.Equal(t, "Amount", insert.args[6])
	assert.Equal(t, false, insert.args[7])

	email := rec.execs[4]
	assert.Equal(t, "Email", email.args[6])
	assert.Equal(t, true, email.args[7])
	assert.Equal(t, "email", email.args[8])

	failed := rec.execs[5]
	assert.Equal(t, "r2", failed.args[3])
	assert.Equal(t, "FAILED: fetch", failed.args[9])
	assert.Equal(t, "fetch: status 404", failed.args[10])
}

func TestSQLWriteOracleBools(t *testing.T) {
	db, rec := openRecorder(t)
	s := NewSQL(db, dialect.GetDialect("oracle"), "results", nil)

	_, err := s.Write(t.Context(), sampleRun(), false)
	require.NoError(t, err)

	// create, session setup, then inserts
	require.Len(t, rec.execs, 6)
	assert.Contains(t, rec.execs[1].query, "NLS_TIMESTAMP_FORMAT")
	assert.Equal(t, int64(1), rec.execs[4].args[7])
	assert.Equal(t, int64(0), rec.execs[2].args[7])
}
