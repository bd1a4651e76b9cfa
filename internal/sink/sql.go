package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pb-analyzer/internal/dialect"
	"pb-analyzer/internal/engine"
)

// DefaultTable receives one row per scanned column, plus one row per failed
// report.
const DefaultTable = "pba_column_usage"

var resultColumns = []dialect.ColumnDef{
	{Name: "id", Type: dialect.TypeString, Size: 36},
	{Name: "run_id", Type: dialect.TypeString, Size: 36},
	{Name: "source", Type: dialect.TypeString, Size: 32},
	{Name: "report_id", Type: dialect.TypeString, Size: 1024},
	{Name: "report_name", Type: dialect.TypeString, Size: 512, Nullable: true},
	{Name: "table_name", Type: dialect.TypeString, Size: 255, Nullable: true},
	{Name: "column_name", Type: dialect.TypeString, Size: 255, Nullable: true},
	{Name: "unused", Type: dialect.TypeBool},
	{Name: "sensitivity", Type: dialect.TypeString, Size: 64, Nullable: true},
	{Name: "status", Type: dialect.TypeString, Size: 64},
	{Name: "error_message", Type: dialect.TypeText, Nullable: true},
	{Name: "scanned_at", Type: dialect.TypeTime},
}

func columnNames() []string {
	names := make([]string, len(resultColumns))
	for i, c := range resultColumns {
		names[i] = c.Name
	}
	return names
}

// SQL stores run results in a relational table through database/sql.
type SQL struct {
	db      *sql.DB
	dialect dialect.Dialect
	table   string
	logger  *slog.Logger
}

// OpenSQL connects with the driver matching the dialect and pings the server.
func OpenSQL(ctx context.Context, driver, dsn, table string, logger *slog.Logger) (*SQL, error) {
	d := dialect.GetDialect(driver)
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return NewSQL(db, d, table, logger), nil
}

func NewSQL(db *sql.DB, d dialect.Dialect, table string, logger *slog.Logger) *SQL {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQL{db: db, dialect: d, table: table, logger: logger}
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// Write creates the table when missing and inserts the run in a single
// transaction. With truncate set, earlier runs are removed first. It
// returns the number of inserted rows.
func (s *SQL) Write(ctx context.Context, run *engine.Run, truncate bool) (int, error) {
	// --- Step 1: Ensure table ---
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTableQuery(s.table, resultColumns)); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", s.table, err)
	}

	// --- Step 2: Insert rows ---
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.dialect.BeforeWrite(tx); err != nil {
		return 0, fmt.Errorf("before write hook failed: %w", err)
	}
	if truncate {
		if _, err := tx.ExecContext(ctx, s.dialect.TruncateQuery(s.table)); err != nil {
			return 0, fmt.Errorf("failed to truncate %s: %w", s.table, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.InsertQuery(s.table, columnNames()))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, out := range run.Outcomes {
		for _, args := range s.rows(run, out) {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return count, fmt.Errorf("failed to insert row for %s: %w", out.Item.ID, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Info("results stored",
		slog.String("run_id", run.ID.String()),
		slog.String("table", s.table),
		slog.Int("rows", count))
	return count, nil
}

func (s *SQL) rows(run *engine.Run, out engine.Outcome) [][]any {
	scannedAt := run.Finished.UTC()
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}
	base := func(table, column string, unused bool, sensitivity, errText string) []any {
		return []any{
			uuid.NewString(),
			run.ID.String(),
			run.Source,
			out.Item.ID,
			out.Item.Name,
			table,
			column,
			s.dialect.BoolValue(unused),
			sensitivity,
			out.Status,
			errText,
			scannedAt,
		}
	}

	res := out.Result
	if res == nil {
		msg := ""
		if out.Err != nil {
			msg = out.Err.Error()
		}
		return [][]any{base("", "", false, "", msg)}
	}

	unused := make(map[string]bool, len(res.UnusedColumns))
	for _, c := range res.UnusedColumns {
		unused[c] = true
	}
	meaning := make(map[string]string, len(res.SensitiveUnused))
	for _, sc := range res.SensitiveUnused {
		meaning[sc.Column] = sc.Meaning
	}

	rows := make([][]any, 0, len(res.AllColumns))
	for _, key := range res.AllColumns {
		table, column := splitColumnKey(key, res.Tables)
		rows = append(rows, base(table, column, unused[key], meaning[key], ""))
	}
	return rows
}

// splitColumnKey separates "Table.Column". Table names may contain dots,
// so the longest known table prefix wins.
func splitColumnKey(key string, tables []string) (string, string) {
	best := ""
	for _, t := range tables {
		if len(t) > len(best) && strings.HasPrefix(key, t+".") {
			best = t
		}
	}
	if best != "" {
		return best, key[len(best)+1:]
	}
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}
