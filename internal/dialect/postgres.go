package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL Driver
)

type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) CreateTableQuery(table string, cols []ColumnDef) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QuoteIdent(table), columnList(d, cols))
}

func (d *PostgresDialect) TypeName(col ColumnDef) string {
	switch col.Type {
	case TypeString:
		return fmt.Sprintf("VARCHAR(%d)", stringSize(col))
	case TypeText:
		return "TEXT"
	case TypeInt:
		return "INTEGER"
	case TypeBool:
		return "BOOLEAN"
	case TypeTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgresDialect) BeforeWrite(tx *sql.Tx) error {
	return nil
}

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	return insertQuery(d, table, cols)
}

func (d *PostgresDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", d.QuoteIdent(table))
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) BoolValue(b bool) any { return b }
