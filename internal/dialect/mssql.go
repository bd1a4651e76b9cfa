package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server Driver
)

type MSSQLDialect struct{}

// go-mssqldb registers both "mssql" and "sqlserver"; only "sqlserver"
// understands the @p1 style used below.
func (d *MSSQLDialect) DriverName() string { return "sqlserver" }

func (d *MSSQLDialect) CreateTableQuery(table string, cols []ColumnDef) string {
	// T-SQL has no CREATE TABLE IF NOT EXISTS
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(table, "'", "''"), d.QuoteIdent(table), columnList(d, cols))
}

func (d *MSSQLDialect) TypeName(col ColumnDef) string {
	switch col.Type {
	case TypeString:
		return fmt.Sprintf("NVARCHAR(%d)", stringSize(col))
	case TypeText:
		return "NVARCHAR(MAX)"
	case TypeInt:
		return "INT"
	case TypeBool:
		return "BIT"
	case TypeTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) BeforeWrite(tx *sql.Tx) error {
	return nil
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	return insertQuery(d, table, cols)
}

func (d *MSSQLDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) BoolValue(b bool) any { return b }
