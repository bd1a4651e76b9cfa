package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/sijms/go-ora/v2" // Oracle Driver
)

type OracleDialect struct{}

func (d *OracleDialect) DriverName() string { return "oracle" }

func (d *OracleDialect) CreateTableQuery(table string, cols []ColumnDef) string {
	// ORA-00955 (name already used) means the table exists.
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteIdent(table), columnList(d, cols))
	return fmt.Sprintf(`BEGIN
    EXECUTE IMMEDIATE '%s';
EXCEPTION
    WHEN OTHERS THEN
        IF SQLCODE != -955 THEN RAISE; END IF;
END;`, strings.ReplaceAll(ddl, "'", "''"))
}

func (d *OracleDialect) TypeName(col ColumnDef) string {
	switch col.Type {
	case TypeString:
		return fmt.Sprintf("VARCHAR2(%d CHAR)", stringSize(col))
	case TypeText:
		return "CLOB"
	case TypeInt:
		return "NUMBER(10)"
	case TypeBool:
		return "NUMBER(1)"
	case TypeTime:
		return "TIMESTAMP"
	default:
		return "CLOB"
	}
}

// Oracle folds unquoted names to upper case; quoting keeps them as written.
func (d *OracleDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *OracleDialect) BeforeWrite(tx *sql.Tx) error {
	if _, err := tx.Exec("ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS.FF'"); err != nil {
		return fmt.Errorf("failed to set NLS_TIMESTAMP_FORMAT: %w", err)
	}
	return nil
}

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	return insertQuery(d, table, cols)
}

func (d *OracleDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *OracleDialect) Placeholder(index int) string {
	// Oracle uses :1, :2, etc. (1-based index)
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) BoolValue(b bool) any {
	if b {
		return 1
	}
	return 0
}
