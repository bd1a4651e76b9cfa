package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL Driver
)

type MysqlDialect struct{}

func (d *MysqlDialect) DriverName() string { return "mysql" }

func (d *MysqlDialect) CreateTableQuery(table string, cols []ColumnDef) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) DEFAULT CHARSET=utf8mb4", d.QuoteIdent(table), columnList(d, cols))
}

func (d *MysqlDialect) TypeName(col ColumnDef) string {
	switch col.Type {
	case TypeString:
		return fmt.Sprintf("VARCHAR(%d)", stringSize(col))
	case TypeText:
		return "LONGTEXT"
	case TypeInt:
		return "INT"
	case TypeBool:
		return "TINYINT(1)"
	case TypeTime:
		return "DATETIME(6)"
	default:
		return "LONGTEXT"
	}
}

func (d *MysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MysqlDialect) BeforeWrite(tx *sql.Tx) error {
	_, err := tx.Exec("SET NAMES utf8mb4")
	return err
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	return insertQuery(d, table, cols)
}

func (d *MysqlDialect) TruncateQuery(table string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdent(table))
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) BoolValue(b bool) any { return b }
