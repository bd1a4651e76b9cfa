package dialect

import "strings"

// GetDialect maps a configured driver name to its dialect. Unknown names
// fall back to MySQL, which also covers MariaDB.
func GetDialect(driver string) Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return &PostgresDialect{}
	case "sqlserver", "mssql":
		return &MSSQLDialect{}
	case "oracle", "go-ora":
		return &OracleDialect{}
	default: // mysql, mariadb
		return &MysqlDialect{}
	}
}

var (
	_ Dialect = (*MysqlDialect)(nil)
	_ Dialect = (*PostgresDialect)(nil)
	_ Dialect = (*MSSQLDialect)(nil)
	_ Dialect = (*OracleDialect)(nil)
)
