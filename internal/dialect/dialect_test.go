package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var resultCols = []ColumnDef{
	{Name: "run_id", Type: TypeString, Size: 36},
	{Name: "unused", Type: TypeBool},
	{Name: "status", Type: TypeText, Nullable: true},
}

func TestGetDialect(t *testing.T) {
	assert.IsType(t, &PostgresDialect{}, GetDialect("postgres"))
	assert.IsType(t, &PostgresDialect{}, GetDialect("postgresql"))
	assert.IsType(t, &MSSQLDialect{}, GetDialect("mssql"))
	assert.IsType(t, &MSSQLDialect{}, GetDialect("sqlserver"))
	assert.IsType(t, &OracleDialect{}, GetDialect("oracle"))
	assert.IsType(t, &MysqlDialect{}, GetDialect("mysql"))
	assert.IsType(t, &MysqlDialect{}, GetDialect(""))
}

func TestInsertPlaceholders(t *testing.T) {
	cols := []string{"a", "b", "c"}
	tests := []struct {
		driver string
		want   string
	}{
		{"mysql", "INSERT INTO `t` (`a`, `b`, `c`) VALUES (?, ?, ?)"},
		{"postgres", `INSERT INTO "t" ("a", "b", "c") VALUES ($1, $2, $3)`},
		{"sqlserver", "INSERT INTO [t] ([a], [b], [c]) VALUES (@p1, @p2, @p3)"},
		{"oracle", `INSERT INTO "t" ("a", "b", "c") VALUES (:1, :2, :3)`},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			assert.Equal(t, tt.want, GetDialect(tt.driver).InsertQuery("t", cols))
		})
	}
}

func TestCreateTableQuery(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "pba" ("run_id" VARCHAR(36) NOT NULL, "unused" BOOLEAN NOT NULL, "status" TEXT)`,
		GetDialect("postgres").CreateTableQuery("pba", resultCols))

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS `pba` (`run_id` VARCHAR(36) NOT NULL, `unused` TINYINT(1) NOT NULL, `status` LONGTEXT) DEFAULT CHARSET=utf8mb4",
		GetDialect("mysql").CreateTableQuery("pba", resultCols))

	assert.Equal(t,
		"IF OBJECT_ID(N'pba', N'U') IS NULL CREATE TABLE [pba] ([run_id] NVARCHAR(36) NOT NULL, [unused] BIT NOT NULL, [status] NVARCHAR(MAX))",
		GetDialect("mssql").CreateTableQuery("pba", resultCols))

	ora := GetDialect("oracle").CreateTableQuery("pba", resultCols)
	assert.Contains(t, ora, `EXECUTE IMMEDIATE 'CREATE TABLE "pba" ("run_id" VARCHAR2(36 CHAR) NOT NULL, "unused" NUMBER(1) NOT NULL, "status" CLOB)'`)
	assert.Contains(t, ora, "SQLCODE != -955")
}

func TestQuoteIdentEscapes(t *testing.T) {
	assert.Equal(t, `"a""b"`, GetDialect("postgres").QuoteIdent(`a"b`))
	assert.Equal(t, "`a``b`", GetDialect("mysql").QuoteIdent("a`b"))
	assert.Equal(t, "[a]]b]", GetDialect("mssql").QuoteIdent("a]b"))
}

func TestBoolValue(t *testing.T) {
	assert.Equal(t, true, GetDialect("postgres").BoolValue(true))
	assert.Equal(t, 1, GetDialect("oracle").BoolValue(true))
	assert.Equal(t, 0, GetDialect("oracle").BoolValue(false))
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, `TRUNCATE TABLE "pba" CASCADE`, GetDialect("postgres").TruncateQuery("pba"))
	assert.Equal(t, "TRUNCATE TABLE [pba]", GetDialect("mssql").TruncateQuery("pba"))
}

func TestDefaultStringSize(t *testing.T) {
	assert.Equal(t, "VARCHAR(255)", GetDialect("mysql").TypeName(ColumnDef{Type: TypeString}))
}
