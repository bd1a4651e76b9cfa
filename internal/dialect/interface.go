package dialect

import "database/sql"

// ColumnType is the portable type of a result table column.
type ColumnType int

const (
	TypeString ColumnType = iota // bounded text, Size characters
	TypeText                     // unbounded text
	TypeInt
	TypeBool
	TypeTime
)

type ColumnDef struct {
	Name     string
	Type     ColumnType
	Size     int
	Nullable bool
}

// Dialect abstracts database-specific operations.
type Dialect interface {
	// DriverName is the database/sql driver the dialect talks to.
	DriverName() string

	// DDL
	CreateTableQuery(table string, cols []ColumnDef) string
	TypeName(col ColumnDef) string
	QuoteIdent(name string) string

	// Execution Hooks (session level)
	BeforeWrite(tx *sql.Tx) error

	// Query Generation
	InsertQuery(table string, cols []string) string
	TruncateQuery(table string) string
	Placeholder(index int) string // Returns ?, $1, @p1, etc.

	// Value conversion
	BoolValue(b bool) any
}
