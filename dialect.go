package lattice

import "strconv"

// Dialect represents supported database dialects
// This type is shared across all packages
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect normalizes a user-supplied dialect name.
func ParseDialect(name string) (Dialect, bool) {
	switch name {
	case "postgres", "postgresql":
		return DialectPostgres, true
	case "mysql", "mariadb":
		return DialectMySQL, true
	case "sqlite", "sqlite3":
		return DialectSQLite, true
	default:
		return "", false
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite3"
	default:
		return ""
	}
}

// Placeholder returns the bind-parameter placeholder for the n-th
// parameter (1-origin). PostgreSQL uses numbered placeholders, MySQL and
// SQLite use positional question marks.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// QuoteIdentifier quotes a column or table identifier for the dialect.
func (d Dialect) QuoteIdentifier(name string) string {
	if d == DialectMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
