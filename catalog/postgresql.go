package catalog

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	lattice "github.com/lattice-hq/lattice"
)

// PostgreSQLExtractor handles PostgreSQL-specific catalog extraction
type PostgreSQLExtractor struct{}

// NewPostgreSQLExtractor creates a new PostgreSQL extractor
func NewPostgreSQLExtractor() *PostgreSQLExtractor {
	return &PostgreSQLExtractor{}
}

// GetDatabaseType returns the database type
func (e *PostgreSQLExtractor) GetDatabaseType() string {
	return "postgresql"
}

// BuildColumnsQuery returns the information_schema query for columns.
func (e *PostgreSQLExtractor) BuildColumnsQuery() string {
	return `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default,
			ordinal_position,
			is_identity
		FROM information_schema.columns
		WHERE table_schema = $1
		AND table_name = $2
		ORDER BY ordinal_position
	`
}

// BuildPrimaryKeyQuery returns the constraint query for the primary key.
func (e *PostgreSQLExtractor) BuildPrimaryKeyQuery() string {
	return `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1
		AND tc.table_name = $2
		AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position
	`
}

// BuildTablesQuery returns the query listing base tables in a schema.
func (e *PostgreSQLExtractor) BuildTablesQuery() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
}

// ExtractColumns extracts all columns from a specific table
func (e *PostgreSQLExtractor) ExtractColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]lattice.ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, e.BuildColumnsQuery(), schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []lattice.ColumnInfo
	for rows.Next() {
		var col lattice.ColumnInfo
		var defaultValue sql.NullString
		var isNullable, isIdentity string

		err := rows.Scan(
			&col.Name,
			&col.DataType,
			&isNullable,
			&defaultValue,
			&col.OrdinalPosition,
			&isIdentity,
		)
		if err != nil {
			return nil, err
		}

		col.Nullable = (isNullable == "YES")
		if defaultValue.Valid {
			col.DefaultValue = ParsePostgreSQLDefault(defaultValue.String)
		}
		col.AutoIncrement = isIdentity == "YES" || col.DefaultValue == "AUTO_INCREMENT"
		col.LatticeType = MapPostgreSQLType(col.DataType)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}

// ExtractPrimaryKey extracts the primary key column names of a table
func (e *PostgreSQLExtractor) ExtractPrimaryKey(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, e.BuildPrimaryKeyQuery(), schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}

// ExtractTables extracts all base table names from a specific schema
func (e *PostgreSQLExtractor) ExtractTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, e.BuildTablesQuery(), schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tables, nil
}

var precisionPattern = regexp.MustCompile(`\([^)]*\)`)

// MapPostgreSQLType maps PostgreSQL data types to Lattice types
func MapPostgreSQLType(pgType string) string {
	// Remove precision/scale information
	baseType := precisionPattern.ReplaceAllString(pgType, "")
	baseType = strings.ToLower(strings.TrimSpace(baseType))

	switch baseType {
	case "smallint", "integer", "bigint", "serial", "bigserial":
		return "int"
	case "decimal", "numeric", "real", "double precision", "money":
		return "float"
	case "boolean":
		return "bool"
	case "character", "character varying", "varchar", "text", "char":
		return "string"
	case "date":
		return "date"
	case "time", "time without time zone", "time with time zone":
		return "time"
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz":
		return "datetime"
	case "uuid":
		return "uuid"
	case "json", "jsonb":
		return "json"
	case "bytea":
		return "bytes"
	default:
		return "string"
	}
}

// ParsePostgreSQLDefault parses PostgreSQL default value expressions
func ParsePostgreSQLDefault(defaultValue string) string {
	value := strings.TrimSpace(defaultValue)
	if value == "" {
		return ""
	}

	// nextval() marks sequence-backed (auto-increment) columns
	if strings.HasPrefix(value, "nextval(") {
		return "AUTO_INCREMENT"
	}

	// String literals with type casting (e.g., 'value'::character varying)
	if strings.Contains(value, "::") {
		parts := strings.Split(value, "::")
		literalPart := strings.TrimSpace(parts[0])
		if strings.HasPrefix(literalPart, "'") && strings.HasSuffix(literalPart, "'") {
			return literalPart[1 : len(literalPart)-1]
		}
	}

	if strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'") {
		return value[1 : len(value)-1]
	}

	if strings.ToUpper(value) == "NULL" {
		return ""
	}

	return value
}
