package catalog

import (
	"context"
	"database/sql"
	"strings"

	lattice "github.com/lattice-hq/lattice"
)

// MySQLExtractor handles MySQL-specific catalog extraction
type MySQLExtractor struct{}

// NewMySQLExtractor creates a new MySQL extractor
func NewMySQLExtractor() *MySQLExtractor {
	return &MySQLExtractor{}
}

// GetDatabaseType returns the database type
func (e *MySQLExtractor) GetDatabaseType() string {
	return "mysql"
}

// BuildColumnsQuery returns the information_schema query for columns.
// The schema parameter falls back to the connection's current database.
func (e *MySQLExtractor) BuildColumnsQuery() string {
	return `
		SELECT
			column_name,
			data_type,
			is_nullable,
			column_default,
			ordinal_position,
			extra
		FROM information_schema.columns
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		AND table_name = ?
		ORDER BY ordinal_position
	`
}

// BuildPrimaryKeyQuery returns the key_column_usage query for the primary key.
func (e *MySQLExtractor) BuildPrimaryKeyQuery() string {
	return `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		AND table_name = ?
		AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`
}

// BuildTablesQuery returns the query listing base tables in a schema.
func (e *MySQLExtractor) BuildTablesQuery() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
}

// ExtractColumns extracts all columns from a specific table
func (e *MySQLExtractor) ExtractColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]lattice.ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, e.BuildColumnsQuery(), schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []lattice.ColumnInfo
	for rows.Next() {
		var col lattice.ColumnInfo
		var defaultValue sql.NullString
		var isNullable, extra string

		err := rows.Scan(
			&col.Name,
			&col.DataType,
			&isNullable,
			&defaultValue,
			&col.OrdinalPosition,
			&extra,
		)
		if err != nil {
			return nil, err
		}

		col.Nullable = (isNullable == "YES")
		if defaultValue.Valid {
			col.DefaultValue = defaultValue.String
		}
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		col.LatticeType = MapMySQLType(col.DataType)

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}

// ExtractPrimaryKey extracts the primary key column names of a table
func (e *MySQLExtractor) ExtractPrimaryKey(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]string, error) {
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
func (e *MySQLExtractor) ExtractTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
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

// MapMySQLType maps MySQL data types to Lattice types
func MapMySQLType(mysqlType string) string {
	baseType := strings.ToLower(strings.TrimSpace(mysqlType))

	switch baseType {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return "int"
	case "decimal", "numeric", "float", "double", "real":
		return "float"
	case "bit", "bool", "boolean":
		return "bool"
	case "char", "varchar", "text", "tinytext", "mediumtext", "longtext", "enum", "set":
		return "string"
	case "date":
		return "date"
	case "time":
		return "time"
	case "datetime", "timestamp":
		return "datetime"
	case "json":
		return "json"
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob":
		return "bytes"
	default:
		return "string"
	}
}
