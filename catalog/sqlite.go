package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lattice "github.com/lattice-hq/lattice"
)

// SQLiteExtractor handles SQLite-specific catalog extraction
type SQLiteExtractor struct{}

// NewSQLiteExtractor creates a new SQLite extractor
func NewSQLiteExtractor() *SQLiteExtractor {
	return &SQLiteExtractor{}
}

// GetDatabaseType returns the database type
func (e *SQLiteExtractor) GetDatabaseType() string {
	return "sqlite"
}

// ExtractColumns extracts all columns from a specific table.
// PRAGMA table_info does not accept bind parameters, so the table name is
// quoted as an identifier. Table names reach this point only after the
// engine's allow-list check.
func (e *SQLiteExtractor) ExtractColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]lattice.ColumnInfo, error) {
	query := fmt.Sprintf("PRAGMA table_info(%q)", tableName)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []lattice.ColumnInfo
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue sql.NullString

		err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk)
		if err != nil {
			return nil, err
		}

		column := lattice.ColumnInfo{
			Name:            name,
			DataType:        dataType,
			LatticeType:     MapSQLiteType(dataType),
			Nullable:        notNull == 0,
			OrdinalPosition: cid + 1,
			IsPrimaryKey:    pk == 1,
		}
		if defaultValue.Valid {
			column.DefaultValue = strings.Trim(defaultValue.String, "'")
		}
		// An INTEGER PRIMARY KEY column is an alias for the rowid and
		// auto-assigns on insert.
		if pk == 1 && strings.EqualFold(strings.TrimSpace(dataType), "integer") {
			column.AutoIncrement = true
		}

		columns = append(columns, column)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return columns, nil
}

// ExtractPrimaryKey extracts the primary key column names of a table
func (e *SQLiteExtractor) ExtractPrimaryKey(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]string, error) {
	columns, err := e.ExtractColumns(ctx, db, schemaName, tableName)
	if err != nil {
		return nil, err
	}

	var pk []string
	for _, col := range columns {
		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	return pk, nil
}

// ExtractTables extracts all table names from the database
func (e *SQLiteExtractor) ExtractTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	rows, err := db.QueryContext(ctx, query)
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

// MapSQLiteType maps SQLite type declarations to Lattice types using the
// usual affinity rules.
func MapSQLiteType(sqliteType string) string {
	baseType := strings.ToUpper(strings.TrimSpace(precisionPattern.ReplaceAllString(sqliteType, "")))

	switch {
	case baseType == "":
		return "string"
	case strings.Contains(baseType, "INT"):
		return "int"
	case strings.Contains(baseType, "CHAR"), strings.Contains(baseType, "CLOB"), strings.Contains(baseType, "TEXT"):
		return "string"
	case strings.Contains(baseType, "BLOB"):
		return "bytes"
	case strings.Contains(baseType, "REAL"), strings.Contains(baseType, "FLOA"), strings.Contains(baseType, "DOUB"),
		strings.Contains(baseType, "NUMERIC"), strings.Contains(baseType, "DECIMAL"):
		return "float"
	case strings.Contains(baseType, "BOOL"):
		return "bool"
	case baseType == "DATETIME" || baseType == "TIMESTAMP":
		return "datetime"
	case baseType == "DATE":
		return "date"
	case baseType == "TIME":
		return "time"
	case baseType == "JSON":
		return "json"
	case baseType == "UUID":
		return "uuid"
	default:
		return "string"
	}
}
