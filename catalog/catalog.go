// Package catalog reads collection schemas from the database's own
// catalog (information_schema on PostgreSQL/MySQL, sqlite_master and
// PRAGMA table_info on SQLite). Discovery runs per call so that schema
// migrations applied while the process is running are picked up; an
// optional short-TTL cache with explicit invalidation is provided for
// callers that can tolerate bounded staleness.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	lattice "github.com/lattice-hq/lattice"
)

// Extractor is the dialect-specific half of the catalog reader.
type Extractor interface {
	// ExtractColumns returns the persisted columns of a table in ordinal
	// order. An empty result means the table does not exist.
	ExtractColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]lattice.ColumnInfo, error)
	// ExtractPrimaryKey returns the primary key column names of a table.
	ExtractPrimaryKey(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]string, error)
	// ExtractTables returns the table names visible in the schema.
	ExtractTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error)
	// GetDatabaseType returns the dialect identifier.
	GetDatabaseType() string
}

// NewExtractor creates a new extractor for the specified dialect.
func NewExtractor(dialect lattice.Dialect) (Extractor, error) {
	switch dialect {
	case lattice.DialectPostgres:
		return NewPostgreSQLExtractor(), nil
	case lattice.DialectMySQL:
		return NewMySQLExtractor(), nil
	case lattice.DialectSQLite:
		return NewSQLiteExtractor(), nil
	default:
		return nil, fmt.Errorf("%w: %q", lattice.ErrUnsupportedDialect, dialect)
	}
}

// Reader discovers collection schemas through a pooled database handle.
// It is stateless; every Describe call queries the catalog again.
type Reader struct {
	db         *sql.DB
	extractor  Extractor
	schemaName string
}

// NewReader creates a catalog reader for the given handle and dialect.
// schemaName is the PostgreSQL schema or MySQL database to inspect; it is
// ignored for SQLite. Empty defaults to the dialect's usual namespace.
func NewReader(db *sql.DB, dialect lattice.Dialect, schemaName string) (*Reader, error) {
	extractor, err := NewExtractor(dialect)
	if err != nil {
		return nil, err
	}
	if schemaName == "" && dialect == lattice.DialectPostgres {
		schemaName = "public"
	}
	return &Reader{db: db, extractor: extractor, schemaName: schemaName}, nil
}

// Describe returns the discovered schema of a collection. A table with
// zero columns is treated as missing and yields ErrCollectionNotFound.
// When primary key discovery fails or finds nothing, the key defaults to
// "id".
func (r *Reader) Describe(ctx context.Context, collection string) (lattice.CollectionSchema, error) {
	columns, err := r.extractor.ExtractColumns(ctx, r.db, r.schemaName, collection)
	if err != nil {
		return lattice.CollectionSchema{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}
	if len(columns) == 0 {
		return lattice.CollectionSchema{}, fmt.Errorf("%w: %s", lattice.ErrCollectionNotFound, collection)
	}

	primaryKey := "id"
	pkColumns, err := r.extractor.ExtractPrimaryKey(ctx, r.db, r.schemaName, collection)
	if err == nil && len(pkColumns) > 0 {
		primaryKey = pkColumns[0]
	}

	for i := range columns {
		if columns[i].Name == primaryKey {
			columns[i].IsPrimaryKey = true
		}
	}

	return lattice.CollectionSchema{
		Name:       collection,
		Columns:    columns,
		PrimaryKey: primaryKey,
	}, nil
}

// Tables lists the table names visible to the reader.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	tables, err := r.extractor.ExtractTables(ctx, r.db, r.schemaName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}
	return tables, nil
}
