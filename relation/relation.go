// Package relation synchronizes many-to-many join tables: full
// replace-set semantics for owner membership, and duplicate-free linking
// of secondary collections. Consistency relies on delete-then-insert
// replacement and existence checks, not application locks.
package relation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	lattice "github.com/lattice-hq/lattice"
)

// Synchronizer executes join-table writes through a pooled handle.
type Synchronizer struct {
	db      *sql.DB
	dialect lattice.Dialect
	logger  *slog.Logger
}

// NewSynchronizer creates a synchronizer. nil logger uses the default.
func NewSynchronizer(db *sql.DB, dialect lattice.Dialect, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{db: db, dialect: dialect, logger: logger}
}

// ReplaceSet replaces the full membership of an owner in a join table:
// all rows for ownerKey are deleted, then one row per member key is
// inserted. An empty memberKeys results in zero membership. The two steps
// share a transaction, so the operation is idempotent.
func (s *Synchronizer) ReplaceSet(ctx context.Context, joinTable, ownerColumn string, ownerKey any, memberColumn string, memberKeys []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", lattice.ErrRelationSync, err)
	}
	defer tx.Rollback()

	table := s.dialect.QuoteIdentifier(joinTable)
	owner := s.dialect.QuoteIdentifier(ownerColumn)
	member := s.dialect.QuoteIdentifier(memberColumn)

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, owner, s.dialect.Placeholder(1))
	if _, err := tx.ExecContext(ctx, deleteSQL, ownerKey); err != nil {
		return fmt.Errorf("%w: delete %s: %v", lattice.ErrRelationSync, joinTable, err)
	}

	if len(memberKeys) > 0 {
		var (
			rows []string
			args []any
		)
		for _, key := range memberKeys {
			args = append(args, ownerKey)
			first := s.dialect.Placeholder(len(args))
			args = append(args, key)
			second := s.dialect.Placeholder(len(args))
			rows = append(rows, "("+first+", "+second+")")
		}

		insertSQL := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES %s",
			table, owner, member, strings.Join(rows, ", "))
		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("%w: insert %s: %v", lattice.ErrRelationSync, joinTable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", lattice.ErrRelationSync, joinTable, err)
	}

	return nil
}

// Link inserts a relation row between two entities with attached
// attributes, unless a row for the same pair already exists. Repeated
// saves therefore never accumulate duplicates, with or without a
// uniqueness constraint on the join table.
func (s *Synchronizer) Link(ctx context.Context, table, primaryColumn string, primaryKey any, secondaryColumn string, secondaryKey any, attributes map[string]any) error {
	insertSQL, args := s.buildLink(table, primaryColumn, primaryKey, secondaryColumn, secondaryKey, attributes)

	if _, err := s.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("%w: link %s: %v", lattice.ErrRelationSync, table, err)
	}

	return nil
}

// buildLink assembles the duplicate-free insert. MySQL rejects
// SELECT ... WHERE without a source table, so the statement reads from
// DUAL there.
func (s *Synchronizer) buildLink(table, primaryColumn string, primaryKey any, secondaryColumn string, secondaryKey any, attributes map[string]any) (string, []any) {
	columns := []string{s.dialect.QuoteIdentifier(primaryColumn), s.dialect.QuoteIdentifier(secondaryColumn)}
	args := []any{primaryKey, secondaryKey}

	attrNames := make([]string, 0, len(attributes))
	for name := range attributes {
		attrNames = append(attrNames, name)
	}
	// Deterministic column order keeps the generated SQL stable.
	sort.Strings(attrNames)
	for _, name := range attrNames {
		columns = append(columns, s.dialect.QuoteIdentifier(name))
		args = append(args, attributes[name])
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = s.dialect.Placeholder(i + 1)
	}

	selectSource := ""
	if s.dialect == lattice.DialectMySQL {
		selectSource = " FROM DUAL"
	}

	existsFirst := s.dialect.Placeholder(len(args) + 1)
	existsSecond := s.dialect.Placeholder(len(args) + 2)
	args = append(args, primaryKey, secondaryKey)

	quoted := s.dialect.QuoteIdentifier(table)
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s%s WHERE NOT EXISTS (SELECT 1 FROM %s WHERE %s = %s AND %s = %s)",
		quoted, strings.Join(columns, ", "), strings.Join(placeholders, ", "), selectSource,
		quoted,
		s.dialect.QuoteIdentifier(primaryColumn), existsFirst,
		s.dialect.QuoteIdentifier(secondaryColumn), existsSecond,
	)

	return insertSQL, args
}
