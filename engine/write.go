package engine

import (
	"context"
	"fmt"
	"strings"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/fieldconfig"
)

// CreateResult reports the created row's identifier and the names of the
// columns that received generated values.
type CreateResult struct {
	ID              any      `json:"generatedId"`
	GeneratedFields []string `json:"generatedFieldNames"`
}

// DeleteResult reports whether the row was soft-deleted.
type DeleteResult struct {
	SoftDeleted bool `json:"softDeleted"`
}

// Create validates the input, runs the hook pipeline and the codec write
// path, fills identifier-shaped columns, then executes a single
// parameterized INSERT. Unknown keys are ignored. Relation-bound virtual
// fields are synchronized after the row is persisted; their failures are
// logged and do not fail the create.
func (e *Engine) Create(ctx context.Context, collection string, input map[string]any) (CreateResult, error) {
	schema, cfgs, err := e.describe(ctx, collection)
	if err != nil {
		return CreateResult{}, err
	}

	record := copyRecord(input)

	if err := e.codec.Validate(cfgs, record); err != nil {
		return CreateResult{}, err
	}
	if err := runHooks(ctx, cfgs, record); err != nil {
		return CreateResult{}, err
	}
	if err := e.codec.EncodeRecord(schema, cfgs, record, false); err != nil {
		return CreateResult{}, err
	}

	generated := e.idgen.Apply(schema, record)
	relations := takeRelationValues(cfgs, record)

	var (
		columns      []string
		placeholders []string
		args         []any
	)
	for _, col := range schema.RealColumns() {
		value, ok := record[col.Name]
		if !ok {
			continue
		}
		columns = append(columns, e.dialect.QuoteIdentifier(col.Name))
		args = append(args, value)
		placeholders = append(placeholders, e.dialect.Placeholder(len(args)))
	}
	if len(columns) == 0 {
		return CreateResult{}, fmt.Errorf("%w: collection %s", lattice.ErrEmptyInput, collection)
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.dialect.QuoteIdentifier(collection),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))

	id, supplied := record[schema.PrimaryKey]
	switch {
	case supplied:
		if _, err := e.db.ExecContext(ctx, insertSQL, args...); err != nil {
			return CreateResult{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
		}
	case e.dialect == lattice.DialectPostgres:
		insertSQL += " RETURNING " + e.dialect.QuoteIdentifier(schema.PrimaryKey)
		if err := e.db.QueryRowContext(ctx, insertSQL, args...).Scan(&id); err != nil {
			return CreateResult{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
		}
	default:
		result, err := e.db.ExecContext(ctx, insertSQL, args...)
		if err != nil {
			return CreateResult{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
		}
		if lastID, err := result.LastInsertId(); err == nil {
			id = lastID
		}
	}

	e.syncRelations(ctx, collection, relations, id)

	return CreateResult{ID: id, GeneratedFields: generated}, nil
}

// Update runs the same validation/hook/codec pipeline restricted to the
// fields present in the input and executes a parameterized UPDATE by
// primary key. Every assignment value is bound, never interpolated. When
// the collection is soft-deletable, updated_at is refreshed automatically
// unless the caller set it.
func (e *Engine) Update(ctx context.Context, collection string, id any, input map[string]any) error {
	schema, cfgs, err := e.describe(ctx, collection)
	if err != nil {
		return err
	}

	record := copyRecord(input)

	if err := e.codec.Validate(cfgs, record); err != nil {
		return err
	}
	if err := runHooks(ctx, cfgs, record); err != nil {
		return err
	}
	if err := e.codec.EncodeRecord(schema, cfgs, record, true); err != nil {
		return err
	}

	relations := takeRelationValues(cfgs, record)

	if schema.SoftDeletable() && schema.HasColumn("updated_at") {
		if _, set := record["updated_at"]; !set {
			record["updated_at"] = e.idgen.Timestamp()
		}
	}

	var (
		assignments []string
		args        []any
	)
	for _, col := range schema.RealColumns() {
		if col.Name == schema.PrimaryKey {
			continue
		}
		value, ok := record[col.Name]
		if !ok {
			continue
		}
		args = append(args, value)
		assignments = append(assignments,
			e.dialect.QuoteIdentifier(col.Name)+" = "+e.dialect.Placeholder(len(args)))
	}

	if len(assignments) == 0 {
		// Nothing persistable changed; relation-only updates are still
		// valid (e.g. replacing role membership).
		e.syncRelations(ctx, collection, relations, id)
		return nil
	}

	args = append(args, id)
	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		e.dialect.QuoteIdentifier(collection),
		strings.Join(assignments, ", "),
		e.dialect.QuoteIdentifier(schema.PrimaryKey),
		e.dialect.Placeholder(len(args)))

	if _, err := e.db.ExecContext(ctx, updateSQL, args...); err != nil {
		return fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}

	e.syncRelations(ctx, collection, relations, id)

	return nil
}

// Delete soft-deletes the row when the collection has a deleted_at
// column, otherwise removes it. Primary key discovery runs per call so a
// concurrent migration cannot leave the engine deleting by a stale key.
func (e *Engine) Delete(ctx context.Context, collection string, id any) (DeleteResult, error) {
	schema, _, err := e.describe(ctx, collection)
	if err != nil {
		return DeleteResult{}, err
	}

	table := e.dialect.QuoteIdentifier(collection)
	pk := e.dialect.QuoteIdentifier(schema.PrimaryKey)

	var (
		query string
		args  []any
	)
	if schema.SoftDeletable() {
		query = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
			table, e.dialect.QuoteIdentifier("deleted_at"), e.dialect.Placeholder(1), pk, e.dialect.Placeholder(2))
		args = []any{e.idgen.Timestamp(), id}
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, pk, e.dialect.Placeholder(1))
		args = []any{id}
	}

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return DeleteResult{}, fmt.Errorf("%w: %s %v", lattice.ErrRowNotFound, collection, id)
	}

	return DeleteResult{SoftDeleted: schema.SoftDeletable()}, nil
}

// takeRelationValues removes relation-bound virtual fields from the
// record and returns the member key lists to synchronize.
func takeRelationValues(cfgs map[string]fieldconfig.FieldConfig, record map[string]any) map[string][]any {
	relations := make(map[string][]any)
	for name, cfg := range cfgs {
		if cfg.Relation == nil {
			continue
		}
		value, ok := record[name]
		if !ok {
			continue
		}
		delete(record, name)

		members := []any{}
		switch v := value.(type) {
		case []any:
			members = v
		case []string:
			for _, s := range v {
				members = append(members, s)
			}
		case nil:
			// Explicit null clears the membership.
		}
		relations[name] = members
	}
	return relations
}

// syncRelations replaces join-table memberships for the owner. Failures
// are logged and swallowed: the primary row write is the unit of success,
// associations are best-effort.
func (e *Engine) syncRelations(ctx context.Context, collection string, relations map[string][]any, ownerKey any) {
	if len(relations) == 0 || ownerKey == nil {
		return
	}

	cfgs := e.registry.Get(collection)
	for name, members := range relations {
		rule := cfgs[name].Relation
		if rule == nil {
			continue
		}
		err := e.relations.ReplaceSet(ctx, rule.JoinTable, rule.OwnerColumn, ownerKey, rule.MemberColumn, members)
		if err != nil {
			e.logger.Warn("relation sync failed",
				"collection", collection, "field", name, "join_table", rule.JoinTable, "error", err)
		}
	}
}

func copyRecord(input map[string]any) map[string]any {
	record := make(map[string]any, len(input))
	for k, v := range input {
		record[k] = v
	}
	return record
}
