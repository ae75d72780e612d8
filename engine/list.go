package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/codec"
	"github.com/lattice-hq/lattice/fieldconfig"
	"github.com/lattice-hq/lattice/filter"
)

// ListRequest carries the query parameters of a List call.
type ListRequest struct {
	Filters  []lattice.FilterCondition
	Search   string
	Sort     []lattice.SortSpec
	Page     int
	PageSize int
	Locale   string
}

// List runs the catalog reader, compiles the structured query, then
// executes a COUNT and a SELECT sharing identical WHERE parameters.
// Soft-deleted rows are excluded. Rows pass through the codec read path
// and virtual field computation; password-kind fields are stripped.
func (e *Engine) List(ctx context.Context, collection string, req ListRequest) (lattice.Page, error) {
	schema, cfgs, err := e.describe(ctx, collection)
	if err != nil {
		return lattice.Page{}, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = e.defaultPageSize
	}
	if pageSize > e.maxPageSize {
		pageSize = e.maxPageSize
	}
	locale := req.Locale
	if locale == "" {
		locale = e.defaultLocale
	}

	fragment := e.compiler.Compile(filter.Request{
		Filters:   req.Filters,
		Search:    req.Search,
		Sort:      req.Sort,
		Locale:    locale,
		TermLimit: e.searchTermLimit,
	}, schema, cfgs)

	where := fragment.Where
	if schema.SoftDeletable() {
		notDeleted := e.dialect.QuoteIdentifier("deleted_at") + " IS NULL"
		if where == "" {
			where = notDeleted
		} else {
			where = notDeleted + " AND " + where
		}
	}

	table := e.dialect.QuoteIdentifier(collection)

	countSQL := "SELECT COUNT(*) FROM " + table
	if where != "" {
		countSQL += " WHERE " + where
	}

	var total int
	if err := e.db.QueryRowContext(ctx, countSQL, fragment.Args...).Scan(&total); err != nil {
		return lattice.Page{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}

	columnNames := make([]string, 0, len(schema.Columns))
	for _, col := range schema.RealColumns() {
		columnNames = append(columnNames, e.dialect.QuoteIdentifier(col.Name))
	}

	dataSQL := "SELECT " + strings.Join(columnNames, ", ") + " FROM " + table
	if where != "" {
		dataSQL += " WHERE " + where
	}
	if fragment.OrderBy != "" {
		dataSQL += " ORDER BY " + fragment.OrderBy
	}
	dataSQL += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	rows, err := e.db.QueryContext(ctx, dataSQL, fragment.Args...)
	if err != nil {
		return lattice.Page{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return lattice.Page{}, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}

	for _, row := range result {
		e.codec.DecodeRow(schema, cfgs, row)
	}

	if err := e.computeVirtualFields(ctx, collection, cfgs, result); err != nil {
		return lattice.Page{}, err
	}

	for _, row := range result {
		codec.StripPasswords(cfgs, row)
	}

	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	return lattice.Page{
		Rows:       result,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Get fetches a single row by primary key. Unlike List it does not
// exclude soft-deleted rows, so admin detail views can inspect them.
func (e *Engine) Get(ctx context.Context, collection string, id any) (map[string]any, error) {
	schema, cfgs, err := e.describe(ctx, collection)
	if err != nil {
		return nil, err
	}

	columnNames := make([]string, 0, len(schema.Columns))
	for _, col := range schema.RealColumns() {
		columnNames = append(columnNames, e.dialect.QuoteIdentifier(col.Name))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(columnNames, ", "),
		e.dialect.QuoteIdentifier(collection),
		e.dialect.QuoteIdentifier(schema.PrimaryKey),
		e.dialect.Placeholder(1))

	rows, err := e.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lattice.ErrStorage, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s %v", lattice.ErrRowNotFound, collection, id)
	}

	row := result[0]
	e.codec.DecodeRow(schema, cfgs, row)
	if err := e.computeVirtualFields(ctx, collection, cfgs, []map[string]any{row}); err != nil {
		return nil, err
	}
	codec.StripPasswords(cfgs, row)

	return row, nil
}

// computeVirtualFields resolves configured virtual fields for every row.
// Resolvers may issue further I/O, so rows are processed with bounded
// concurrency rather than unbounded fan-out; the worker limit keeps large
// page sizes from exhausting the connection pool.
func (e *Engine) computeVirtualFields(ctx context.Context, collection string, cfgs map[string]fieldconfig.FieldConfig, rows []map[string]any) error {
	resolvers := make(map[string]fieldconfig.ValueResolver)
	for name, cfg := range cfgs {
		if cfg.Kind == fieldconfig.KindVirtual && cfg.Resolver != nil {
			resolvers[name] = cfg.Resolver
		}
	}
	if len(resolvers) == 0 || len(rows) == 0 {
		return nil
	}

	sem := make(chan struct{}, e.virtualWorkers)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, row := range rows {
		wg.Add(1)
		sem <- struct{}{}
		go func(row map[string]any) {
			defer wg.Done()
			defer func() { <-sem }()

			for name, resolver := range resolvers {
				value, err := resolver.Resolve(ctx, row)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("%w: virtual field %s: %v", lattice.ErrStorage, name, err)
					}
					mu.Unlock()
					return
				}
				row[name] = value
			}
		}(row)
	}

	wg.Wait()

	if firstErr != nil {
		e.logger.Warn("virtual field computation failed", "collection", collection, "error", firstErr)
		return firstErr
	}
	return nil
}
