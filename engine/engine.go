// Package engine composes the catalog reader, field configuration
// registry, value codec, identifier generator, filter compiler and
// relation synchronizer into the four collection operations exposed to
// the HTTP layer: List, Create, Update and Delete. The engine owns no
// row state between requests; the database is the sole source of truth,
// and the pooled *sql.DB handle is the only shared resource.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/catalog"
	"github.com/lattice-hq/lattice/codec"
	"github.com/lattice-hq/lattice/fieldconfig"
	"github.com/lattice-hq/lattice/filter"
	"github.com/lattice-hq/lattice/identifier"
	"github.com/lattice-hq/lattice/relation"
)

// SchemaReader abstracts catalog.Reader so callers may plug in the
// TTL-cached variant.
type SchemaReader interface {
	Describe(ctx context.Context, collection string) (lattice.CollectionSchema, error)
}

// Options tunes engine behavior. Zero values select defaults.
type Options struct {
	DefaultPageSize  int
	MaxPageSize      int
	VirtualWorkers   int // bounded concurrency for virtual field computation
	SearchTermLimit  int // max search terms per group, zero for unlimited
	DefaultLocale    string
	PasswordHashIter int
	SchemaName       string // PostgreSQL schema / MySQL database override
	Reader           SchemaReader
	Logger           *slog.Logger
}

// Engine is the collection engine orchestrator. Every operation is
// independent and stateless; concurrent calls share only the connection
// pool.
type Engine struct {
	db          *sql.DB
	dialect     lattice.Dialect
	reader      SchemaReader
	registry    *fieldconfig.Registry
	collections lattice.CollectionsConfig
	compiler    *filter.Compiler
	codec       *codec.Codec
	idgen       *identifier.Generator
	relations   *relation.Synchronizer
	logger      *slog.Logger

	defaultPageSize int
	maxPageSize     int
	virtualWorkers  int
	searchTermLimit int
	defaultLocale   string
}

// New creates an engine over a pooled database handle. collections is
// the allow-list; names outside it are rejected before any catalog or
// data query runs.
func New(db *sql.DB, dialect lattice.Dialect, registry *fieldconfig.Registry, collections lattice.CollectionsConfig, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reader := opts.Reader
	if reader == nil {
		r, err := catalog.NewReader(db, dialect, opts.SchemaName)
		if err != nil {
			return nil, err
		}
		reader = r
	}

	if registry == nil {
		registry = fieldconfig.NewRegistry()
	}

	e := &Engine{
		db:              db,
		dialect:         dialect,
		reader:          reader,
		registry:        registry,
		collections:     collections,
		compiler:        filter.NewCompiler(dialect, logger),
		codec:           codec.New(opts.PasswordHashIter),
		idgen:           identifier.New(),
		relations:       relation.NewSynchronizer(db, dialect, logger),
		logger:          logger,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
		virtualWorkers:  opts.VirtualWorkers,
		searchTermLimit: opts.SearchTermLimit,
		defaultLocale:   opts.DefaultLocale,
	}

	if e.defaultPageSize <= 0 {
		e.defaultPageSize = 20
	}
	if e.maxPageSize <= 0 {
		e.maxPageSize = 500
	}
	if e.virtualWorkers <= 0 {
		e.virtualWorkers = 8
	}
	if e.defaultLocale == "" {
		e.defaultLocale = "en"
	}

	return e, nil
}

// Relations exposes the synchronizer for callers wiring custom
// associations outside the field-driven replace-set path.
func (e *Engine) Relations() *relation.Synchronizer {
	return e.relations
}

// Describe returns the discovered schema of a collection merged with its
// configured virtual fields.
func (e *Engine) Describe(ctx context.Context, collection string) (lattice.CollectionSchema, error) {
	if err := e.checkCollection(collection); err != nil {
		return lattice.CollectionSchema{}, err
	}

	schema, err := e.reader.Describe(ctx, collection)
	if err != nil {
		return lattice.CollectionSchema{}, err
	}

	return e.registry.MergeSchema(collection, schema), nil
}

// checkCollection enforces the allow-list.
func (e *Engine) checkCollection(collection string) error {
	if !e.collections.Allowed(collection) {
		return fmt.Errorf("%w: %q", lattice.ErrInvalidCollection, collection)
	}
	return nil
}

// describe runs the allow-list check and per-call schema discovery shared
// by every operation.
func (e *Engine) describe(ctx context.Context, collection string) (lattice.CollectionSchema, map[string]fieldconfig.FieldConfig, error) {
	if err := e.checkCollection(collection); err != nil {
		return lattice.CollectionSchema{}, nil, err
	}

	schema, err := e.reader.Describe(ctx, collection)
	if err != nil {
		return lattice.CollectionSchema{}, nil, err
	}

	return schema, e.registry.Get(collection), nil
}

// scanRows reads every result row into a map keyed by column name.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
