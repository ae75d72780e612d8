package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/catalog"
	"github.com/lattice-hq/lattice/engine"
	"github.com/lattice-hq/lattice/fieldconfig"
)

// Sentinel errors
var (
	ErrEnvironmentNotConfigured = errors.New("environment is not configured")
	ErrInvalidFilterJSON        = errors.New("filters must be a JSON array of {field,op,value} objects")
	ErrInvalidSortJSON          = errors.New("sort must be a JSON array of {id,desc} objects")
	ErrInvalidBodyJSON          = errors.New("body must be a JSON object")
	ErrProjectAlreadyExists     = errors.New("lattice.yaml already exists")
)

// openEngine loads configuration, opens the configured database and
// builds the collection engine.
func openEngine(ctx *Context) (*engine.Engine, *sql.DB, *lattice.Config, error) {
	config, err := lattice.LoadConfig(ctx.Config)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	dbConfig, ok := config.Databases[ctx.Environment]
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrEnvironmentNotConfigured, ctx.Environment)
	}

	dialect, ok := lattice.ParseDialect(config.Dialect)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %q", lattice.ErrUnsupportedDialect, config.Dialect)
	}

	driver := dbConfig.Driver
	if driver == "" {
		driver = dialect.DriverName()
	}

	db, err := sql.Open(driver, dbConfig.Connection)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	registry := fieldconfig.NewRegistry()
	for _, file := range config.FieldFiles {
		if err := registry.LoadFile(file); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
	}

	var reader engine.SchemaReader
	if config.Engine.CatalogCacheTTL != "" {
		ttl, err := time.ParseDuration(config.Engine.CatalogCacheTTL)
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("%w: catalog_cache_ttl: %v", lattice.ErrConfigValidation, err)
		}
		base, err := catalog.NewReader(db, dialect, dbConfig.Schema)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		reader = catalog.NewCachedReader(base, ttl)
	}

	eng, err := engine.New(db, dialect, registry, config.Collections, engine.Options{
		DefaultPageSize:  config.Engine.DefaultPageSize,
		MaxPageSize:      config.Engine.MaxPageSize,
		VirtualWorkers:   config.Engine.VirtualWorkers,
		SearchTermLimit:  config.Engine.SearchTermLimit,
		DefaultLocale:    config.Engine.DefaultLocale,
		PasswordHashIter: config.Engine.PasswordHashIter,
		SchemaName:       dbConfig.Schema,
		Reader:           reader,
	})
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return eng, db, config, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// InitCmd represents the init command
type InitCmd struct {
	Force bool `help:"Overwrite an existing lattice.yaml"`
}

const defaultConfigTemplate = `# Lattice configuration
dialect: sqlite

databases:
  development:
    driver: sqlite3
    connection: ./lattice.db

collections:
  groups:
    core:
      - users
      - roles
    catalog:
      - products

engine:
  default_page_size: 20
  max_page_size: 500
`

// Run executes the init command
func (cmd *InitCmd) Run(ctx *Context) error {
	if _, err := os.Stat(ctx.Config); err == nil && !cmd.Force {
		return fmt.Errorf("%w: %s", ErrProjectAlreadyExists, ctx.Config)
	}

	if err := os.WriteFile(ctx.Config, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if !ctx.Quiet {
		color.Green("Created %s", ctx.Config)
	}
	return nil
}

// SchemaCmd represents the schema command
type SchemaCmd struct {
	Collection string `arg:"" help:"Collection name"`
}

// Run executes the schema command
func (cmd *SchemaCmd) Run(ctx *Context) error {
	eng, db, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	schema, err := eng.Describe(context.Background(), cmd.Collection)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		color.Blue("Collection %s (primary key: %s)", schema.Name, schema.PrimaryKey)
	}
	return printJSON(schema)
}

// ListCmd represents the list command
type ListCmd struct {
	Collection string `arg:"" help:"Collection name"`
	Page       int    `short:"p" default:"1" help:"Page number"`
	PageSize   int    `name:"ps" default:"20" help:"Page size"`
	Search     string `short:"s" help:"Free-text search (supports AND/OR)"`
	Filters    string `short:"f" help:"JSON array of {field,op,value} filter objects"`
	Sort       string `help:"JSON array of {id,desc} sort objects"`
	Locale     string `help:"Locale for i18n-aware sorting"`
}

// Run executes the list command
func (cmd *ListCmd) Run(ctx *Context) error {
	eng, db, config, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	req := engine.ListRequest{
		Search:   cmd.Search,
		Page:     cmd.Page,
		PageSize: cmd.PageSize,
		Locale:   cmd.Locale,
	}
	if req.Locale == "" {
		req.Locale = config.Engine.DefaultLocale
	}

	if cmd.Filters != "" {
		if err := json.Unmarshal([]byte(cmd.Filters), &req.Filters); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFilterJSON, err)
		}
	}
	if cmd.Sort != "" {
		if err := json.Unmarshal([]byte(cmd.Sort), &req.Sort); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSortJSON, err)
		}
	}

	page, err := eng.List(context.Background(), cmd.Collection, req)
	if err != nil {
		return err
	}

	if ctx.Verbose {
		color.Blue("%d rows (page %d of %d, %d total)", len(page.Rows), page.Page, page.TotalPages, page.Total)
	}
	return printJSON(page)
}

// GetCmd represents the get command
type GetCmd struct {
	Collection string `arg:"" help:"Collection name"`
	ID         string `arg:"" help:"Primary key value"`
}

// Run executes the get command
func (cmd *GetCmd) Run(ctx *Context) error {
	eng, db, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	row, err := eng.Get(context.Background(), cmd.Collection, cmd.ID)
	if err != nil {
		return err
	}
	return printJSON(row)
}

// CreateCmd represents the create command
type CreateCmd struct {
	Collection string `arg:"" help:"Collection name"`
	Body       string `arg:"" optional:"" help:"JSON object (reads stdin when omitted)"`
}

// Run executes the create command
func (cmd *CreateCmd) Run(ctx *Context) error {
	eng, db, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	input, err := readBody(cmd.Body)
	if err != nil {
		return err
	}

	result, err := eng.Create(context.Background(), cmd.Collection, input)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		color.Green("Created %s %v", cmd.Collection, result.ID)
	}
	return printJSON(result)
}

// UpdateCmd represents the update command
type UpdateCmd struct {
	Collection string `arg:"" help:"Collection name"`
	ID         string `arg:"" help:"Primary key value"`
	Body       string `arg:"" optional:"" help:"JSON object (reads stdin when omitted)"`
}

// Run executes the update command
func (cmd *UpdateCmd) Run(ctx *Context) error {
	eng, db, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	input, err := readBody(cmd.Body)
	if err != nil {
		return err
	}

	if err := eng.Update(context.Background(), cmd.Collection, cmd.ID, input); err != nil {
		return err
	}

	if !ctx.Quiet {
		color.Green("Updated %s %s", cmd.Collection, cmd.ID)
	}
	return nil
}

// DeleteCmd represents the delete command
type DeleteCmd struct {
	Collection string `arg:"" help:"Collection name"`
	ID         string `arg:"" help:"Primary key value"`
}

// Run executes the delete command
func (cmd *DeleteCmd) Run(ctx *Context) error {
	eng, db, _, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := eng.Delete(context.Background(), cmd.Collection, cmd.ID)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		if result.SoftDeleted {
			color.Yellow("Soft-deleted %s %s", cmd.Collection, cmd.ID)
		} else {
			color.Green("Deleted %s %s", cmd.Collection, cmd.ID)
		}
	}
	return printJSON(result)
}

// readBody parses the JSON body argument, falling back to stdin.
func readBody(body string) (map[string]any, error) {
	data := []byte(body)
	if body == "" {
		var err error
		data, err = readAllStdin()
		if err != nil {
			return nil, err
		}
	}

	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBodyJSON, err)
	}
	return input, nil
}

func readAllStdin() ([]byte, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}
