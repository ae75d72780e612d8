// Package filter compiles structured filter conditions, free-text search
// and sort specifications into parameterized WHERE/ORDER BY fragments.
// Only real (non-virtual) columns discovered by the catalog reader are
// filterable, searchable or sortable; conditions referencing anything
// else are dropped rather than failing the request.
package filter

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/fieldconfig"
)

// Fragment is the compiled output. Where and OrderBy are empty when
// nothing applies; every value is carried in Args and bound as a query
// parameter, never interpolated into the SQL text.
type Fragment struct {
	Where   string
	OrderBy string
	Args    []any
}

// Request is a structured query against one collection.
type Request struct {
	Filters []lattice.FilterCondition
	Search  string
	Sort    []lattice.SortSpec
	Locale  string // locale key for i18n-tagged sort fields

	// TermLimit caps the number of search terms compiled per group; zero
	// means unlimited. Each term expands to one LIKE per searchable
	// column, so the cap bounds the size of the generated SQL.
	TermLimit int
}

// Compiler turns Requests into SQL fragments for one dialect.
type Compiler struct {
	dialect lattice.Dialect
	logger  *slog.Logger
}

// NewCompiler creates a compiler for the dialect. Dropped conditions are
// logged at Debug through logger; nil uses the default logger.
func NewCompiler(dialect lattice.Dialect, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{dialect: dialect, logger: logger}
}

var operatorSQL = map[string]string{
	lattice.OpEq:  "=",
	lattice.OpNeq: "<>",
	lattice.OpGt:  ">",
	lattice.OpGte: ">=",
	lattice.OpLt:  "<",
	lattice.OpLte: "<=",
}

// Compile builds the WHERE and ORDER BY fragments for a request against
// a discovered schema. Invalid filters and sort terms are dropped; an
// empty IN list compiles to an always-false predicate so that a filter
// the caller asked for never silently matches every row.
func (c *Compiler) Compile(req Request, schema lattice.CollectionSchema, cfgs map[string]fieldconfig.FieldConfig) Fragment {
	var (
		clauses []string
		args    []any
	)

	for _, cond := range req.Filters {
		clause, ok := c.compileCondition(cond, schema, &args)
		if !ok {
			c.logger.Debug("dropping filter condition",
				"collection", schema.Name, "field", cond.Field, "op", cond.Operator)
			continue
		}
		clauses = append(clauses, clause)
	}

	if search := c.compileSearch(req.Search, req.TermLimit, schema, &args); search != "" {
		clauses = append(clauses, search)
	}

	return Fragment{
		Where:   strings.Join(clauses, " AND "),
		OrderBy: c.compileSort(req.Sort, req.Locale, schema, cfgs),
		Args:    args,
	}
}

// compileCondition compiles one filter entry. The second return value is
// false when the condition must be dropped.
func (c *Compiler) compileCondition(cond lattice.FilterCondition, schema lattice.CollectionSchema, args *[]any) (string, bool) {
	if !schema.HasColumn(cond.Field) {
		return "", false
	}
	column := c.dialect.QuoteIdentifier(cond.Field)

	if op, ok := operatorSQL[cond.Operator]; ok {
		*args = append(*args, cond.Value)
		return fmt.Sprintf("%s %s %s", column, op, c.dialect.Placeholder(len(*args))), true
	}

	switch cond.Operator {
	case lattice.OpLike:
		*args = append(*args, "%"+fmt.Sprint(cond.Value)+"%")
		return fmt.Sprintf("%s LIKE %s", column, c.dialect.Placeholder(len(*args))), true

	case lattice.OpIn:
		values := inValues(cond.Value)
		if len(values) == 0 {
			// An explicit empty membership matches nothing, not everything.
			return "1=0", true
		}
		placeholders := make([]string, 0, len(values))
		for _, v := range values {
			*args = append(*args, v)
			placeholders = append(placeholders, c.dialect.Placeholder(len(*args)))
		}
		return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), true

	default:
		return "", false
	}
}

// inValues accepts either an array or a comma-separated string.
func inValues(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		var out []any
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []any{v}
	}
}

// compileSearch implements the two-level boolean grammar: the string is
// split on OR into groups, groups split on AND into terms; a term matches
// any searchable column, terms within a group are ANDed, groups are ORed.
func (c *Compiler) compileSearch(search string, termLimit int, schema lattice.CollectionSchema, args *[]any) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}

	searchable := make([]lattice.ColumnInfo, 0, len(schema.Columns))
	for _, col := range schema.RealColumns() {
		if col.IsSearchable() {
			searchable = append(searchable, col)
		}
	}
	if len(searchable) == 0 {
		return ""
	}

	var groups []string
	for _, group := range strings.Split(search, " OR ") {
		var terms []string
		for _, term := range strings.Split(group, " AND ") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			if termLimit > 0 && len(terms) >= termLimit {
				c.logger.Debug("dropping excess search term", "collection", schema.Name, "term", term)
				continue
			}
			terms = append(terms, c.compileTerm(term, searchable, args))
		}
		if len(terms) == 0 {
			continue
		}
		groups = append(groups, "("+strings.Join(terms, " AND ")+")")
	}

	if len(groups) == 0 {
		return ""
	}
	return "(" + strings.Join(groups, " OR ") + ")"
}

// compileTerm matches one term against every searchable column.
func (c *Compiler) compileTerm(term string, searchable []lattice.ColumnInfo, args *[]any) string {
	var alternatives []string
	for _, col := range searchable {
		*args = append(*args, "%"+term+"%")
		target := c.dialect.QuoteIdentifier(col.Name)
		if col.LatticeType == "int" {
			target = c.castToText(target)
		}
		alternatives = append(alternatives, fmt.Sprintf("%s LIKE %s", target, c.dialect.Placeholder(len(*args))))
	}
	return "(" + strings.Join(alternatives, " OR ") + ")"
}

func (c *Compiler) castToText(column string) string {
	if c.dialect == lattice.DialectMySQL {
		return fmt.Sprintf("CAST(%s AS CHAR)", column)
	}
	return fmt.Sprintf("CAST(%s AS TEXT)", column)
}

// compileSort emits one ORDER BY term per sort entry in input order.
// Only real columns are sortable; i18n-tagged fields sort by the JSON
// sub-value for the caller's locale instead of the raw JSON text.
func (c *Compiler) compileSort(sort []lattice.SortSpec, locale string, schema lattice.CollectionSchema, cfgs map[string]fieldconfig.FieldConfig) string {
	var terms []string
	for _, spec := range sort {
		if !schema.HasColumn(spec.Field) {
			c.logger.Debug("dropping sort term", "collection", schema.Name, "field", spec.Field)
			continue
		}

		target := c.dialect.QuoteIdentifier(spec.Field)
		if cfgs[spec.Field].I18n {
			target = c.localeExpression(target, locale)
		}

		direction := "ASC"
		if spec.Descending {
			direction = "DESC"
		}
		terms = append(terms, target+" "+direction)
	}
	return strings.Join(terms, ", ")
}

// localeExpression extracts a locale key from a JSON column for sorting.
// The locale is normalized to a bare language tag before being embedded
// in the JSON path, so only tag-safe characters reach the SQL text.
func (c *Compiler) localeExpression(column, locale string) string {
	key := NormalizeLocale(locale)

	switch c.dialect {
	case lattice.DialectPostgres:
		return fmt.Sprintf("%s->>'%s'", column, key)
	case lattice.DialectMySQL:
		return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(%s, '$.%s'))", column, key)
	default:
		return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
	}
}

// NormalizeLocale reduces a caller-supplied locale to a canonical BCP 47
// tag, falling back to "en" for anything unparseable.
func NormalizeLocale(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}
