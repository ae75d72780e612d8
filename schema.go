package lattice

// ColumnInfo is a unified column definition shared by the catalog reader,
// the filter compiler, and the engine.
type ColumnInfo struct {
	Name            string `json:"name" yaml:"name"`                       // Column name
	DataType        string `json:"dataType" yaml:"dataType"`               // Raw SQL type as reported by the catalog
	LatticeType     string `json:"latticeType" yaml:"latticeType"`         // Normalized type (string, int, float, bool, json, datetime, date, time, uuid, bytes)
	Nullable        bool   `json:"nullable" yaml:"nullable"`               // Is nullable
	DefaultValue    string `json:"defaultValue" yaml:"defaultValue"`       // Default value (optional)
	OrdinalPosition int    `json:"ordinalPosition" yaml:"ordinalPosition"` // 1-origin position in the table
	IsPrimaryKey    bool   `json:"isPrimaryKey" yaml:"isPrimaryKey"`       // Is primary key
	AutoIncrement   bool   `json:"autoIncrement" yaml:"autoIncrement"`     // Storage auto-increments the value
	Virtual         bool   `json:"virtual" yaml:"virtual"`                 // Non-persisted, merged from field configuration
}

// IsTemporal reports whether the column stores a timestamp, date or time
// value. Empty input for such columns is coerced to SQL NULL on write.
func (c ColumnInfo) IsTemporal() bool {
	switch c.LatticeType {
	case "datetime", "date", "time":
		return true
	}
	return false
}

// IsSearchable reports whether free-text search terms may match the
// column. Only text and integer columns participate in search.
func (c ColumnInfo) IsSearchable() bool {
	return c.LatticeType == "string" || c.LatticeType == "int"
}

// CollectionSchema describes a collection as discovered from the database
// catalog, plus any virtual fields merged from field configuration.
type CollectionSchema struct {
	Name       string       `json:"name" yaml:"name"`
	Columns    []ColumnInfo `json:"columns" yaml:"columns"` // Ordered by ordinal position
	PrimaryKey string       `json:"primaryKey" yaml:"primaryKey"`
}

// Column returns the column with the given name, or false when the
// collection has no such column (virtual fields included).
func (s CollectionSchema) Column(name string) (ColumnInfo, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnInfo{}, false
}

// RealColumns returns the persisted (non-virtual) columns.
func (s CollectionSchema) RealColumns() []ColumnInfo {
	cols := make([]ColumnInfo, 0, len(s.Columns))
	for _, col := range s.Columns {
		if !col.Virtual {
			cols = append(cols, col)
		}
	}
	return cols
}

// HasColumn reports whether a persisted column with the name exists.
func (s CollectionSchema) HasColumn(name string) bool {
	col, ok := s.Column(name)
	return ok && !col.Virtual
}

// SoftDeletable reports whether rows are soft-deleted via deleted_at.
func (s CollectionSchema) SoftDeletable() bool {
	return s.HasColumn("deleted_at")
}

// FilterCondition is a single structured filter entry supplied by the
// caller. Conditions referencing virtual or unknown fields are dropped by
// the compiler rather than failing the request.
type FilterCondition struct {
	Field    string `json:"field"`
	Operator string `json:"op"`
	Value    any    `json:"value"`
}

// Filter operators accepted by the compiler.
const (
	OpEq   = "eq"
	OpNeq  = "neq"
	OpGt   = "gt"
	OpGte  = "gte"
	OpLt   = "lt"
	OpLte  = "lte"
	OpLike = "like"
	OpIn   = "in"
)

// SortSpec is one ORDER BY term. Terms are emitted in input order.
type SortSpec struct {
	Field      string `json:"id"`
	Descending bool   `json:"desc"`
}

// Page is the result of a List operation. Total is computed from a COUNT
// query sharing the WHERE clause of the data query.
type Page struct {
	Rows       []map[string]any `json:"data"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}
