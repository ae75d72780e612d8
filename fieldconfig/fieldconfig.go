// Package fieldconfig holds the static, per-collection field
// configuration layered on top of raw columns: field kinds (plain, json,
// password, email, virtual), lifecycle hooks, i18n flags, and virtual
// field resolvers. The registry is read-only after construction and does
// no I/O on lookup.
package fieldconfig

import (
	"context"
	"slices"
	"sort"

	lattice "github.com/lattice-hq/lattice"
)

// Kind classifies the non-structural semantics of a field.
type Kind string

const (
	KindPlain    Kind = "plain"
	KindJSON     Kind = "json"
	KindPassword Kind = "password"
	KindEmail    Kind = "email"
	KindVirtual  Kind = "virtual"
)

// BeforeChangeHook transforms a single field's value before persistence.
// It sees the full input for context but must only change its own value.
type BeforeChangeHook interface {
	BeforeChange(ctx context.Context, value any, input map[string]any) (any, error)
}

// BeforeChangeFunc adapts a function to BeforeChangeHook.
type BeforeChangeFunc func(ctx context.Context, value any, input map[string]any) (any, error)

func (f BeforeChangeFunc) BeforeChange(ctx context.Context, value any, input map[string]any) (any, error) {
	return f(ctx, value, input)
}

// BeforeSaveHook runs against the whole mutable record. Virtual field
// hooks run first and may set sibling real fields through record; real
// field hooks may replace their own value by returning replace=true.
type BeforeSaveHook interface {
	BeforeSave(ctx context.Context, value any, record map[string]any) (newValue any, replace bool, err error)
}

// BeforeSaveFunc adapts a function to BeforeSaveHook.
type BeforeSaveFunc func(ctx context.Context, value any, record map[string]any) (any, bool, error)

func (f BeforeSaveFunc) BeforeSave(ctx context.Context, value any, record map[string]any) (any, bool, error) {
	return f(ctx, value, record)
}

// ValueResolver computes a virtual field from a stored row on read.
type ValueResolver interface {
	Resolve(ctx context.Context, row map[string]any) (any, error)
}

// ResolverFunc adapts a function to ValueResolver.
type ResolverFunc func(ctx context.Context, row map[string]any) (any, error)

func (f ResolverFunc) Resolve(ctx context.Context, row map[string]any) (any, error) {
	return f(ctx, row)
}

// RelationRule binds a virtual field to a many-to-many join table. When
// the field is present in a write, the engine replaces the owner's full
// membership with the supplied keys after the primary row is persisted.
type RelationRule struct {
	JoinTable    string
	OwnerColumn  string
	MemberColumn string
}

// FieldConfig describes one field's semantics within a collection.
type FieldConfig struct {
	Kind Kind
	I18n bool // JSON value indexed by locale at sort time

	// Relation links a virtual field to a join table (replace-set
	// semantics on write).
	Relation *RelationRule

	// Password semantics. SaltField names a sibling column receiving the
	// generated salt; ConfirmField names a paired confirmation field that
	// is always dropped before persistence.
	SaltField    string
	ConfirmField string

	// Declared type and nullability for virtual fields, used only for
	// schema reporting.
	Type     string
	Nullable bool

	BeforeChange BeforeChangeHook
	BeforeSave   BeforeSaveHook
	Resolver     ValueResolver
}

// Registry maps collection name to its field configuration.
type Registry struct {
	collections map[string]map[string]FieldConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]map[string]FieldConfig)}
}

// Register adds or replaces a field's configuration.
func (r *Registry) Register(collection, field string, cfg FieldConfig) {
	if cfg.Kind == "" {
		cfg.Kind = KindPlain
	}
	fields, ok := r.collections[collection]
	if !ok {
		fields = make(map[string]FieldConfig)
		r.collections[collection] = fields
	}
	fields[field] = cfg
}

// Get returns the field configuration map for a collection. Collections
// without explicit configuration yield an empty map, meaning every column
// is treated as plain.
func (r *Registry) Get(collection string) map[string]FieldConfig {
	if fields, ok := r.collections[collection]; ok {
		return fields
	}
	return map[string]FieldConfig{}
}

// VirtualFields returns the virtual field names of a collection in
// deterministic order.
func (r *Registry) VirtualFields(collection string) []string {
	var names []string
	for name, cfg := range r.Get(collection) {
		if cfg.Kind == KindVirtual {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MergeSchema merges virtual fields into a discovered schema. Virtual
// fields never exist as real columns; they are appended after the real
// columns and tagged as non-persisted.
func (r *Registry) MergeSchema(collection string, schema lattice.CollectionSchema) lattice.CollectionSchema {
	fields := r.Get(collection)
	virtuals := r.VirtualFields(collection)
	if len(virtuals) == 0 {
		return schema
	}

	// The input schema may come from a shared cache; growing its slice in
	// place would write through the shared backing array.
	schema.Columns = slices.Clone(schema.Columns)

	position := 0
	for _, col := range schema.Columns {
		if col.OrdinalPosition > position {
			position = col.OrdinalPosition
		}
	}

	for _, name := range virtuals {
		if _, exists := schema.Column(name); exists {
			continue
		}
		cfg := fields[name]
		fieldType := cfg.Type
		if fieldType == "" {
			fieldType = "string"
		}
		position++
		schema.Columns = append(schema.Columns, lattice.ColumnInfo{
			Name:            name,
			DataType:        "virtual",
			LatticeType:     fieldType,
			Nullable:        cfg.Nullable,
			OrdinalPosition: position,
			Virtual:         true,
		})
	}

	return schema
}
