package fieldconfig

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// FieldFile is the YAML document shape for declarative field
// configuration. Programmatic hooks and resolvers are registered in Go;
// the file carries everything that is data: kinds, i18n flags, password
// column pairing, and CEL beforeChange expressions.
type FieldFile struct {
	Collections map[string]CollectionFields `yaml:"collections"`
}

// CollectionFields groups the field settings of one collection.
type CollectionFields struct {
	Fields map[string]FieldSettings `yaml:"fields"`
}

// FieldSettings is the serializable subset of FieldConfig.
type FieldSettings struct {
	Kind         string `yaml:"kind"`
	I18n         bool   `yaml:"i18n"`
	SaltField    string `yaml:"salt_field"`
	ConfirmField string `yaml:"confirm_field"`
	Type         string `yaml:"type"`
	Nullable     bool   `yaml:"nullable"`
	BeforeChange string `yaml:"before_change"` // CEL expression over value/input

	Relation *RelationSettings `yaml:"relation"`
}

// RelationSettings is the serializable form of RelationRule.
type RelationSettings struct {
	JoinTable    string `yaml:"join_table"`
	OwnerColumn  string `yaml:"owner_column"`
	MemberColumn string `yaml:"member_column"`
}

// LoadFile reads one YAML field configuration file into the registry.
// Later files override earlier registrations field by field.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read field configuration %s: %w", path, err)
	}
	return r.LoadYAML(data)
}

// LoadYAML parses YAML field configuration into the registry.
func (r *Registry) LoadYAML(data []byte) error {
	var file FieldFile
	if err := yaml.UnmarshalWithOptions(data, &file, yaml.Strict()); err != nil {
		return fmt.Errorf("failed to parse field configuration: %w", err)
	}

	for collection, fields := range file.Collections {
		for name, settings := range fields.Fields {
			cfg := FieldConfig{
				Kind:         Kind(settings.Kind),
				I18n:         settings.I18n,
				SaltField:    settings.SaltField,
				ConfirmField: settings.ConfirmField,
				Type:         settings.Type,
				Nullable:     settings.Nullable,
			}
			if cfg.Kind == "" {
				cfg.Kind = KindPlain
			}

			if settings.Relation != nil {
				cfg.Relation = &RelationRule{
					JoinTable:    settings.Relation.JoinTable,
					OwnerColumn:  settings.Relation.OwnerColumn,
					MemberColumn: settings.Relation.MemberColumn,
				}
			}

			if settings.BeforeChange != "" {
				hook, err := CompileBeforeChange(settings.BeforeChange)
				if err != nil {
					return fmt.Errorf("collection %s field %s: %w", collection, name, err)
				}
				cfg.BeforeChange = hook
			}

			r.Register(collection, name, cfg)
		}
	}

	return nil
}
