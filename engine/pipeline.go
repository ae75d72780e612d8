package engine

import (
	"context"
	"fmt"
	"sort"

	lattice "github.com/lattice-hq/lattice"
	"github.com/lattice-hq/lattice/fieldconfig"
)

// runHooks executes the three hook phases of a create/update call against
// a mutable record:
//
//  1. beforeChange, once per field present in the input; each hook may
//     transform only its own value.
//  2. beforeSave for virtual fields present in the input, which see the
//     whole record and may set sibling real fields.
//  3. beforeSave for every configured real field whose value is defined
//     after phase 2.
//
// Any hook error aborts the operation. Fields are visited in sorted name
// order so repeated calls behave identically.
func runHooks(ctx context.Context, cfgs map[string]fieldconfig.FieldConfig, record map[string]any) error {
	for _, name := range sortedKeys(record) {
		cfg, ok := cfgs[name]
		if !ok || cfg.BeforeChange == nil {
			continue
		}
		value, err := cfg.BeforeChange.BeforeChange(ctx, record[name], record)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", lattice.ErrHookFailed, name, err)
		}
		record[name] = value
	}

	for _, name := range sortedKeys(record) {
		cfg, ok := cfgs[name]
		if !ok || cfg.Kind != fieldconfig.KindVirtual || cfg.BeforeSave == nil {
			continue
		}
		if _, _, err := cfg.BeforeSave.BeforeSave(ctx, record[name], record); err != nil {
			return fmt.Errorf("%w: field %s: %v", lattice.ErrHookFailed, name, err)
		}
	}

	for _, name := range sortedConfigNames(cfgs) {
		cfg := cfgs[name]
		if cfg.Kind == fieldconfig.KindVirtual || cfg.BeforeSave == nil {
			continue
		}
		value, defined := record[name]
		if !defined {
			continue
		}
		newValue, replace, err := cfg.BeforeSave.BeforeSave(ctx, value, record)
		if err != nil {
			return fmt.Errorf("%w: field %s: %v", lattice.ErrHookFailed, name, err)
		}
		if replace {
			record[name] = newValue
		}
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedConfigNames(cfgs map[string]fieldconfig.FieldConfig) []string {
	keys := make([]string, 0, len(cfgs))
	for k := range cfgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
