package fieldconfig

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	lattice "github.com/lattice-hq/lattice"
)

var (
	hookEnvOnce sync.Once
	hookEnv     *cel.Env
	hookEnvErr  error
)

// hookEnvironment builds the shared CEL environment for declarative
// hooks. Expressions see the field's current value as `value` and the
// whole input object as `input`.
func hookEnvironment() (*cel.Env, error) {
	hookEnvOnce.Do(func() {
		hookEnv, hookEnvErr = cel.NewEnv(
			cel.HomogeneousAggregateLiterals(),
			cel.EagerlyValidateDeclarations(true),
			ext.Strings(),
			cel.Variable("value", cel.DynType),
			cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return hookEnv, hookEnvErr
}

// CompileBeforeChange compiles a CEL expression into a BeforeChangeHook.
// The expression's result replaces the field's value.
func CompileBeforeChange(expr string) (BeforeChangeHook, error) {
	env, err := hookEnvironment()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", lattice.ErrBadHookExpression, issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lattice.ErrBadHookExpression, err)
	}

	return &celBeforeChange{expr: expr, program: program}, nil
}

type celBeforeChange struct {
	expr    string
	program cel.Program
}

func (h *celBeforeChange) BeforeChange(ctx context.Context, value any, input map[string]any) (any, error) {
	if input == nil {
		input = map[string]any{}
	}
	if value == nil {
		// CEL has no null-safe dyn default; expressions treat missing
		// values as empty string.
		value = ""
	}

	out, _, err := h.program.ContextEval(ctx, map[string]any{
		"value": value,
		"input": input,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", lattice.ErrHookFailed, h.expr, err)
	}

	return out.Value(), nil
}
