// Package celrule builds ruleflow rules from CEL expressions, so simple
// business checks can be declared as data instead of Go code.
//
// Each declared parameter becomes a CEL variable of dynamic type. The
// expression must evaluate to a boolean: true passes, false fails with a
// message naming the expression and the offending arguments, any other
// result type is a failure in itself.
package celrule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/ruleflow/ruleflow"
)

// costLimit bounds expression evaluation to keep runaway expressions from
// stalling validation tasks.
const costLimit = 1_000_000

// New compiles a CEL expression into a ruleflow rule. The expression may
// reference every declared parameter by name; unprovided optional parameters
// evaluate to their defaults.
func New(name, expression string, params []ruleflow.Param, opts ...ruleflow.RuleOption) (*ruleflow.Rule, error) {
	declarations := make([]cel.EnvOption, 0, len(params))
	for _, p := range params {
		declarations = append(declarations, cel.Variable(p.Name(), cel.DynType))
	}
	env, err := cel.NewEnv(declarations...)
	if err != nil {
		return nil, fmt.Errorf("celrule: failed to create environment for rule %q: %w", name, err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("celrule: compile error in rule %q: %w", name, issues.Err())
	}
	program, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("celrule: program creation for rule %q: %w", name, err)
	}

	fn := func(_ context.Context, args *ruleflow.Args) error {
		activation := make(map[string]any, len(params))
		for _, p := range params {
			value, _ := args.Value(p.Name())
			activation[p.Name()] = value
		}
		out, _, err := program.Eval(activation)
		if err != nil {
			return ruleflow.Failf("expression %q: %v", expression, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return ruleflow.Failf("expression %q evaluated to non-boolean %v", expression, out.Value())
		}
		if !matched {
			return ruleflow.Failf("expression %q not satisfied by %s", expression, describeArgs(args))
		}
		return nil
	}

	return ruleflow.NewRule(name, fn, params, opts...)
}

// MustNew is like New but panics on a construction error. Intended for
// package-level rule declarations.
func MustNew(name, expression string, params []ruleflow.Param, opts ...ruleflow.RuleOption) *ruleflow.Rule {
	r, err := New(name, expression, params, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func describeArgs(args *ruleflow.Args) string {
	out := ""
	for i, name := range args.Names() {
		if i > 0 {
			out += ", "
		}
		arg, _ := args.Get(name)
		out += fmt.Sprintf("%s=%v (%s)", name, arg.Value, arg.Label)
	}
	if out == "" {
		return "no arguments"
	}
	return out
}
