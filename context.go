package ruleflow

import (
	"context"
	"fmt"
)

type argsContextKey struct{}

func withArgs(ctx context.Context, args *Args) context.Context {
	return context.WithValue(ctx, argsContextKey{}, args)
}

// Arg returns the argument supplied for the named parameter of the rule
// invocation currently executing on ctx. It only works inside a rule body run
// by an engine: the engine attaches the current argument set to the context
// it passes to the rule. Calling it anywhere else is a usage error, as is
// asking for a parameter the current binding did not supply.
func Arg(ctx context.Context, name string) (Argument, error) {
	args, ok := ctx.Value(argsContextKey{}).(*Args)
	if !ok {
		return Argument{}, ErrNoCurrentInvocation
	}
	arg, ok := args.Get(name)
	if !ok {
		return Argument{}, fmt.Errorf("ruleflow: binding for rule %q did not provide parameter %q", args.Rule().Name(), name)
	}
	return arg, nil
}

// CurrentArgs returns the complete argument set of the rule invocation
// currently executing on ctx, or a usage error outside a rule body.
func CurrentArgs(ctx context.Context) (*Args, error) {
	args, ok := ctx.Value(argsContextKey{}).(*Args)
	if !ok {
		return nil, ErrNoCurrentInvocation
	}
	return args, nil
}
