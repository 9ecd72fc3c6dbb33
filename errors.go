package ruleflow

import "errors"

var (
	// ErrNilBinding is returned by Register when given a nil binding.
	ErrNilBinding = errors.New("ruleflow: cannot register nil binding")
	// ErrDuplicateBinding is returned by Register for a binding whose
	// rule/mapping combination is already registered.
	ErrDuplicateBinding = errors.New("ruleflow: binding already registered")
	// ErrNoCurrentInvocation is returned by Arg when called outside a rule
	// body executed by an engine.
	ErrNoCurrentInvocation = errors.New("ruleflow: no rule invocation in progress on this context")
	// ErrParallelLengths is returned when the queries of a parallel binding
	// yield sequences whose non-scalar lengths disagree.
	ErrParallelLengths = errors.New("ruleflow: parallel queries must yield sequences of one common length or scalars")
)
