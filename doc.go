// Package ruleflow applies independently registered validation rules to one
// or more records concurrently, collects every failure instead of stopping at
// the first, and returns a queryable report of successes, failures and
// warnings.
//
// A Rule wraps a validation function together with its parameter metadata: a
// set of named parameters, the required subset (those without defaults) and
// an optional per-invocation timeout. A Binding pairs a rule with a strategy
// for extracting its arguments from a record:
//
//   - PathBinding resolves each parameter from a single dotted path.
//   - CartesianBinding maps parameters to queries and invokes the rule once
//     per combination of the extracted sequences.
//   - ParallelBinding zips the extracted sequences by position, broadcasting
//     scalar (single-element) sequences.
//
// Queries navigate arbitrarily nested records and fan out over collections:
//
//	q := ruleflow.NewQuery().
//	    Path("contracts").
//	    Iter(byContractID).
//	    Path("banking.iban")
//
// The engine schedules one task per (record, binding) pair, enforces rule
// timeouts, and captures extraction errors, rule failures and timeouts into a
// per-record store. Each captured failure carries a stable numeric id derived
// from its source location (see pkg/errid), so recurring failures can be
// grouped and tracked across runs even when surrounding code moves.
//
//	engine := ruleflow.NewEngine[Customer]()
//	if err := engine.Register(binding); err != nil { ... }
//	result, err := engine.Validate(ctx, customers...)
//	if err != nil { ... }
//	for record, failures := range result.RecordErrors() { ... }
//
// Inside a rule body, ruleflow.Arg(ctx, name) exposes the argument the
// current invocation was given, including its provenance label — useful for
// error messages that must point at the offending nested entry. Validate
// itself only fails for configuration errors; all data-level failures are
// visible exclusively through the returned Result, whose views are computed
// lazily and cached.
package ruleflow
