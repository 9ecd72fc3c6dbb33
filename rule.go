package ruleflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ruleflow/ruleflow/pkg/errid"
)

// ValidatorFunc is the body of a validation rule. It receives the resolved
// arguments for one invocation and reports a failure by returning an error.
// Returning nil means the record passed this rule for these arguments.
type ValidatorFunc func(ctx context.Context, args *Args) error

// Param declares one parameter of a rule. A parameter without a default is
// required: every binding of the rule must be able to supply it.
type Param struct {
	name       string
	def        any
	hasDefault bool
}

// Required declares a parameter that every binding must supply.
func Required(name string) Param {
	return Param{name: name}
}

// Optional declares a parameter with a default value. Bindings may leave it
// out; the rule then sees the default with Provided reported as false.
func Optional(name string, def any) Param {
	return Param{name: name, def: def, hasDefault: true}
}

// Name returns the parameter name.
func (p Param) Name() string { return p.name }

// Default returns the declared default value, if any.
func (p Param) Default() (any, bool) { return p.def, p.hasDefault }

// IsRequired reports whether the parameter has no default.
func (p Param) IsRequired() bool { return !p.hasDefault }

// Rule wraps a validation function together with its parameter metadata and
// an optional execution timeout. A Rule holds no execution logic itself; the
// engine invokes it, bindings decide how its arguments are extracted.
type Rule struct {
	name    string
	fn      ValidatorFunc
	params  []Param
	byName  map[string]Param
	timeout time.Duration
	site    errid.Site
}

// RuleOption configures rule construction.
type RuleOption func(*Rule)

// WithTimeout bounds every invocation of the rule. An invocation exceeding
// the timeout is cancelled and recorded as a timeout failure.
func WithTimeout(d time.Duration) RuleOption {
	return func(r *Rule) { r.timeout = d }
}

// NewRule builds a rule from a name, a validation function and its parameter
// declarations. Parameter names must be unique and non-empty.
func NewRule(name string, fn ValidatorFunc, params []Param, opts ...RuleOption) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("ruleflow: rule name must not be empty")
	}
	if fn == nil {
		return nil, fmt.Errorf("ruleflow: rule %q has no validation function", name)
	}

	byName := make(map[string]Param, len(params))
	for _, p := range params {
		if p.name == "" {
			return nil, fmt.Errorf("ruleflow: rule %q declares a parameter with an empty name", name)
		}
		if _, dup := byName[p.name]; dup {
			return nil, fmt.Errorf("ruleflow: rule %q declares parameter %q twice", name, p.name)
		}
		byName[p.name] = p
	}

	r := &Rule{
		name:   name,
		fn:     fn,
		params: params,
		byName: byName,
		site:   errid.FuncSite(fn),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// MustRule is like NewRule but panics on a construction error. Intended for
// package-level rule declarations.
func MustRule(name string, fn ValidatorFunc, params []Param, opts ...RuleOption) *Rule {
	r, err := NewRule(name, fn, params, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the rule's name.
func (r *Rule) Name() string { return r.name }

// Timeout returns the per-invocation timeout, zero meaning unbounded.
func (r *Rule) Timeout() time.Duration { return r.timeout }

// Params returns the parameter declarations in declaration order.
func (r *Rule) Params() []Param { return r.params }

// ParamNames returns all declared parameter names in declaration order.
func (r *Rule) ParamNames() []string {
	names := make([]string, len(r.params))
	for i, p := range r.params {
		names[i] = p.name
	}
	return names
}

// RequiredParamNames returns the names of all parameters without defaults.
func (r *Rule) RequiredParamNames() []string {
	var names []string
	for _, p := range r.params {
		if p.IsRequired() {
			names = append(names, p.name)
		}
	}
	return names
}

// Param looks up a parameter declaration by name.
func (r *Rule) Param(name string) (Param, bool) {
	p, ok := r.byName[name]
	return p, ok
}
