package ruleflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ruleflow/ruleflow/pkg/fieldpath"
)

// Mode decides how failures raised under a binding are classified.
type Mode string

const (
	// ModeError marks the record as failed when the rule or its extraction
	// raises.
	ModeError Mode = "error"
	// ModeWarning records the failure as a warning; the record still counts
	// as succeeded.
	ModeWarning Mode = "warning"
)

// Provision is one unit produced by Binding.Provide: either a complete
// argument set for one rule invocation, or an in-band extraction error.
type Provision struct {
	Args *Args
	Err  error
}

// Binding pairs a rule with a strategy for extracting its arguments from a
// record. The three implementations — PathBinding, CartesianBinding and
// ParallelBinding — form a closed set behind this one capability.
type Binding interface {
	// Rule returns the bound rule.
	Rule() *Rule
	// Mode returns the failure classification for this binding.
	Mode() Mode
	// ID returns a stable identifier derived from the rule and the
	// parameter mapping. Two bindings with the same rule and mapping share
	// an ID.
	ID() string
	// Provide turns a record into zero or more argument sets. Extraction
	// failures for required parameters appear as error provisions. The
	// error return is reserved for configuration errors detected during
	// evaluation, such as parallel length mismatches.
	Provide(record any) ([]Provision, error)
	// ProvisionIndicator maps every declared parameter of the rule to a
	// human-readable description of where its value comes from.
	ProvisionIndicator() map[string]string
}

// BindingOption configures binding construction.
type BindingOption func(*bindingBase)

// AsWarning makes failures under the binding warnings instead of errors.
func AsWarning() BindingOption {
	return func(b *bindingBase) { b.mode = ModeWarning }
}

type bindingBase struct {
	rule *Rule
	mode Mode
}

func newBindingBase(rule *Rule, opts []BindingOption) bindingBase {
	base := bindingBase{rule: rule, mode: ModeError}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

func (b *bindingBase) Rule() *Rule { return b.rule }

func (b *bindingBase) Mode() Mode { return b.mode }

// checkParamMapping verifies that every mapped parameter exists on the rule
// and every required rule parameter is mapped. Violations are configuration
// errors and fail binding construction.
func checkParamMapping[V any](rule *Rule, mapping map[string]V) error {
	for name := range mapping {
		if _, ok := rule.Param(name); !ok {
			return fmt.Errorf("ruleflow: rule %q has no parameter %q", rule.Name(), name)
		}
	}
	for _, name := range rule.RequiredParamNames() {
		if _, ok := mapping[name]; !ok {
			return fmt.Errorf("ruleflow: rule %q misses required parameter %q", rule.Name(), name)
		}
	}
	return nil
}

// mappingID renders a parameter mapping as a stable string for binding
// identity, with keys sorted.
func mappingID(rule *Rule, kind string, describe map[string]string) string {
	names := make([]string, 0, len(describe))
	for name := range describe {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(kind + "(" + rule.Name())
	for _, name := range names {
		b.WriteString(", " + name + "=" + describe[name])
	}
	b.WriteString(")")
	return b.String()
}

// PathBinding resolves each parameter from a single dotted path on the
// record. It is the everyday binding for flat extraction; use the query
// bindings for one-to-many fan-out.
type PathBinding struct {
	bindingBase
	paths map[string]string
	id    string
}

// NewPathBinding builds a direct-path binding. Construction fails if the
// mapping does not fit the rule's parameters.
func NewPathBinding(rule *Rule, paths map[string]string, opts ...BindingOption) (*PathBinding, error) {
	if rule == nil {
		return nil, fmt.Errorf("ruleflow: path binding needs a rule")
	}
	if err := checkParamMapping(rule, paths); err != nil {
		return nil, err
	}
	copied := make(map[string]string, len(paths))
	for name, path := range paths {
		copied[name] = path
	}
	return &PathBinding{
		bindingBase: newBindingBase(rule, opts),
		paths:       copied,
		id:          mappingID(rule, "PathBinding", copied),
	}, nil
}

// ID implements Binding.
func (b *PathBinding) ID() string { return b.id }

// Provide resolves every mapped path once. A missing required path yields a
// single error provision and no argument set; a missing optional path falls
// back to the parameter default with Provided reported false.
func (b *PathBinding) Provide(record any) ([]Provision, error) {
	arguments := make(map[string]Argument, len(b.paths))
	for name, path := range b.paths {
		value, err := fieldpath.Resolve(record, path)
		if err != nil {
			param, _ := b.rule.Param(name)
			if param.IsRequired() {
				return []Provision{{Err: newFailure(0, err, "%s: value not provided", path)}}, nil
			}
			def, _ := param.Default()
			arguments[name] = Argument{Name: name, Value: def, Label: path, Provided: false}
			continue
		}
		arguments[name] = Argument{Name: name, Value: value, Label: path, Provided: true}
	}
	return []Provision{{Args: newArgs(b.rule, arguments)}}, nil
}

// ProvisionIndicator implements Binding.
func (b *PathBinding) ProvisionIndicator() map[string]string {
	indicator := make(map[string]string, len(b.rule.Params()))
	for _, name := range b.rule.ParamNames() {
		if path, ok := b.paths[name]; ok {
			indicator[name] = "." + path
		} else {
			indicator[name] = "Unmapped"
		}
	}
	return indicator
}

func (b *PathBinding) String() string { return b.id }
