package ruleflow

import (
	"fmt"
	"sort"
	"strings"
)

// Argument is one resolved value for one parameter of one rule invocation.
type Argument struct {
	// Name is the parameter name this argument fills.
	Name string
	// Value is the resolved value, or the parameter default when the
	// binding could not supply one.
	Value any
	// Label describes where the value came from, e.g. the dotted path or
	// the accumulated query label such as
	// "contracts[contract_id=2].banking.iban".
	Label string
	// Provided is false only when the parameter has a default and the
	// binding did not supply a value.
	Provided bool
}

// Args is a complete argument set for one rule invocation: one Argument per
// supplied parameter, plus the owning rule for default lookups.
type Args struct {
	rule   *Rule
	byName map[string]Argument
}

func newArgs(rule *Rule, arguments map[string]Argument) *Args {
	return &Args{rule: rule, byName: arguments}
}

// Rule returns the rule this argument set was built for.
func (a *Args) Rule() *Rule { return a.rule }

// Get returns the argument supplied for a parameter name.
func (a *Args) Get(name string) (Argument, bool) {
	arg, ok := a.byName[name]
	return arg, ok
}

// Value returns the effective value for a parameter: the supplied argument's
// value, or the parameter default when none was supplied. The second return
// is false for names the rule does not declare.
func (a *Args) Value(name string) (any, bool) {
	if arg, ok := a.byName[name]; ok {
		return arg.Value, true
	}
	p, ok := a.rule.Param(name)
	if !ok {
		return nil, false
	}
	def, _ := p.Default()
	return def, true
}

// Names returns the supplied parameter names, sorted for stable output.
func (a *Args) Names() []string {
	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of supplied arguments.
func (a *Args) Len() int { return len(a.byName) }

// String renders the full parameter information block, covering every
// declared parameter of the rule, supplied or not.
func (a *Args) String() string {
	return a.indentedString("", "\t")
}

func (a *Args) indentedString(indent, step string) string {
	var b strings.Builder
	b.WriteString(indent + "{")
	for _, p := range a.rule.Params() {
		arg, supplied := a.byName[p.Name()]
		provided := supplied && arg.Provided

		value := arg.Value
		label := "unprovided"
		if !supplied {
			value, _ = p.Default()
		} else {
			label = arg.Label
		}
		fmt.Fprintf(&b, "\n%s%s%s: value=%s, id=%s, %s, %s",
			indent, step, p.Name(),
			renderValue(value), label,
			requiredWord(p), providedWord(provided))
	}
	b.WriteString("\n" + indent + "}")
	return b.String()
}

func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return "'" + t + "'"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func requiredWord(p Param) string {
	if p.IsRequired() {
		return "required"
	}
	return "optional"
}

func providedWord(provided bool) string {
	if provided {
		return "provided"
	}
	return "unprovided"
}
