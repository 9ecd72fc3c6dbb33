package ruleflow

import (
	"fmt"
)

// queryBinding carries what the two query-driven bindings share: the mapping
// from parameter names to queries, evaluated per record.
type queryBinding struct {
	bindingBase
	queries map[string]*Query
	id      string
}

func newQueryBinding(rule *Rule, kind string, queries map[string]*Query, opts []BindingOption) (queryBinding, error) {
	if rule == nil {
		return queryBinding{}, fmt.Errorf("ruleflow: %s needs a rule", kind)
	}
	if err := checkParamMapping(rule, queries); err != nil {
		return queryBinding{}, err
	}
	copied := make(map[string]*Query, len(queries))
	describe := make(map[string]string, len(queries))
	for name, q := range queries {
		if q == nil {
			return queryBinding{}, fmt.Errorf("ruleflow: %s maps parameter %q to a nil query", kind, name)
		}
		copied[name] = q
		describe[name] = q.String()
	}
	return queryBinding{
		bindingBase: newBindingBase(rule, opts),
		queries:     copied,
		id:          mappingID(rule, kind, describe),
	}, nil
}

func (b *queryBinding) ID() string { return b.id }

func (b *queryBinding) ProvisionIndicator() map[string]string {
	indicator := make(map[string]string, len(b.rule.Params()))
	for _, name := range b.rule.ParamNames() {
		if q, ok := b.queries[name]; ok {
			indicator[name] = q.String()
		} else {
			indicator[name] = "Unmapped"
		}
	}
	return indicator
}

// mappedParams returns the mapped parameter names in the rule's declaration
// order, so that evaluation and combination order is deterministic.
func (b *queryBinding) mappedParams() []string {
	var names []string
	for _, name := range b.rule.ParamNames() {
		if _, ok := b.queries[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// defaultArgument builds the unprovided-fallback argument for an optional
// parameter whose extraction failed.
func defaultArgument(rule *Rule, name string) Argument {
	param, _ := rule.Param(name)
	def, _ := param.Default()
	return Argument{Name: name, Value: def, Label: "<none>", Provided: false}
}

// CartesianBinding maps each parameter to a query and invokes the rule once
// per combination of the extracted sequences: parameter A yielding 3 values
// and parameter B yielding 2 produce 6 argument sets.
type CartesianBinding struct {
	queryBinding
}

// NewCartesianBinding builds a cartesian query binding. Construction fails if
// the mapping does not fit the rule's parameters.
func NewCartesianBinding(rule *Rule, queries map[string]*Query, opts ...BindingOption) (*CartesianBinding, error) {
	base, err := newQueryBinding(rule, "CartesianBinding", queries, opts)
	if err != nil {
		return nil, err
	}
	return &CartesianBinding{queryBinding: base}, nil
}

// Provide evaluates every query and yields the cross product of the value
// sequences. Extraction errors of required parameters are excluded from the
// product and emitted as error provisions afterwards; errors of optional
// parameters participate as unprovided defaults.
func (b *CartesianBinding) Provide(record any) ([]Provision, error) {
	order := b.mappedParams()
	sequences := make([][]Element, len(order))
	var errored []Provision

	for i, name := range order {
		elements := b.queries[name].Evaluate(record)
		param, _ := b.rule.Param(name)
		if !param.IsRequired() {
			sequences[i] = elements
			continue
		}
		values := elements[:0:0]
		for _, el := range elements {
			if el.Err != nil {
				errored = append(errored, Provision{Err: el.Err})
				continue
			}
			values = append(values, el)
		}
		sequences[i] = values
	}

	var provisions []Provision
	forEachCombination(sequences, func(combo []Element) {
		arguments := make(map[string]Argument, len(order))
		for i, name := range order {
			el := combo[i]
			if el.Err != nil {
				// Only optional parameters keep error elements in their
				// sequence; fall back to the default.
				arguments[name] = defaultArgument(b.rule, name)
				continue
			}
			arguments[name] = Argument{Name: name, Value: el.Value, Label: el.Label, Provided: true}
		}
		provisions = append(provisions, Provision{Args: newArgs(b.rule, arguments)})
	})

	return append(provisions, errored...), nil
}

// forEachCombination walks the cross product of the given sequences in
// odometer order. An empty sequence makes the product empty.
func forEachCombination(sequences [][]Element, visit func(combo []Element)) {
	if len(sequences) == 0 {
		return
	}
	for _, seq := range sequences {
		if len(seq) == 0 {
			return
		}
	}
	indices := make([]int, len(sequences))
	combo := make([]Element, len(sequences))
	for {
		for i, seq := range sequences {
			combo[i] = seq[indices[i]]
		}
		visit(combo)

		pos := len(sequences) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(sequences[pos]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return
		}
	}
}
