package ruleflow

import (
	"fmt"
	"sort"
)

// ParallelBinding maps each parameter to a query and zips the extracted
// sequences by position instead of crossing them: the i-th argument set takes
// the i-th element of every sequence. Scalar sequences (length 1) broadcast
// their single value to every position. All non-scalar sequences must share
// one common length; a mismatch is a configuration error for that record.
type ParallelBinding struct {
	queryBinding
}

// NewParallelBinding builds a parallel query binding. Construction fails if
// the mapping does not fit the rule's parameters.
func NewParallelBinding(rule *Rule, queries map[string]*Query, opts ...BindingOption) (*ParallelBinding, error) {
	base, err := newQueryBinding(rule, "ParallelBinding", queries, opts)
	if err != nil {
		return nil, err
	}
	return &ParallelBinding{queryBinding: base}, nil
}

// Provide evaluates every query and yields position-aligned argument sets.
// An extraction error at a required parameter's position yields one error
// provision for that position; optional parameters fall back to defaults.
// Disagreeing non-scalar lengths are reported through the error return,
// regardless of the order the queries were supplied in.
func (b *ParallelBinding) Provide(record any) ([]Provision, error) {
	order := b.mappedParams()
	sequences := make([][]Element, len(order))
	for i, name := range order {
		sequences[i] = b.queries[name].Evaluate(record)
	}

	count, err := broadcastLength(sequences)
	if err != nil {
		return nil, err
	}

	provisions := make([]Provision, 0, count)
	for pos := 0; pos < count; pos++ {
		arguments := make(map[string]Argument, len(order))
		var failed error
		for i, name := range order {
			seq := sequences[i]
			el := seq[0]
			if len(seq) > 1 {
				el = seq[pos]
			}
			if el.Err != nil {
				param, _ := b.rule.Param(name)
				if param.IsRequired() {
					failed = el.Err
					break
				}
				arguments[name] = defaultArgument(b.rule, name)
				continue
			}
			arguments[name] = Argument{Name: name, Value: el.Value, Label: el.Label, Provided: true}
		}
		if failed != nil {
			provisions = append(provisions, Provision{Err: failed})
			continue
		}
		provisions = append(provisions, Provision{Args: newArgs(b.rule, arguments)})
	}
	return provisions, nil
}

// broadcastLength returns the common position count of the sequences. Every
// length other than 1 must agree; the set of distinct non-scalar lengths is
// computed up front so the result does not depend on parameter order.
func broadcastLength(sequences [][]Element) (int, error) {
	distinct := make(map[int]struct{})
	for _, seq := range sequences {
		if len(seq) != 1 {
			distinct[len(seq)] = struct{}{}
		}
	}
	switch len(distinct) {
	case 0:
		if len(sequences) == 0 {
			return 0, nil
		}
		return 1, nil
	case 1:
		for length := range distinct {
			return length, nil
		}
		panic("unreachable")
	default:
		lengths := make([]int, 0, len(distinct))
		for length := range distinct {
			lengths = append(lengths, length)
		}
		sort.Ints(lengths)
		return 0, fmt.Errorf("%w: got lengths %v", ErrParallelLengths, lengths)
	}
}
