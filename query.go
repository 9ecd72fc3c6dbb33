package ruleflow

import (
	"github.com/ruleflow/ruleflow/pkg/fieldpath"
)

// Item is one element produced by an Iter expansion: a sub-value plus a label
// suffix identifying it, e.g. "[contract_id=2]".
type Item struct {
	Value any
	Label string
}

// IterFunc expands one value into a sequence of labeled sub-values.
type IterFunc func(value any) []Item

// EnsureFunc type-checks a value extracted at the end of a query chain. A
// non-nil return marks the element as an extraction error.
type EnsureFunc func(value any) error

// Element is one element of an evaluated query sequence: either a labeled
// value or an in-band extraction error. Carrying errors as elements lets the
// consuming binding decide per parameter whether a missing value aborts the
// argument set or falls back to a default.
type Element struct {
	Value any
	Label string
	Err   error
}

type queryStep struct {
	path   string
	iterFn IterFunc
}

// Query is a declarative extraction chain over a record: descend steps
// navigate nested fields by dotted path, iterate steps fan a single value out
// into a labeled sequence. A Query is a stateless template; it can be
// evaluated against any number of records, each evaluation independent.
type Query struct {
	steps  []queryStep
	ensure EnsureFunc
	str    string
}

// NewQuery returns an empty query chain.
func NewQuery() *Query {
	return &Query{}
}

// Path appends a descend step navigating the given dotted attribute path.
func (q *Query) Path(attrPath string) *Query {
	q.steps = append(q.steps, queryStep{path: attrPath})
	q.str += "." + attrPath
	return q
}

// Iter appends an iterate step. When evaluation reaches this step, fn is
// called with the current value and every returned item continues down the
// chain, its label appended to the accumulated label.
func (q *Query) Iter(fn IterFunc) *Query {
	q.steps = append(q.steps, queryStep{iterFn: fn})
	q.str += "[...]"
	return q
}

// Ensure installs a terminal predicate applied to every extracted value. A
// failing predicate turns the element into an extraction error.
func (q *Query) Ensure(fn EnsureFunc) *Query {
	q.ensure = fn
	return q
}

// Evaluate walks the chain against a record and returns the produced
// sequence. Extraction failures appear as error elements in the sequence
// rather than aborting it.
func (q *Query) Evaluate(record any) []Element {
	elements := []Element{{Value: record}}
	for _, step := range q.steps {
		next := make([]Element, 0, len(elements))
		for _, el := range elements {
			if el.Err != nil {
				next = append(next, el)
				continue
			}
			if step.iterFn != nil {
				for _, item := range step.iterFn(el.Value) {
					next = append(next, Element{Value: item.Value, Label: el.Label + item.Label})
				}
				continue
			}
			label := joinLabel(el.Label, step.path)
			value, err := fieldpath.Resolve(el.Value, step.path)
			if err != nil {
				next = append(next, Element{Label: label, Err: newFailure(0, err, "%s: value not provided", label)})
				continue
			}
			next = append(next, Element{Value: value, Label: label})
		}
		elements = next
	}
	if q.ensure != nil {
		for i, el := range elements {
			if el.Err != nil {
				continue
			}
			if err := q.ensure(el.Value); err != nil {
				elements[i] = Element{Label: el.Label, Err: newFailure(0, err, "%s: %v", el.Label, err)}
			}
		}
	}
	return elements
}

// String returns a compact rendering of the chain, e.g.
// ".contracts[...].iban".
func (q *Query) String() string {
	return q.str
}

func joinLabel(label, path string) string {
	if label == "" {
		return path
	}
	return label + "." + path
}
