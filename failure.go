package ruleflow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

const maxRecordRender = 80

// FailureRecord is one captured rule failure or extraction error, carrying a
// stable numeric id derived from the failure site.
type FailureRecord struct {
	// ID is the stable numeric identifier of the failure site.
	ID int
	// Detail is the short failure message.
	Detail string
	// Cause is the underlying error.
	Cause error
	// Record is the record under validation when the failure occurred.
	Record any
	// RuleName names the rule whose binding raised the failure.
	RuleName string
	// BindingID identifies the owning binding.
	BindingID string
	// Args is a snapshot of the argument set in flight, nil when the
	// failure happened before any argument set was built.
	Args *Args
	// Timeout marks failures recorded because the rule exceeded its
	// configured timeout.
	Timeout bool
}

// Error renders the full diagnostic message: id, cause type, truncated
// record, rule name and the parameter information block.
func (f *FailureRecord) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d, %s: %s\n", f.ID, causeType(f.Cause), f.Detail)
	fmt.Fprintf(&b, "\tDataSet: %s\n", renderRecord(f.Record))
	fmt.Fprintf(&b, "\tError ID: %d\n", f.ID)
	fmt.Fprintf(&b, "\tError type: %s\n", causeType(f.Cause))
	fmt.Fprintf(&b, "\tValidator function: %s", f.RuleName)
	if f.Args != nil {
		fmt.Fprintf(&b, "\n\tParameter information: \n%s", f.Args.indentedString("\t\t", "\t"))
	} else {
		b.WriteString("\n\tParameter information: No info")
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *FailureRecord) Unwrap() error { return f.Cause }

func causeType(cause error) string {
	switch cause.(type) {
	case nil, *failure:
		return "failure"
	default:
		return fmt.Sprintf("%T", cause)
	}
}

// renderRecord produces a truncated representation of the record, preferring
// JSON and falling back to fmt for unmarshalable values.
func renderRecord(record any) string {
	rendered, err := json.Marshal(record)
	s := string(rendered)
	if err != nil || s == "{}" {
		s = fmt.Sprintf("%+v", record)
	}
	if runes := []rune(s); len(runes) > maxRecordRender {
		s = string(runes[:maxRecordRender-3]) + "..."
	}
	return s
}

// ErrorStore collects the failures of a single record during one validate
// call, split into errors and warnings and keyed by binding. Appends are
// serialized; concurrent argument sets of one binding may fail at the same
// time.
type ErrorStore struct {
	mu       sync.Mutex
	errors   map[string][]*FailureRecord
	warnings map[string][]*FailureRecord
}

func newErrorStore() *ErrorStore {
	return &ErrorStore{
		errors:   make(map[string][]*FailureRecord),
		warnings: make(map[string][]*FailureRecord),
	}
}

func (s *ErrorStore) add(f *FailureRecord, mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == ModeWarning {
		s.warnings[f.BindingID] = append(s.warnings[f.BindingID], f)
		return
	}
	s.errors[f.BindingID] = append(s.errors[f.BindingID], f)
}

// Errors returns all error-mode failures of the record across bindings.
func (s *ErrorStore) Errors() []*FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flatten(s.errors)
}

// Warnings returns all warning-mode failures of the record across bindings.
func (s *ErrorStore) Warnings() []*FailureRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flatten(s.warnings)
}

// HasErrors reports whether any error-mode failure was recorded.
func (s *ErrorStore) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errors) > 0
}

// HasWarnings reports whether any warning-mode failure was recorded.
func (s *ErrorStore) HasWarnings() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.warnings) > 0
}

func flatten(byBinding map[string][]*FailureRecord) []*FailureRecord {
	bindingIDs := make([]string, 0, len(byBinding))
	for id := range byBinding {
		bindingIDs = append(bindingIDs, id)
	}
	// Stable order across calls; map iteration would shuffle.
	sort.Strings(bindingIDs)

	var all []*FailureRecord
	for _, id := range bindingIDs {
		all = append(all, byBinding[id]...)
	}
	return all
}
