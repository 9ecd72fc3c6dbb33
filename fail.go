package ruleflow

import (
	"fmt"

	"github.com/ruleflow/ruleflow/pkg/errid"
)

// failure is an error that remembers where it was created, so the engine can
// assign it a stable numeric id. Rule bodies create failures through Failf or
// FailWithID; the framework uses newFailure internally for extraction errors
// and timeouts.
type failure struct {
	site  errid.Site
	id    int
	hasID bool
	msg   string
	cause error
}

func (f *failure) Error() string { return f.msg }

func (f *failure) Unwrap() error { return f.cause }

// Failf returns a validation failure whose identity is tied to the calling
// line. Two Failf calls on different lines of the same rule yield failures
// with different ids; the same line always yields the same id.
func Failf(format string, args ...any) error {
	return &failure{
		site: errid.Here(1),
		msg:  fmt.Sprintf(format, args...),
	}
}

// FailWithID returns a validation failure carrying a caller-chosen id instead
// of a generated one.
func FailWithID(id int, format string, args ...any) error {
	return &failure{
		id:    id,
		hasID: true,
		msg:   fmt.Sprintf(format, args...),
	}
}

// newFailure builds a framework-internal failure. skip selects the stack
// frame whose location becomes the failure site, counted from the caller.
func newFailure(skip int, cause error, format string, args ...any) *failure {
	return &failure{
		site:  errid.Here(skip + 1),
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
	}
}
