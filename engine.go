package ruleflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruleflow/ruleflow/pkg/errid"
)

const defaultPoolSize = 16

// Engine fans registered bindings across records, one concurrent task per
// (record, binding) pair, and collects every failure into a queryable Result.
// The record type must be comparable so results can be grouped per record.
type Engine[D comparable] struct {
	mu       sync.Mutex
	bindings []Binding
	byID     map[string]Binding
	logger   *slog.Logger
	poolSize int
}

// EngineOption configures engine construction.
type EngineOption func(*engineConfig)

type engineConfig struct {
	logger   *slog.Logger
	poolSize int
}

// WithLogger sets the logger used for per-task debug output and captured
// failure reporting.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPoolSize bounds how many (record, binding) tasks run at once.
func WithPoolSize(n int) EngineOption {
	return func(c *engineConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// NewEngine creates an engine with no registered bindings.
func NewEngine[D comparable](opts ...EngineOption) *Engine[D] {
	cfg := engineConfig{
		// noop logger by default
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		poolSize: defaultPoolSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[D]{
		byID:     make(map[string]Binding),
		logger:   cfg.logger,
		poolSize: cfg.poolSize,
	}
}

// Register adds a binding to the engine. Bindings with the same rule and
// mapping as an already registered one are rejected.
func (e *Engine[D]) Register(binding Binding) error {
	if binding == nil {
		return ErrNilBinding
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.byID[binding.ID()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateBinding, binding.ID())
	}
	e.byID[binding.ID()] = binding
	e.bindings = append(e.bindings, binding)
	return nil
}

// Bindings returns the registered bindings in registration order.
func (e *Engine[D]) Bindings() []Binding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Binding, len(e.bindings))
	copy(out, e.bindings)
	return out
}

// Validate runs every registered binding against every record and returns
// once all tasks have completed. Data-level failures never surface through
// the error return; they are visible exclusively on the Result. Records are
// deduplicated; a record given twice is validated once.
func (e *Engine[D]) Validate(ctx context.Context, records ...D) (*Result[D], error) {
	e.mu.Lock()
	bindings := make([]Binding, len(e.bindings))
	copy(bindings, e.bindings)
	e.mu.Unlock()

	stores := make(map[D]*ErrorStore, len(records))
	var order []D
	for _, record := range records {
		if _, seen := stores[record]; seen {
			continue
		}
		stores[record] = newErrorStore()
		order = append(order, record)
	}

	sem := make(chan struct{}, e.poolSize)
	var wg sync.WaitGroup
	for _, record := range order {
		for _, binding := range bindings {
			wg.Add(1)
			go func(record D, binding Binding) {
				sem <- struct{}{}
				defer func() {
					<-sem
					wg.Done()
				}()
				e.runTask(ctx, record, binding, stores[record])
			}(record, binding)
		}
	}
	wg.Wait()

	return newResult(order, stores), nil
}

// runTask executes one (record, binding) pair: ask the binding for argument
// sets, invoke the rule once per set, capture everything that goes wrong.
func (e *Engine[D]) runTask(ctx context.Context, record D, binding Binding, store *ErrorStore) {
	taskID := uuid.NewString()
	logger := e.logger.With("task_id", taskID, "rule", binding.Rule().Name())
	logger.Debug("executing validation task")
	started := time.Now()

	provisions, err := binding.Provide(record)
	if err != nil {
		// Evaluation-time configuration error, e.g. parallel length
		// mismatch. Scoped to this record; sibling tasks continue.
		e.capture(logger, store, record, binding, nil, newFailure(0, err, "%v", err), false)
		return
	}
	for _, provision := range provisions {
		if provision.Err != nil {
			e.capture(logger, store, record, binding, nil, provision.Err, false)
			continue
		}
		e.invoke(ctx, logger, record, binding, provision.Args, store)
	}

	logger.Debug("completed validation task", "elapsed_ms", time.Since(started).Milliseconds())
}

// invoke runs the rule once with one argument set, enforcing the rule's
// timeout if it has one.
func (e *Engine[D]) invoke(ctx context.Context, logger *slog.Logger, record D, binding Binding, args *Args, store *ErrorStore) {
	rule := binding.Rule()
	ctx = withArgs(ctx, args)

	timeout := rule.Timeout()
	if timeout <= 0 {
		if err := safeInvoke(ctx, rule, args); err != nil {
			e.capture(logger, store, record, binding, args, err, false)
		}
		return
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- safeInvoke(tctx, rule, args)
	}()
	select {
	case err := <-done:
		if err != nil {
			e.capture(logger, store, record, binding, args, err, false)
		}
	case <-tctx.Done():
		err := newFailure(0, tctx.Err(), "timeout (%s) during execution", timeout)
		e.capture(logger, store, record, binding, args, err, true)
	}
}

// safeInvoke calls the rule body and converts panics into failures so one
// argument set cannot take down sibling invocations.
func safeInvoke(ctx context.Context, rule *Rule, args *Args) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = newFailure(0, fmt.Errorf("panic: %v", recovered), "rule %s panicked: %v", rule.Name(), recovered)
		}
	}()
	return rule.fn(ctx, args)
}

// capture assigns the failure its stable id, logs it and appends it to the
// record's store under the owning binding.
func (e *Engine[D]) capture(logger *slog.Logger, store *ErrorStore, record any, binding Binding, args *Args, err error, timedOut bool) {
	fr := &FailureRecord{
		ID:        failureID(binding.Rule(), err),
		Detail:    err.Error(),
		Cause:     errorCause(err),
		Record:    record,
		RuleName:  binding.Rule().Name(),
		BindingID: binding.ID(),
		Args:      args,
		Timeout:   timedOut,
	}

	mode := binding.Mode()
	if mode == ModeWarning {
		logger.Warn("validation warning", "error_id", fr.ID, "message", fr.Error())
	} else {
		logger.Error("validation failure", "error_id", fr.ID, "message", fr.Error())
	}
	store.add(fr, mode)
}

// failureID resolves the stable numeric id for an error. Failures created
// through Failf/FailWithID or by the framework carry their site (or explicit
// id); plain errors returned from a rule body are identified by the rule
// function's definition site.
func failureID(rule *Rule, err error) int {
	var f *failure
	if errors.As(err, &f) {
		if f.hasID {
			return f.id
		}
		return errid.ID(f.site)
	}
	return errid.ID(rule.site)
}

func errorCause(err error) error {
	var f *failure
	if errors.As(err, &f) && f.cause != nil {
		return f.cause
	}
	return err
}
