// Package errors provides the enhanced error type used across petpulse-go.
// Errors are built fluently with a component, a category, and structured
// context, then unwrap cleanly so callers can keep using errors.Is/As with
// sentinel values. An optional reporter hook forwards built errors to
// telemetry without the call sites knowing about it.
package errors

import (
	stderrors "errors"
	"fmt"
	"sync/atomic"
)

// Category classifies an error for handling, metrics, and telemetry grouping.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryConfiguration Category = "configuration"
	CategoryDatabase      Category = "database"
	CategoryState         Category = "state"
	CategoryNetwork       Category = "network"
	CategoryDelivery      Category = "delivery"
	CategoryConflict      Category = "conflict"
	CategoryNotFound      Category = "not-found"
	CategoryGeneric       Category = "generic"
)

// EnhancedError carries a wrapped error together with the component it came
// from, its category, and arbitrary key/value context.
type EnhancedError struct {
	Err       error
	Component string
	Category  Category
	Context   map[string]any
}

func (e *EnhancedError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *EnhancedError) Unwrap() error { return e.Err }

// GetContext returns the context value for key, or nil when absent.
func (e *EnhancedError) GetContext(key string) any {
	if e.Context == nil {
		return nil
	}
	return e.Context[key]
}

// ErrorBuilder accumulates metadata before producing an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  Category
	context   map[string]any
}

// New starts a builder wrapping an existing error.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err, category: CategoryGeneric}
}

// Newf starts a builder from a formatted message. %w verbs are honored so an
// underlying cause can be preserved.
func Newf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: fmt.Errorf(format, args...), category: CategoryGeneric}
}

// Component records which subsystem produced the error.
func (b *ErrorBuilder) Component(name string) *ErrorBuilder {
	b.component = name
	return b
}

// Category classifies the error.
func (b *ErrorBuilder) Category(c Category) *ErrorBuilder {
	b.category = c
	return b
}

// Context attaches a key/value pair for diagnostics.
func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if b.context == nil {
		b.context = make(map[string]any)
	}
	b.context[key] = value
	return b
}

// Build finalizes the error and, when a reporter is installed, forwards it.
func (b *ErrorBuilder) Build() error {
	e := &EnhancedError{
		Err:       b.err,
		Component: b.component,
		Category:  b.category,
		Context:   b.context,
	}
	if r := reporter.Load(); r != nil {
		(*r)(e)
	}
	return e
}

// Reporter receives every built EnhancedError. Implementations must be cheap
// and non-blocking; they run on the error path.
type Reporter func(*EnhancedError)

var reporter atomic.Pointer[Reporter]

// SetReporter installs the telemetry hook. Passing nil removes it.
func SetReporter(r Reporter) {
	if r == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&r)
}

// Standard library re-exports so importers need a single errors package.

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

// NewStd mirrors the standard errors.New for sentinel declarations.
func NewStd(text string) error { return stderrors.New(text) }
