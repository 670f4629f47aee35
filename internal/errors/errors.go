package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Category classifies an error by how callers are expected to react to it.
type Category string

const (
	// Raised before any simulation starts; never retried.
	CategoryConfiguration Category = "CONFIG"
	CategoryValidation    Category = "VALIDATION"

	// Informational: the core returns an empty result instead of failing.
	CategoryInsufficientData Category = "INSUFFICIENT_DATA"

	// Recorded in trial history, the search continues.
	CategoryTrial Category = "TRIAL"

	CategoryCancelled Category = "CANCELLED"
	CategoryStrategy  Category = "STRATEGY"
	CategoryData      Category = "DATA"
	CategoryExchange  Category = "EXCHANGE"
)

// Error is a categorized error with the component and operation that raised it.
type Error struct {
	Category   Category
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches any *Error of the same category, so errors.Is(err, &Error{Category: ...}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Category == e.Category && t.Component == "" && t.Message == ""
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a categorized error.
func New(category Category, component, operation, message string) *Error {
	return &Error{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap wraps err with category context. A nil err yields nil.
func Wrap(err error, category Category, component, operation, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    message,
		Underlying: err,
	}
}

// NewConfigurationError reports a malformed definition, range or request.
func NewConfigurationError(component, message string, args ...interface{}) *Error {
	return New(CategoryConfiguration, component, "validate", fmt.Sprintf(message, args...))
}

// NewTrialFailure wraps an error raised while evaluating one optimization trial.
func NewTrialFailure(trial int, err error) *Error {
	return Wrap(err, CategoryTrial, "optimization", "evaluate", fmt.Sprintf("trial %d failed", trial)).
		WithContext("trial", trial)
}

// NewCancelled reports a run stopped by its caller.
func NewCancelled(component string, err error) *Error {
	return Wrap(err, CategoryCancelled, component, "run", "cancelled by caller")
}

// NewStrategyError reports a fault inside strategy code.
func NewStrategyError(operation, message string, err error) *Error {
	if err == nil {
		return New(CategoryStrategy, "strategy", operation, message)
	}
	return Wrap(err, CategoryStrategy, "strategy", operation, message)
}

// CategoryOf returns the category of the first *Error in err's chain, or "".
func CategoryOf(err error) Category {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Category
	}
	return ""
}

func IsConfiguration(err error) bool { return CategoryOf(err) == CategoryConfiguration }

func IsTrialFailure(err error) bool { return CategoryOf(err) == CategoryTrial }

// IsCancelled reports whether err is a cancellation, including a bare context error.
func IsCancelled(err error) bool {
	if CategoryOf(err) == CategoryCancelled {
		return true
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
