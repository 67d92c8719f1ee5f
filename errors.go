package ioc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/toutaio/toutago-ioc/registry"
	"github.com/toutaio/toutago-ioc/typeid"
)

// ErrUnboundTemplate is returned when an unbound template such as
// Repository<_> is requested directly. Only instantiations can be built.
var ErrUnboundTemplate = errors.New("unbound template cannot be resolved")

// AmbiguousTemplateArgumentError is returned when a requested instantiation's
// arguments do not fit the arity of the bound implementation template.
type AmbiguousTemplateArgumentError = registry.AmbiguousTemplateArgumentError

// UnregisteredAbstractionError is returned when a type has no registration and
// cannot be constructed on its own.
type UnregisteredAbstractionError struct {
	Type typeid.ID

	// BoundFrom is set when Type is the implementation of a registration
	// made for BoundFrom, and Type itself has no way to be constructed.
	BoundFrom typeid.ID
}

func (e *UnregisteredAbstractionError) Error() string {
	if !e.BoundFrom.IsZero() && e.BoundFrom != e.Type {
		return fmt.Sprintf("implementation %v bound to %v cannot be constructed. Did you forget to Provide a constructor for it?", e.Type, e.BoundFrom)
	}
	return fmt.Sprintf("no registration for abstraction %v. Did you forget to register it with For().Use()?", e.Type)
}

// CircularDependencyError indicates a circular dependency was detected.
// Cycle starts and ends with the repeated type, e.g. A -> B -> A.
type CircularDependencyError struct {
	Cycle []typeid.ID
}

func (e *CircularDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "circular dependency detected"
	}
	return fmt.Sprintf("circular dependency detected: %s", joinPath(e.Cycle))
}

// ConstructionError wraps a failure raised by a constructor itself.
type ConstructionError struct {
	Type  typeid.ID
	Cause error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructor for %v failed: %v", e.Type, e.Cause)
}

// Unwrap returns the error raised by the constructor.
func (e *ConstructionError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError is returned when a value does not have the type a caller
// or constructor parameter expects.
type TypeMismatchError struct {
	Want typeid.ID
	Got  typeid.ID
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expected a value assignable to %v, got %v", e.Want, e.Got)
}

// InvalidBindingError is returned when a registration or constructor has invalid parameters.
type InvalidBindingError struct {
	Reason string
	Cause  error
}

func (e *InvalidBindingError) Error() string {
	return fmt.Sprintf("invalid binding: %s", e.Reason)
}

// Unwrap returns the underlying cause error.
func (e *InvalidBindingError) Unwrap() error {
	return e.Cause
}

// ResolutionError is returned when instance resolution fails.
// Path holds the chain of types being resolved when the failure happened,
// starting with the requested type and ending with the failing one.
type ResolutionError struct {
	Type  typeid.ID
	Path  []typeid.ID
	Cause error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to resolve %v", e.Type)
	if len(e.Path) > 1 {
		fmt.Fprintf(&b, " (%s)", joinPath(e.Path))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a problem found during registration validation.
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", e.Errors[0])
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		b.WriteString(fmt.Sprintf("  %d. %v\n", i+1, err))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	return e.Errors
}

func joinPath(path []typeid.ID) string {
	names := make([]string, len(path))
	for i, id := range path {
		names[i] = id.String()
	}
	return strings.Join(names, " -> ")
}

// newResolutionError copies path so the error does not alias the resolver's stack.
func newResolutionError(path []typeid.ID, cause error) *ResolutionError {
	chain := make([]typeid.ID, len(path))
	copy(chain, path)

	var requested typeid.ID
	if len(chain) > 0 {
		requested = chain[0]
	}
	return &ResolutionError{Type: requested, Path: chain, Cause: cause}
}
