package ioc

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/toutaio/toutago-ioc/typeid"
)

// Resolve builds a new instance of the requested type.
//
// The registry is consulted for the implementation to build; types without a
// registration are built directly when they are constructible. Constructor
// dependencies are resolved recursively, depth first, and every call builds a
// brand-new object graph.
//
// Errors are fail-fast and returned as *ResolutionError, whose Cause is one of
// *UnregisteredAbstractionError, *CircularDependencyError, *ConstructionError,
// *AmbiguousTemplateArgumentError or ErrUnboundTemplate.
//
// Example:
//
//	instance, err := container.Resolve(typeid.Of[Logger]())
//	if err != nil {
//	    return err
//	}
//	logger := instance.(Logger)
func (c *Container) Resolve(requested typeid.ID) (any, error) {
	return c.resolveRoot(requested, nil)
}

// resolveRoot runs a top-level resolve. accept, when set, checks the built
// instance before the call is logged and counted.
func (c *Container) resolveRoot(requested typeid.ID, accept func(instance any) error) (any, error) {
	start := time.Now()
	instance, err := c.resolve(requested, nil, true)
	if err == nil && accept != nil {
		if err = accept(instance); err != nil {
			instance = nil
		}
	}
	elapsed := time.Since(start)

	c.metrics.observeResolve(err, elapsed)
	if err != nil {
		c.logger.Debug("resolution failed",
			zap.Stringer("type", requested),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("resolved",
		zap.Stringer("type", requested),
		zap.String("instance", fmt.Sprintf("%T", instance)),
		zap.Duration("elapsed", elapsed),
	)
	return instance, nil
}

// MustResolve is like Resolve but panics on failure.
func (c *Container) MustResolve(requested typeid.ID) any {
	instance, err := c.Resolve(requested)
	if err != nil {
		panic(err)
	}
	return instance
}

// Resolve resolves the Go type T and asserts the result to T.
// An instance that is not a T fails with *TypeMismatchError and is counted as
// a failed resolution.
//
// Example:
//
//	service, err := ioc.Resolve[*InvoiceService](container)
func Resolve[T any](c *Container) (T, error) {
	var typed T
	id := typeid.Of[T]()

	_, err := c.resolveRoot(id, func(instance any) error {
		v, ok := instance.(T)
		if !ok {
			return newResolutionError([]typeid.ID{id}, &TypeMismatchError{
				Want: id,
				Got:  typeid.FromType(reflect.TypeOf(instance)),
			})
		}
		typed = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure.
func MustResolve[T any](c *Container) T {
	typed, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return typed
}

// Target reports which implementation would be constructed for requested,
// without building anything.
func (c *Container) Target(requested typeid.ID) (typeid.ID, error) {
	target, err := c.target(requested)
	if err != nil {
		return typeid.ID{}, newResolutionError([]typeid.ID{requested}, err)
	}
	return target, nil
}

// resolve walks one node of the dependency graph. path holds the types
// currently being resolved above this node; it is extended by value so
// sibling calls never observe each other's entries. When build is false the
// graph is only checked and no constructor runs.
//
// Failures are wrapped into a *ResolutionError where they happen and passed
// up unchanged by every caller.
func (c *Container) resolve(requested typeid.ID, path []typeid.ID, build bool) (any, error) {
	if requested.IsZero() {
		return nil, newResolutionError(append(path, requested), errors.New("cannot resolve the zero ID"))
	}

	for i, seen := range path {
		if seen == requested {
			cycle := make([]typeid.ID, 0, len(path)-i+1)
			cycle = append(cycle, path[i:]...)
			cycle = append(cycle, requested)
			return nil, newResolutionError(append(path, requested), &CircularDependencyError{Cycle: cycle})
		}
	}

	path = append(path, requested)

	target, err := c.target(requested)
	if err != nil {
		return nil, newResolutionError(path, err)
	}

	ctor, ok, err := c.plan(target)
	if err != nil {
		return nil, newResolutionError(path, &ConstructionError{Type: target, Cause: err})
	}
	if !ok {
		return nil, newResolutionError(path, &UnregisteredAbstractionError{Type: target, BoundFrom: requested})
	}

	args := make([]any, len(ctor.Params))
	for i, param := range ctor.Params {
		arg, err := c.resolve(param, path, build)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	if !build {
		return nil, nil
	}

	instance, err := invoke(ctor, args)
	if err != nil {
		return nil, newResolutionError(path, &ConstructionError{Type: target, Cause: err})
	}
	return instance, nil
}

// target determines the implementation to construct for requested.
func (c *Container) target(requested typeid.ID) (typeid.ID, error) {
	if requested.IsTemplate() {
		return typeid.ID{}, fmt.Errorf("%w: %v", ErrUnboundTemplate, requested)
	}

	reg, found, err := c.registry.TryLookup(requested)
	if err != nil {
		return typeid.ID{}, err
	}
	if found {
		return reg.Implementation, nil
	}

	// Self-binding fallback
	_, ok, err := c.plan(requested)
	if err != nil {
		return typeid.ID{}, &ConstructionError{Type: requested, Cause: err}
	}
	if !ok {
		return typeid.ID{}, &UnregisteredAbstractionError{Type: requested}
	}
	return requested, nil
}

// plan selects the constructor for impl. ok is false when impl cannot be built.
func (c *Container) plan(impl typeid.ID) (Constructor, bool, error) {
	if impl.IsTemplate() {
		return Constructor{}, false, nil
	}
	return c.plans.getOrCompute(impl, func() (Constructor, bool, error) {
		ctors, templateCtors := c.catalog.candidates(impl)
		if len(ctors) > 0 {
			return richest(ctors), true, nil
		}

		if len(templateCtors) > 0 {
			args := impl.Args()
			ctors = make([]Constructor, 0, len(templateCtors))
			for _, fn := range templateCtors {
				ctor, err := evaluateTemplate(fn, args)
				if err != nil {
					return Constructor{}, false, err
				}
				ctors = append(ctors, ctor)
			}
			return richest(ctors), true, nil
		}

		ctor, ok := implicitConstructor(impl.Type())
		return ctor, ok, nil
	})
}

// evaluateTemplate builds the constructor of one instantiation.
func evaluateTemplate(fn TemplateConstructor, args []typeid.ID) (ctor Constructor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("template constructor panicked: %v", r)
		}
	}()

	ctor = fn(args)
	if ctor.Build == nil {
		return Constructor{}, errors.New("template constructor returned no build function")
	}
	for i, p := range ctor.Params {
		if p.IsZero() {
			return Constructor{}, fmt.Errorf("template constructor parameter %d is the zero ID", i)
		}
	}
	return ctor, nil
}

// invoke runs a constructor, turning panics into errors.
func invoke(ctor Constructor, args []any) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()

	instance, err = ctor.Build(args)
	if err != nil {
		return nil, err
	}
	if isNilInstance(instance) {
		return nil, fmt.Errorf("constructor returned a nil instance (%T)", instance)
	}
	return instance, nil
}
