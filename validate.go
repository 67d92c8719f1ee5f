package ioc

import (
	"go.uber.org/zap"

	"github.com/toutaio/toutago-ioc/registry"
	"github.com/toutaio/toutago-ioc/typeid"
)

// Validate checks every registration without constructing anything.
//
// Closed registrations are walked exactly like Resolve would walk them, so
// missing bindings and dependency cycles surface here. Template registrations
// are checked for matching arity and a provided implementation constructor.
// Registration cycles (A bound to B, B bound to A) are reported as
// *CircularDependencyError.
//
// All problems are collected into a single *ValidationError.
func (c *Container) Validate() error {
	var errs []error

	regs := c.registry.All()
	for _, reg := range regs {
		if err := c.validateRegistration(reg); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, registrationCycles(regs)...)

	if len(errs) > 0 {
		c.logger.Debug("validation failed", zap.Int("errors", len(errs)))
		return &ValidationError{Errors: errs}
	}
	c.logger.Debug("validation passed", zap.Int("registrations", len(regs)))
	return nil
}

func (c *Container) validateRegistration(reg registry.Registration) error {
	if !reg.Template {
		_, err := c.resolve(reg.Abstraction, nil, false)
		return err
	}

	path := []typeid.ID{reg.Abstraction}
	abstraction := reg.Abstraction.Template()
	implementation := reg.Implementation.Template()
	if abstraction.Arity() != implementation.Arity() {
		return newResolutionError(path, &AmbiguousTemplateArgumentError{
			Requested:      reg.Abstraction,
			Implementation: reg.Implementation,
			Got:            abstraction.Arity(),
			Want:           implementation.Arity(),
		})
	}

	c.catalog.mu.RLock()
	provided := len(c.catalog.templates[implementation]) > 0
	c.catalog.mu.RUnlock()
	if !provided {
		return newResolutionError(path, &UnregisteredAbstractionError{
			Type:      reg.Implementation,
			BoundFrom: reg.Abstraction,
		})
	}
	return nil
}

// registrationCycles follows implementation -> registration links and reports
// each cycle once, starting from its alphabetically first member.
func registrationCycles(regs []registry.Registration) []error {
	next := make(map[typeid.ID]typeid.ID, len(regs))
	for _, reg := range regs {
		if reg.Abstraction != reg.Implementation {
			next[reg.Abstraction] = reg.Implementation
		}
	}

	var errs []error
	reported := make(map[typeid.ID]bool)
	for _, reg := range regs {
		start := reg.Abstraction
		if reported[start] {
			continue
		}

		chain := []typeid.ID{start}
		seen := map[typeid.ID]bool{start: true}
		current := start
		for {
			to, ok := next[current]
			if !ok {
				break
			}
			chain = append(chain, to)
			if to == start {
				for _, id := range chain {
					reported[id] = true
				}
				errs = append(errs, &CircularDependencyError{Cycle: chain})
				break
			}
			if seen[to] {
				break
			}
			seen[to] = true
			current = to
		}
	}
	return errs
}
