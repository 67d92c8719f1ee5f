package ioc

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/toutaio/toutago-ioc/registry"
	"github.com/toutaio/toutago-ioc/typeid"
)

// Container is the dependency injection container.
// It maps abstractions to implementations and builds fresh object graphs on
// every resolve. Registration and resolution are safe for concurrent use.
type Container struct {
	registry *registry.Registry
	catalog  *catalog
	plans    *planCache

	providersMu sync.Mutex
	providers   []*providerEntry

	// bootMu serializes BootProviders and guards providerEntry.booted.
	bootMu sync.Mutex

	logger *zap.Logger

	metrics          *metrics
	metricsNamespace string
	metricsRegistry  prometheus.Registerer

	validateOnBoot bool
}

// New creates a new Container.
// Options can be provided to configure the container behavior.
//
// Example:
//
//	container := ioc.New()
//	// or with options:
//	container := ioc.New(ioc.WithDebug())
func New(options ...Option) *Container {
	c := &Container{
		registry:         registry.New(),
		catalog:          newCatalog(),
		plans:            newPlanCache(),
		providers:        make([]*providerEntry, 0),
		logger:           zap.NewNop(),
		metricsNamespace: defaultMetricsNamespace,
	}

	// Apply options
	for _, opt := range options {
		if err := opt(c); err != nil {
			panic(fmt.Sprintf("failed to apply option: %v", err))
		}
	}

	if c.metricsRegistry != nil {
		m, err := newMetrics(c.metricsNamespace, c.metricsRegistry)
		if err != nil {
			panic(fmt.Sprintf("failed to register metrics: %v", err))
		}
		c.metrics = m
	}

	return c
}

// Binder is the second half of a For(...).Use(...) registration.
type Binder struct {
	container   *Container
	abstraction typeid.ID
}

// For starts a registration for an abstraction.
//
// Example:
//
//	container.For(typeid.Of[Logger]()).Use(typeid.Of[*SqlServerLogger]())
//	container.For(repository.ID()).Use(sqlRepository.ID())
func (c *Container) For(abstraction typeid.ID) *Binder {
	return &Binder{container: c, abstraction: abstraction}
}

// Use binds the abstraction to implementation, replacing any earlier binding.
// Closed abstractions take closed implementations and unbound templates take
// unbound templates. Whether implementation actually satisfies the
// abstraction is only discovered when it is constructed.
func (b *Binder) Use(implementation typeid.ID) error {
	c := b.container

	reg, err := c.registry.Register(b.abstraction, implementation)
	if err != nil {
		return &InvalidBindingError{Reason: err.Error(), Cause: err}
	}

	c.metrics.setRegistrations(c.registry.Len())
	c.logger.Debug("binding registered",
		zap.Stringer("abstraction", reg.Abstraction),
		zap.Stringer("implementation", reg.Implementation),
		zap.Bool("template", reg.Template),
	)
	return nil
}

// Bind registers the Go type I as the implementation of the Go type A.
//
// Example:
//
//	ioc.Bind[Logger, *SqlServerLogger](container)
func Bind[A, I any](c *Container) error {
	return c.For(typeid.Of[A]()).Use(typeid.Of[I]())
}

// Registrations returns every registration ordered by abstraction name.
// This is useful for debugging and introspection.
func (c *Container) Registrations() []registry.Registration {
	return c.registry.All()
}

// Unbind removes the registration of an abstraction.
// It reports whether a registration existed.
func (c *Container) Unbind(abstraction typeid.ID) bool {
	removed := c.registry.Remove(abstraction)
	if removed {
		c.metrics.setRegistrations(c.registry.Len())
		c.logger.Debug("binding removed", zap.Stringer("abstraction", abstraction))
	}
	return removed
}
