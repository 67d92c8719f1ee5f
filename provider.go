package ioc

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// ServiceProvider groups related registrations.
//
// Example:
//
//	type LoggingProvider struct{}
//
//	func (p *LoggingProvider) Register(c *ioc.Container) error {
//	    return ioc.Bind[Logger, *SqlServerLogger](c)
//	}
type ServiceProvider interface {
	Register(container *Container) error
}

// BootableProvider is an optional interface for providers that need a boot phase.
// Boot is called after all providers have been registered, so it may resolve
// anything the other providers registered.
//
// Example:
//
//	func (p *DatabaseProvider) Boot(c *ioc.Container) error {
//	    _, err := ioc.Resolve[Database](c)
//	    return err
//	}
type BootableProvider interface {
	ServiceProvider
	Boot(container *Container) error
}

// DeferredProvider is an optional interface for providers that should be
// registered conditionally.
type DeferredProvider interface {
	ServiceProvider
	ShouldRegister(container *Container) bool
}

// providerEntry tracks a registered provider.
type providerEntry struct {
	provider ServiceProvider
	booted   bool // guarded by Container.bootMu
}

// RegisterProvider registers a service provider with the container.
// The provider's Register method is called immediately. Registering a second
// provider of the same type is a no-op.
//
// Example:
//
//	container.RegisterProvider(&LoggingProvider{})
//	container.RegisterProvider(&RepositoryProvider{})
//	container.BootProviders()
func (c *Container) RegisterProvider(provider ServiceProvider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	if deferred, ok := provider.(DeferredProvider); ok && !deferred.ShouldRegister(c) {
		c.logger.Debug("provider skipped", zap.String("provider", fmt.Sprintf("%T", provider)))
		return nil
	}

	if c.hasProviderOfType(reflect.TypeOf(provider)) {
		return nil
	}

	// Register runs unlocked so providers can register other providers.
	if err := provider.Register(c); err != nil {
		return fmt.Errorf("provider %T registration failed: %w", provider, err)
	}

	c.providersMu.Lock()
	c.providers = append(c.providers, &providerEntry{provider: provider})
	c.providersMu.Unlock()

	c.logger.Debug("provider registered", zap.String("provider", fmt.Sprintf("%T", provider)))
	return nil
}

func (c *Container) hasProviderOfType(providerType reflect.Type) bool {
	c.providersMu.Lock()
	defer c.providersMu.Unlock()

	for _, entry := range c.providers {
		if reflect.TypeOf(entry.provider) == providerType {
			return true
		}
	}
	return false
}

// BootProviders calls Boot on every registered BootableProvider that has not
// been booted yet. When validation is enabled the container is validated
// afterwards.
//
// Concurrent calls are serialized, so each provider boots exactly once. Boot
// must not call BootProviders.
func (c *Container) BootProviders() error {
	c.bootMu.Lock()
	defer c.bootMu.Unlock()

	c.providersMu.Lock()
	entries := make([]*providerEntry, len(c.providers))
	copy(entries, c.providers)
	c.providersMu.Unlock()

	for _, entry := range entries {
		if entry.booted {
			continue
		}

		if bootable, ok := entry.provider.(BootableProvider); ok {
			if err := bootable.Boot(c); err != nil {
				return fmt.Errorf("provider %T boot failed: %w", entry.provider, err)
			}
		}
		entry.booted = true
	}

	if c.validateOnBoot {
		return c.Validate()
	}
	return nil
}

// Providers returns the registered providers in registration order.
func (c *Container) Providers() []ServiceProvider {
	c.providersMu.Lock()
	defer c.providersMu.Unlock()

	providers := make([]ServiceProvider, len(c.providers))
	for i, entry := range c.providers {
		providers[i] = entry.provider
	}
	return providers
}
