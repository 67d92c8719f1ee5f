// Package ioc provides a small dependency injection container for Go.
//
// The container maps abstractions to implementations and builds complete
// object graphs on demand, resolving constructor dependencies recursively.
// Every resolve builds fresh instances; there are no singletons or scopes.
//
// # Quick Start
//
// Bind an interface to an implementation and resolve it:
//
//	container := ioc.New()
//	ioc.Bind[Logger, *SqlServerLogger](container)
//	logger, err := ioc.Resolve[Logger](container)
//
// The explicit form works with any type identity:
//
//	container.For(typeid.Of[Logger]()).Use(typeid.Of[*SqlServerLogger]())
//	instance, err := container.Resolve(typeid.Of[Logger]())
//
// # Constructors
//
// Go has no runtime constructor discovery, so constructors are declared up
// front. Go functions are inspected by reflection:
//
//	container.ProvideFunc(NewSqlRepository) // func(Logger) *SqlRepository
//
// When a type has several constructors, the one with the most parameters is
// used and the first declared wins ties. Types without a constructor are
// built from their zero value (pointers are allocated), which lets plain
// structs resolve without any registration.
//
// # Templates
//
// Open generic registrations use explicit templates from package typeid:
//
//	repository := typeid.NewTemplate("Repository", 1)
//	sqlRepository := typeid.NewTemplate("SqlRepository", 1)
//
//	container.For(repository.ID()).Use(sqlRepository.ID())
//	container.ProvideTemplate(sqlRepository, func(args []typeid.ID) ioc.Constructor {
//	    return ioc.Constructor{
//	        Params: []typeid.ID{typeid.Of[Logger]()},
//	        Build: func(deps []any) (any, error) {
//	            return &SqlRepository{Entity: args[0], Logger: deps[0].(Logger)}, nil
//	        },
//	    }
//	})
//
//	// One registration serves every entity type.
//	employees, _ := container.Resolve(repository.Of(typeid.Of[Employee]()))
//	customers, _ := container.Resolve(repository.Of(typeid.Of[Customer]()))
//
// A closed registration for a specific instantiation takes precedence over the
// template registration.
//
// # Error Handling
//
// Resolve returns a *ResolutionError carrying the chain of types being
// resolved. Use errors.As to inspect the cause:
//
//	var circular *ioc.CircularDependencyError
//	if errors.As(err, &circular) {
//	    log.Printf("cycle: %v", circular.Cycle)
//	}
//
// Validate checks every registration up front without constructing anything.
//
// # Thread Safety
//
// Registration and resolution may be called concurrently. Resolution never
// mutates registrations.
package ioc
