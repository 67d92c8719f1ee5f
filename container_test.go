package ioc

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/toutaio/toutago-ioc/typeid"
)

func TestNew(t *testing.T) {
	container := New()
	require.NotNil(t, container)
	assert.NotNil(t, container.registry)
	assert.NotNil(t, container.logger)
	assert.Nil(t, container.metrics)
}

func TestNew_WithOptions(t *testing.T) {
	container := New(WithDebug(), WithValidation())
	require.NotNil(t, container)
	assert.True(t, container.validateOnBoot)
}

func TestNew_PanicsOnFailingOption(t *testing.T) {
	assert.Panics(t, func() { New(WithLogger(nil)) })
}

func TestResolve_RegisteredType(t *testing.T) {
	container := New()
	require.NoError(t, container.For(typeid.Of[Logger]()).Use(typeid.Of[*SqlServerLogger]()))

	logger, err := container.Resolve(typeid.Of[Logger]())

	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(&SqlServerLogger{}), reflect.TypeOf(logger))
}

func TestResolve_TypeWithoutDefaultConstructor(t *testing.T) {
	container, repos := newInvoiceContainer(t)
	require.NoError(t, container.For(repos.employees()).Use(repos.sqlRepository.Of(typeid.Of[Employee]())))

	instance, err := container.Resolve(repos.employees())

	require.NoError(t, err)
	repository, ok := instance.(*SqlRepository)
	require.True(t, ok, "got %T", instance)
	assert.Equal(t, typeid.Of[Employee](), repository.Entity)
	assert.IsType(t, &SqlServerLogger{}, repository.Logger)

	target, err := container.Target(repos.employees())
	require.NoError(t, err)
	assertSameID(t, repos.sqlRepository.Of(typeid.Of[Employee]()), target)
}

func TestResolve_ConcreteTypeWithTemplateDependency(t *testing.T) {
	container, repos := newInvoiceContainer(t)

	service, err := Resolve[*InvoiceService](container)

	require.NoError(t, err)
	require.NotNil(t, service)
	assert.Equal(t, typeid.Of[Customer](), service.Repository.EntityType())
	assert.IsType(t, &SqlServerLogger{}, service.Logger)
	assert.NotSame(t, service.Logger, service.Repository.(*SqlRepository).Logger)

	target, err := container.Target(repos.customers())
	require.NoError(t, err)
	assertSameID(t, repos.sqlRepository.Of(typeid.Of[Customer]()), target)
}

func TestResolve_OneTemplateServesManyArguments(t *testing.T) {
	container, repos := newInvoiceContainer(t)

	employees, err := container.Resolve(repos.employees())
	require.NoError(t, err)
	customers, err := container.Resolve(repos.customers())
	require.NoError(t, err)

	assert.Equal(t, typeid.Of[Employee](), employees.(Repository).EntityType())
	assert.Equal(t, typeid.Of[Customer](), customers.(Repository).EntityType())
}

func TestResolve_ClosedRegistrationWinsOverTemplate(t *testing.T) {
	container, repos := newInvoiceContainer(t)
	cached := typeid.NewTemplate("CachedRepository", 1)
	require.NoError(t, container.ProvideTemplate(cached, func(args []typeid.ID) Constructor {
		return Constructor{Build: func([]any) (any, error) {
			return &SqlRepository{Entity: cached.Of(args...)}, nil
		}}
	}))
	require.NoError(t, container.For(repos.employees()).Use(cached.Of(typeid.Of[Employee]())))

	employees, err := container.Resolve(repos.employees())
	require.NoError(t, err)
	customers, err := container.Resolve(repos.customers())
	require.NoError(t, err)

	assertSameID(t, cached.Of(typeid.Of[Employee]()), employees.(Repository).EntityType())
	assert.Equal(t, typeid.Of[Customer](), customers.(Repository).EntityType())
}

func TestResolve_SelfBindingFallback(t *testing.T) {
	container := New()

	instance, err := container.Resolve(typeid.Of[*Employee]())
	require.NoError(t, err)
	assert.Equal(t, &Employee{}, instance)

	value, err := Resolve[Customer](container)
	require.NoError(t, err)
	assert.Equal(t, Customer{}, value)

	number, err := Resolve[int](container)
	require.NoError(t, err)
	assert.Equal(t, 0, number)
}

func TestResolve_UnregisteredAbstraction(t *testing.T) {
	container := New()

	_, err := container.Resolve(typeid.Of[Logger]())

	var unregistered *UnregisteredAbstractionError
	require.True(t, errors.As(err, &unregistered), "got %v", err)
	assert.Equal(t, typeid.Of[Logger](), unregistered.Type)

	var resolution *ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, []typeid.ID{typeid.Of[Logger]()}, resolution.Path)
}

func TestResolve_UnregisteredNestedDependencyReportsChain(t *testing.T) {
	container := New()
	require.NoError(t, container.ProvideFunc(NewInvoiceService))
	require.NoError(t, container.For(typeid.Of[Repository]()).Use(typeid.Of[*SqlRepository]()))
	require.NoError(t, container.ProvideFunc(func(l Logger) *SqlRepository {
		return &SqlRepository{Logger: l}
	}))

	_, err := container.Resolve(typeid.Of[*InvoiceService]())

	var resolution *ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Equal(t, []typeid.ID{
		typeid.Of[*InvoiceService](),
		typeid.Of[Repository](),
		typeid.Of[Logger](),
	}, resolution.Path)
	assert.Equal(t, typeid.Of[*InvoiceService](), resolution.Type)
	assert.Contains(t, err.Error(), "*ioc.InvoiceService -> ioc.Repository -> ioc.Logger")
}

func TestResolve_BoundImplementationNotConstructible(t *testing.T) {
	container := New()
	require.NoError(t, container.For(typeid.Of[Logger]()).Use(typeid.Of[Repository]()))

	_, err := container.Resolve(typeid.Of[Logger]())

	var unregistered *UnregisteredAbstractionError
	require.True(t, errors.As(err, &unregistered))
	assert.Equal(t, typeid.Of[Repository](), unregistered.Type)
	assert.Equal(t, typeid.Of[Logger](), unregistered.BoundFrom)
	assert.Contains(t, err.Error(), "cannot be constructed")
}

func TestResolve_CircularDependency(t *testing.T) {
	container := New()
	require.NoError(t, container.ProvideFunc(NewCircularA))
	require.NoError(t, container.ProvideFunc(NewCircularB))

	_, err := container.Resolve(typeid.Of[*CircularA]())

	var circular *CircularDependencyError
	require.True(t, errors.As(err, &circular), "got %v", err)
	a, b := typeid.Of[*CircularA](), typeid.Of[*CircularB]()
	assert.Equal(t, []typeid.ID{a, b, a}, circular.Cycle)
	assert.Contains(t, err.Error(), "*ioc.CircularA -> *ioc.CircularB -> *ioc.CircularA")
}

func TestResolve_CircularDependencyThroughAbstraction(t *testing.T) {
	container := New()
	// Logger -> *SqlRepository, whose constructor needs a Logger.
	require.NoError(t, container.For(typeid.Of[Logger]()).Use(typeid.Of[*SqlRepository]()))
	require.NoError(t, container.ProvideFunc(func(l Logger) *SqlRepository { return &SqlRepository{Logger: l} }))

	_, err := container.Resolve(typeid.Of[Logger]())

	var circular *CircularDependencyError
	require.True(t, errors.As(err, &circular))
	assert.Equal(t, []typeid.ID{typeid.Of[Logger](), typeid.Of[Logger]()}, circular.Cycle)
}

func TestResolve_DiamondIsNotACycle(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))
	require.NoError(t, container.ProvideFunc(func(a, b Logger) *InvoiceService {
		return &InvoiceService{Logger: a, Repository: &SqlRepository{Logger: b}}
	}))

	service, err := Resolve[*InvoiceService](container)

	require.NoError(t, err)
	assert.NotSame(t, service.Logger, service.Repository.(*SqlRepository).Logger)
}

func TestResolve_ConstructionFailure(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))
	require.NoError(t, container.ProvideFunc(NewFailingService))

	instance, err := container.Resolve(typeid.Of[*FailingService]())

	assert.Nil(t, instance)
	assert.ErrorIs(t, err, errDatabaseDown)
	var construction *ConstructionError
	require.True(t, errors.As(err, &construction))
	assert.Equal(t, typeid.Of[*FailingService](), construction.Type)
}

func TestResolve_ConstructorPanicBecomesError(t *testing.T) {
	container := New()
	require.NoError(t, container.Provide(typeid.Of[*Employee](), Constructor{
		Build: func([]any) (any, error) { panic("boom") },
	}))

	_, err := container.Resolve(typeid.Of[*Employee]())

	var construction *ConstructionError
	require.True(t, errors.As(err, &construction))
	assert.Contains(t, err.Error(), "constructor panicked: boom")
}

func TestResolve_NilInstanceIsConstructionFailure(t *testing.T) {
	container := New()
	require.NoError(t, container.ProvideFunc(func() *Employee { return nil }))

	_, err := container.Resolve(typeid.Of[*Employee]())

	var construction *ConstructionError
	require.True(t, errors.As(err, &construction))
}

func TestResolve_TypedNilFromBuildIsConstructionFailure(t *testing.T) {
	container := New()
	require.NoError(t, container.Provide(typeid.Of[*Employee](), Constructor{
		Build: func([]any) (any, error) {
			var employee *Employee
			return employee, nil
		},
	}))

	instance, err := container.Resolve(typeid.Of[*Employee]())

	assert.Nil(t, instance)
	var construction *ConstructionError
	require.True(t, errors.As(err, &construction), "got %v", err)
	assert.Contains(t, err.Error(), "nil instance")
}

func TestResolve_TypedNilDependencyIsNeverInjected(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))
	require.NoError(t, container.Provide(typeid.Of[*SqlServerLogger](), Constructor{
		Build: func([]any) (any, error) { return (*SqlServerLogger)(nil), nil },
	}))
	built := false
	require.NoError(t, container.ProvideFunc(func(Logger) *InvoiceService {
		built = true
		return &InvoiceService{}
	}))

	_, err := container.Resolve(typeid.Of[*InvoiceService]())

	var construction *ConstructionError
	require.True(t, errors.As(err, &construction))
	assertSameID(t, typeid.Of[*SqlServerLogger](), construction.Type)
	assert.False(t, built)
}

type notifyFunc func(string)

func TestResolve_NilResultOfAnyNillableKind(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		id   typeid.ID
	}{
		{"func", func() notifyFunc { return nil }, typeid.Of[notifyFunc]()},
		{"chan", func() chan int { return nil }, typeid.Of[chan int]()},
		{"map", func() map[string]int { return nil }, typeid.Of[map[string]int]()},
		{"slice", func() []string { return nil }, typeid.Of[[]string]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container := New()
			require.NoError(t, container.ProvideFunc(tt.fn))

			_, err := container.Resolve(tt.id)

			var construction *ConstructionError
			require.True(t, errors.As(err, &construction), "got %v", err)
			assert.Contains(t, err.Error(), "returned a nil")
		})
	}
}

func TestIsNilInstance(t *testing.T) {
	var (
		ptr *Employee
		fn  notifyFunc
		ch  chan int
	)
	assert.True(t, isNilInstance(nil))
	assert.True(t, isNilInstance(ptr))
	assert.True(t, isNilInstance(fn))
	assert.True(t, isNilInstance(ch))
	assert.False(t, isNilInstance(&Employee{}))
	assert.False(t, isNilInstance(Employee{}))
	assert.False(t, isNilInstance(0))
	assert.False(t, isNilInstance([]string{}))
}

func TestResolve_ImplementationNotAssignableToParameter(t *testing.T) {
	container := New()
	require.NoError(t, container.For(typeid.Of[Logger]()).Use(typeid.Of[*Employee]()))
	require.NoError(t, container.ProvideFunc(NewInvoiceService))
	require.NoError(t, container.For(typeid.Of[Repository]()).Use(typeid.Of[*SqlRepository]()))

	_, err := container.Resolve(typeid.Of[*InvoiceService]())

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, typeid.Of[Logger](), mismatch.Want)
	assert.Equal(t, typeid.Of[*Employee](), mismatch.Got)
}

func TestResolve_AmbiguousTemplateArgument(t *testing.T) {
	container := New()
	repository := typeid.NewTemplate("Repository", 1)
	keyed := typeid.NewTemplate("KeyedRepository", 2)
	require.NoError(t, container.For(repository.ID()).Use(keyed.ID()))

	_, err := container.Resolve(repository.Of(typeid.Of[Employee]()))

	var ambiguous *AmbiguousTemplateArgumentError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, 2, ambiguous.Want)
}

func TestResolve_UnboundTemplate(t *testing.T) {
	container, repos := newInvoiceContainer(t)

	_, err := container.Resolve(repos.repository.ID())

	assert.ErrorIs(t, err, ErrUnboundTemplate)
}

func TestResolve_ZeroID(t *testing.T) {
	container := New()

	_, err := container.Resolve(typeid.ID{})

	var resolution *ResolutionError
	require.True(t, errors.As(err, &resolution))
	assert.Contains(t, err.Error(), "zero ID")
}

func TestResolve_ReRegistrationLastWriteWins(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))
	require.NoError(t, Bind[Logger, *ConsoleLogger](container))

	logger, err := Resolve[Logger](container)

	require.NoError(t, err)
	assert.IsType(t, &ConsoleLogger{}, logger)
}

func TestResolve_FreshInstancesEveryCall(t *testing.T) {
	container, _ := newInvoiceContainer(t)

	first := MustResolve[*InvoiceService](container)
	second := MustResolve[*InvoiceService](container)

	assert.NotSame(t, first, second)
	assert.NotSame(t, first.Logger, second.Logger)
	assert.NotSame(t, first.Repository, second.Repository)
}

func TestResolve_RichestConstructorWins(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))

	var used string
	require.NoError(t, container.Provide(typeid.Of[*InvoiceService](), Constructor{
		Build: func([]any) (any, error) { used = "none"; return &InvoiceService{}, nil },
	}))
	require.NoError(t, container.Provide(typeid.Of[*InvoiceService](), Constructor{
		Params: []typeid.ID{typeid.Of[Logger]()},
		Build:  func([]any) (any, error) { used = "first"; return &InvoiceService{}, nil },
	}))
	require.NoError(t, container.Provide(typeid.Of[*InvoiceService](), Constructor{
		Params: []typeid.ID{typeid.Of[*Employee]()},
		Build:  func([]any) (any, error) { used = "second"; return &InvoiceService{}, nil },
	}))

	_, err := container.Resolve(typeid.Of[*InvoiceService]())
	require.NoError(t, err)
	assert.Equal(t, "first", used)

	require.NoError(t, container.Provide(typeid.Of[*InvoiceService](), Constructor{
		Params: []typeid.ID{typeid.Of[Logger](), typeid.Of[*Employee]()},
		Build:  func([]any) (any, error) { used = "richest"; return &InvoiceService{}, nil },
	}))

	_, err = container.Resolve(typeid.Of[*InvoiceService]())
	require.NoError(t, err)
	assert.Equal(t, "richest", used)
}

func TestResolve_ArgumentsInDeclaredOrder(t *testing.T) {
	container := New()
	require.NoError(t, container.Provide(typeid.Of[string](), Constructor{
		Build: func([]any) (any, error) { return "text", nil },
	}))
	require.NoError(t, container.Provide(typeid.Of[int](), Constructor{
		Build: func([]any) (any, error) { return 42, nil },
	}))

	var got []any
	require.NoError(t, container.Provide(typeid.Of[*Employee](), Constructor{
		Params: []typeid.ID{typeid.Of[int](), typeid.Of[string](), typeid.Of[int]()},
		Build: func(args []any) (any, error) {
			got = args
			return &Employee{}, nil
		},
	}))

	_, err := container.Resolve(typeid.Of[*Employee]())
	require.NoError(t, err)
	assert.Equal(t, []any{42, "text", 42}, got)
}

func TestResolve_TypeMismatchFromGenericHelper(t *testing.T) {
	container := New()
	require.NoError(t, container.For(typeid.Of[Logger]()).Use(typeid.Of[*Employee]()))

	_, err := Resolve[Logger](container)

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, typeid.Of[*Employee](), mismatch.Got)
}

func TestMustResolve_Panics(t *testing.T) {
	container := New()

	assert.Panics(t, func() { container.MustResolve(typeid.Of[Logger]()) })
	assert.Panics(t, func() { MustResolve[Logger](container) })
}

func TestResolve_DoesNotMutateRegistry(t *testing.T) {
	container, _ := newInvoiceContainer(t)
	before := container.Registrations()

	_, err := Resolve[*InvoiceService](container)
	require.NoError(t, err)

	assert.Equal(t, before, container.Registrations())
}

func TestUse_InvalidBinding(t *testing.T) {
	container := New()
	repository := typeid.NewTemplate("Repository", 1)

	err := container.For(repository.ID()).Use(typeid.Of[*SqlRepository]())

	var invalid *InvalidBindingError
	require.True(t, errors.As(err, &invalid))
	assert.Empty(t, container.Registrations())
}

func TestUnbind(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))

	assert.True(t, container.Unbind(typeid.Of[Logger]()))
	assert.False(t, container.Unbind(typeid.Of[Logger]()))

	_, err := container.Resolve(typeid.Of[Logger]())
	var unregistered *UnregisteredAbstractionError
	assert.True(t, errors.As(err, &unregistered))
}

func TestTarget(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))

	target, err := container.Target(typeid.Of[Logger]())
	require.NoError(t, err)
	assert.Equal(t, typeid.Of[*SqlServerLogger](), target)

	target, err = container.Target(typeid.Of[*Employee]())
	require.NoError(t, err)
	assert.Equal(t, typeid.Of[*Employee](), target)

	_, err = container.Target(typeid.Of[Repository]())
	var unregistered *UnregisteredAbstractionError
	assert.True(t, errors.As(err, &unregistered))
}

func TestResolve_LogsAtDebugLevel(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	container := New(WithLogger(zap.New(core)))
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))

	_, err := container.Resolve(typeid.Of[Logger]())
	require.NoError(t, err)
	_, err = container.Resolve(typeid.Of[Repository]())
	require.Error(t, err)

	assert.Equal(t, 1, logs.FilterMessage("binding registered").Len())
	assert.Equal(t, 1, logs.FilterMessage("resolved").Len())
	failed := logs.FilterMessage("resolution failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "ioc.Repository", failed[0].ContextMap()["type"])
}

func TestResolve_Concurrent(t *testing.T) {
	container, repos := newInvoiceContainer(t)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := Resolve[*InvoiceService](container)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := container.Resolve(repos.employees())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestResolve_ConcurrentWithRegistration(t *testing.T) {
	container := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](container))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = Bind[Logger, *ConsoleLogger](container)
		}()
		go func() {
			defer wg.Done()
			logger, err := Resolve[Logger](container)
			assert.NoError(t, err)
			assert.NotNil(t, logger)
		}()
	}
	wg.Wait()
}
