package ioc

import (
	"errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toutaio/toutago-ioc/typeid"
)

// Test interfaces and implementations
type Logger interface {
	Log(msg string)
}

type SqlServerLogger struct {
	messages []string
}

func (l *SqlServerLogger) Log(msg string) {
	l.messages = append(l.messages, msg)
}

type ConsoleLogger struct{}

func (l *ConsoleLogger) Log(string) {}

type Employee struct {
	Name string
}

type Customer struct {
	Name string
}

// Repository is the non-generic contract every SqlRepository instantiation satisfies.
type Repository interface {
	EntityType() typeid.ID
}

type SqlRepository struct {
	Entity typeid.ID
	Logger Logger
}

func (r *SqlRepository) EntityType() typeid.ID {
	return r.Entity
}

type InvoiceService struct {
	Repository Repository
	Logger     Logger
}

func NewInvoiceService(repository Repository, logger Logger) *InvoiceService {
	return &InvoiceService{Repository: repository, Logger: logger}
}

// Circular: A -> B -> A
type CircularA struct{ B *CircularB }

func NewCircularA(b *CircularB) *CircularA { return &CircularA{B: b} }

type CircularB struct{ A *CircularA }

func NewCircularB(a *CircularA) *CircularB { return &CircularB{A: a} }

type FailingService struct{}

var errDatabaseDown = errors.New("database down")

func NewFailingService(Logger) (*FailingService, error) {
	return nil, errDatabaseDown
}

// helperT is satisfied by both *testing.T and *rapid.T.
type helperT interface {
	require.TestingT
	Helper()
}

// repositories holds the template identities used by the invoice scenario.
type repositories struct {
	repository    *typeid.Template
	sqlRepository *typeid.Template
}

// customers returns Repository<Customer>.
func (r repositories) customers() typeid.ID {
	return r.repository.Of(typeid.Of[Customer]())
}

// employees returns Repository<Employee>.
func (r repositories) employees() typeid.ID {
	return r.repository.Of(typeid.Of[Employee]())
}

// sqlRepositoryConstructor builds SqlRepository<T> from a Logger.
func sqlRepositoryConstructor(args []typeid.ID) Constructor {
	return Constructor{
		Params: []typeid.ID{typeid.Of[Logger]()},
		Build: func(deps []any) (any, error) {
			return &SqlRepository{Entity: args[0], Logger: deps[0].(Logger)}, nil
		},
	}
}

// newInvoiceContainer wires Logger -> SqlServerLogger, Repository<_> -> SqlRepository<_>
// and an InvoiceService that needs Repository<Customer> and Logger.
func newInvoiceContainer(t helperT) (*Container, repositories) {
	t.Helper()

	repos := repositories{
		repository:    typeid.NewTemplate("Repository", 1),
		sqlRepository: typeid.NewTemplate("SqlRepository", 1),
	}

	c := New()
	require.NoError(t, Bind[Logger, *SqlServerLogger](c))
	require.NoError(t, c.For(repos.repository.ID()).Use(repos.sqlRepository.ID()))
	require.NoError(t, c.ProvideTemplate(repos.sqlRepository, sqlRepositoryConstructor))
	require.NoError(t, c.Provide(typeid.Of[*InvoiceService](), Constructor{
		Params: []typeid.ID{repos.customers(), typeid.Of[Logger]()},
		Build: func(args []any) (any, error) {
			return NewInvoiceService(args[0].(Repository), args[1].(Logger)), nil
		},
	}))
	return c, repos
}

// assertSameID compares identities with ==; assert.Equal follows the template
// pointers and cannot tell two templates with the same name apart.
func assertSameID(t helperT, want, got typeid.ID) {
	t.Helper()
	assert.True(t, want == got, "got %v, want %v", got, want)
}
