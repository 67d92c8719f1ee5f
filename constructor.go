package ioc

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/toutaio/toutago-ioc/typeid"
)

// BuildFunc creates an instance from its resolved dependencies.
// args holds one value per Constructor.Params entry, in the same order.
type BuildFunc func(args []any) (any, error)

// Constructor describes one way to build an implementation: the dependencies
// it needs and the function that assembles them.
//
// Example:
//
//	container.Provide(typeid.Of[*InvoiceService](), ioc.Constructor{
//	    Params: []typeid.ID{customers, typeid.Of[Logger]()},
//	    Build: func(args []any) (any, error) {
//	        return NewInvoiceService(args[0].(Repository), args[1].(Logger)), nil
//	    },
//	})
type Constructor struct {
	Params []typeid.ID
	Build  BuildFunc
}

// TemplateConstructor returns the constructor of one instantiation of an
// implementation template. args are the instantiation's type arguments.
//
// Example:
//
//	container.ProvideTemplate(sqlRepository, func(args []typeid.ID) ioc.Constructor {
//	    return ioc.Constructor{
//	        Params: []typeid.ID{typeid.Of[Logger]()},
//	        Build: func(deps []any) (any, error) {
//	            return &SqlRepository{Entity: args[0], Logger: deps[0].(Logger)}, nil
//	        },
//	    }
//	})
type TemplateConstructor func(args []typeid.ID) Constructor

// catalog stores provided constructors in declaration order.
type catalog struct {
	mu        sync.RWMutex
	closed    map[typeid.ID][]Constructor
	templates map[*typeid.Template][]TemplateConstructor
}

func newCatalog() *catalog {
	return &catalog{
		closed:    make(map[typeid.ID][]Constructor),
		templates: make(map[*typeid.Template][]TemplateConstructor),
	}
}

func (c *catalog) addClosed(impl typeid.ID, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed[impl] = append(c.closed[impl], ctor)
}

func (c *catalog) addTemplate(tmpl *typeid.Template, fn TemplateConstructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[tmpl] = append(c.templates[tmpl], fn)
}

// candidates returns the constructors declared for impl. Constructors provided
// for an exact instantiation shadow those of its template.
func (c *catalog) candidates(impl typeid.ID) ([]Constructor, []TemplateConstructor) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ctors := c.closed[impl]; len(ctors) > 0 {
		return append([]Constructor(nil), ctors...), nil
	}
	if impl.IsInstantiation() {
		return nil, append([]TemplateConstructor(nil), c.templates[impl.Template()]...)
	}
	return nil, nil
}

// Provide declares a constructor for a closed implementation type.
// Several constructors may be provided for the same type; resolution uses the
// one with the most parameters, the first declared winning ties.
func (c *Container) Provide(implementation typeid.ID, ctor Constructor) error {
	if implementation.IsZero() {
		return &InvalidBindingError{Reason: "implementation cannot be the zero ID"}
	}
	if implementation.IsTemplate() {
		return &InvalidBindingError{
			Reason: fmt.Sprintf("%v is an unbound template, use ProvideTemplate", implementation),
		}
	}
	if ctor.Build == nil {
		return &InvalidBindingError{Reason: fmt.Sprintf("constructor for %v has no build function", implementation)}
	}
	for i, p := range ctor.Params {
		if p.IsZero() {
			return &InvalidBindingError{Reason: fmt.Sprintf("parameter %d of constructor for %v is the zero ID", i, implementation)}
		}
	}

	ctor.Params = append([]typeid.ID(nil), ctor.Params...)
	c.catalog.addClosed(implementation, ctor)
	c.plans.invalidate()

	c.logger.Debug("constructor provided",
		zap.Stringer("implementation", implementation),
		zap.Int("params", len(ctor.Params)),
	)
	return nil
}

// ProvideTemplate declares a constructor for every instantiation of an
// implementation template.
func (c *Container) ProvideTemplate(tmpl *typeid.Template, fn TemplateConstructor) error {
	if tmpl == nil {
		return &InvalidBindingError{Reason: "template cannot be nil"}
	}
	if fn == nil {
		return &InvalidBindingError{Reason: fmt.Sprintf("template constructor for %v cannot be nil", tmpl)}
	}

	c.catalog.addTemplate(tmpl, fn)
	c.plans.invalidate()

	c.logger.Debug("template constructor provided", zap.Stringer("template", tmpl))
	return nil
}

// ProvideFunc declares a constructor from a Go function. The function's
// parameter types become its dependencies and its first result type is the
// implementation it builds.
//
// Supported signatures:
//   - func() T
//   - func() (T, error)
//   - func(Dep1, Dep2, ...) T
//   - func(Dep1, Dep2, ...) (T, error)
//
// T must not be an interface type.
//
// Example:
//
//	container.ProvideFunc(NewSqlServerLogger)
//	// Where: func NewSqlServerLogger() *SqlServerLogger
func (c *Container) ProvideFunc(constructor any) error {
	info, err := parseConstructor(constructor)
	if err != nil {
		return &InvalidBindingError{Reason: fmt.Sprintf("invalid constructor: %v", err), Cause: err}
	}
	return c.Provide(typeid.FromType(info.returnType), info.constructor())
}

// constructorInfo holds metadata about a constructor function.
type constructorInfo struct {
	fn           reflect.Value
	paramTypes   []reflect.Type
	returnType   reflect.Type
	returnsError bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// parseConstructor analyzes a constructor function and extracts metadata.
func parseConstructor(constructor any) (*constructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", fnType.Kind())
	}
	if fnValue.IsNil() {
		return nil, fmt.Errorf("constructor cannot be a nil function")
	}
	if fnType.IsVariadic() {
		return nil, fmt.Errorf("constructor cannot be variadic")
	}

	numOut := fnType.NumOut()
	if numOut == 0 || numOut > 2 {
		return nil, fmt.Errorf("constructor must return (T) or (T, error), got %d return values", numOut)
	}

	returnType := fnType.Out(0)
	if returnType.Kind() == reflect.Interface {
		return nil, fmt.Errorf("constructor must return a concrete type, got interface %v", returnType)
	}

	returnsError := false
	if numOut == 2 {
		if fnType.Out(1) != errorType {
			return nil, fmt.Errorf("constructor's second return value must be error, got %v", fnType.Out(1))
		}
		returnsError = true
	}

	paramTypes := make([]reflect.Type, fnType.NumIn())
	for i := range paramTypes {
		paramTypes[i] = fnType.In(i)
	}

	return &constructorInfo{
		fn:           fnValue,
		paramTypes:   paramTypes,
		returnType:   returnType,
		returnsError: returnsError,
	}, nil
}

// constructor adapts the function into a Constructor.
func (info *constructorInfo) constructor() Constructor {
	params := make([]typeid.ID, len(info.paramTypes))
	for i, t := range info.paramTypes {
		params[i] = typeid.FromType(t)
	}

	return Constructor{
		Params: params,
		Build:  info.call,
	}
}

// call invokes the function with resolved dependencies.
func (info *constructorInfo) call(args []any) (any, error) {
	in := make([]reflect.Value, len(info.paramTypes))
	for i, paramType := range info.paramTypes {
		if args[i] == nil {
			in[i] = reflect.Zero(paramType)
			continue
		}
		value := reflect.ValueOf(args[i])
		if !value.Type().AssignableTo(paramType) {
			return nil, fmt.Errorf("parameter %d: %w", i, &TypeMismatchError{
				Want: typeid.FromType(paramType),
				Got:  typeid.FromType(value.Type()),
			})
		}
		in[i] = value
	}

	results := info.fn.Call(in)

	if info.returnsError {
		if errValue := results[1]; !errValue.IsNil() {
			return nil, errValue.Interface().(error)
		}
	}

	instance := results[0].Interface()
	if isNilInstance(instance) {
		return nil, fmt.Errorf("constructor returned a nil %v", info.returnType)
	}
	return instance, nil
}

// isNilInstance reports whether v is nil or a typed nil of a nillable kind.
func isNilInstance(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan,
		reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// implicitConstructor returns the parameterless plan used for Go types that
// have no provided constructor: pointers get a freshly allocated zero value,
// other value types their zero value.
func implicitConstructor(t reflect.Type) (Constructor, bool) {
	if t == nil {
		return Constructor{}, false
	}
	switch t.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return Constructor{}, false
	case reflect.Ptr:
		elem := t.Elem()
		return Constructor{Build: func([]any) (any, error) {
			return reflect.New(elem).Interface(), nil
		}}, true
	default:
		return Constructor{Build: func([]any) (any, error) {
			return reflect.New(t).Elem().Interface(), nil
		}}, true
	}
}

// richest picks the constructor with the most parameters; the first declared wins ties.
func richest(ctors []Constructor) Constructor {
	best := ctors[0]
	for _, ctor := range ctors[1:] {
		if len(ctor.Params) > len(best.Params) {
			best = ctor
		}
	}
	return best
}
