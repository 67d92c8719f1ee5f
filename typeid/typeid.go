// Package typeid provides comparable type identities for the container.
//
// An ID names either a closed type (a Go type, or a template instantiated
// with concrete arguments) or an unbound template such as "Repository<_>".
// IDs are immutable and can be used as map keys.
package typeid

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Kind distinguishes closed identities from unbound templates.
type Kind uint8

const (
	// KindClosed is a fully concrete identity.
	KindClosed Kind = iota
	// KindTemplate is an unbound generic template.
	KindTemplate
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindClosed:
		return "closed"
	case KindTemplate:
		return "template"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ID is an opaque, comparable type identity.
// The zero ID names no type.
type ID struct {
	rt   reflect.Type
	inst *instantiation
	tmpl *Template
}

// instantiation is the interned payload of a closed template instantiation.
type instantiation struct {
	tmpl *Template
	args []ID
}

// Of returns the identity of the Go type T.
//
// Example:
//
//	logger := typeid.Of[Logger]()
//	sql := typeid.Of[*SqlServerLogger]()
func Of[T any]() ID {
	return FromType(reflect.TypeOf((*T)(nil)).Elem())
}

// FromType returns the identity of a reflect.Type. A nil type yields the zero ID.
func FromType(t reflect.Type) ID {
	return ID{rt: t}
}

// IsZero reports whether id names no type.
func (id ID) IsZero() bool {
	return id.rt == nil && id.inst == nil && id.tmpl == nil
}

// Kind reports whether id is closed or an unbound template.
func (id ID) Kind() Kind {
	if id.tmpl != nil {
		return KindTemplate
	}
	return KindClosed
}

// IsTemplate reports whether id is an unbound template.
func (id ID) IsTemplate() bool {
	return id.tmpl != nil
}

// IsInstantiation reports whether id is a template instantiated with concrete arguments.
func (id ID) IsInstantiation() bool {
	return id.inst != nil
}

// Type returns the Go type behind id, or nil for template identities.
func (id ID) Type() reflect.Type {
	return id.rt
}

// Template returns the template of an unbound template or an instantiation.
// It returns nil for Go-backed identities.
func (id ID) Template() *Template {
	switch {
	case id.tmpl != nil:
		return id.tmpl
	case id.inst != nil:
		return id.inst.tmpl
	default:
		return nil
	}
}

// Args returns a copy of the type arguments of an instantiation.
func (id ID) Args() []ID {
	if id.inst == nil {
		return nil
	}
	args := make([]ID, len(id.inst.args))
	copy(args, id.inst.args)
	return args
}

// String returns a human-readable name.
func (id ID) String() string {
	switch {
	case id.tmpl != nil:
		return id.tmpl.String()
	case id.inst != nil:
		names := make([]string, len(id.inst.args))
		for i, arg := range id.inst.args {
			names[i] = arg.String()
		}
		return fmt.Sprintf("%s<%s>", id.inst.tmpl.name, strings.Join(names, ","))
	case id.rt != nil:
		return id.rt.String()
	default:
		return "<nil>"
	}
}

// Template is an unbound generic type such as "Repository<_>".
// Instantiations of a template are interned, so instantiating twice with
// equal arguments returns equal IDs.
type Template struct {
	name  string
	arity int

	mu   sync.Mutex
	root node
}

// node is one level of the instantiation trie, keyed by argument position.
type node struct {
	children map[ID]*node
	inst     *instantiation
}

// NewTemplate creates a template with the given display name and number of
// type parameters. It panics if arity is less than one.
//
// Example:
//
//	repository := typeid.NewTemplate("Repository", 1)
//	employees := repository.Of(typeid.Of[Employee]())
func NewTemplate(name string, arity int) *Template {
	if arity < 1 {
		panic(fmt.Sprintf("typeid: template %q must have at least one type parameter, got %d", name, arity))
	}
	return &Template{name: name, arity: arity}
}

// Name returns the template's display name.
func (t *Template) Name() string {
	return t.name
}

// Arity returns the number of type parameters.
func (t *Template) Arity() int {
	return t.arity
}

// String renders the template with placeholders, e.g. "Pair<_,_>".
func (t *Template) String() string {
	return fmt.Sprintf("%s<%s>", t.name, strings.TrimSuffix(strings.Repeat("_,", t.arity), ","))
}

// ID returns the unbound identity of the template.
func (t *Template) ID() ID {
	return ID{tmpl: t}
}

// Of instantiates the template and panics on invalid arguments.
// Use Instantiate when the arguments are not known to be valid.
func (t *Template) Of(args ...ID) ID {
	id, err := t.Instantiate(args...)
	if err != nil {
		panic(err)
	}
	return id
}

// Instantiate returns the closed identity of the template applied to args.
// Every argument must be a non-zero closed identity and the number of
// arguments must equal the template's arity.
func (t *Template) Instantiate(args ...ID) (ID, error) {
	if len(args) != t.arity {
		return ID{}, &ArityError{Template: t, Got: len(args)}
	}
	for i, arg := range args {
		if arg.IsZero() {
			return ID{}, fmt.Errorf("typeid: argument %d of %s is the zero ID", i, t)
		}
		if arg.IsTemplate() {
			return ID{}, fmt.Errorf("typeid: argument %d of %s must be closed, got %s", i, t, arg)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := &t.root
	for _, arg := range args {
		if n.children == nil {
			n.children = make(map[ID]*node)
		}
		next, ok := n.children[arg]
		if !ok {
			next = &node{}
			n.children[arg] = next
		}
		n = next
	}
	if n.inst == nil {
		stored := make([]ID, len(args))
		copy(stored, args)
		n.inst = &instantiation{tmpl: t, args: stored}
	}
	return ID{inst: n.inst}, nil
}

// ArityError is returned when a template is instantiated with the wrong
// number of type arguments.
type ArityError struct {
	Template *Template
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("typeid: %s takes %d type argument(s), got %d", e.Template, e.Template.arity, e.Got)
}
