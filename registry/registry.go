// Package registry provides thread-safe storage and lookup of abstraction to
// implementation registrations, including open template registrations.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/toutaio/toutago-ioc/typeid"
)

// Registration maps an abstraction to the implementation that satisfies it.
type Registration struct {
	// Abstraction is the identity callers ask for (e.g. Logger, Repository<Employee>).
	Abstraction typeid.ID

	// Implementation is the identity that gets constructed.
	Implementation typeid.ID

	// Template is true for template registrations (Repository<_> -> SqlRepository<_>)
	// and for registrations derived from them by TryLookup.
	Template bool
}

// String returns "abstraction -> implementation".
func (r Registration) String() string {
	return fmt.Sprintf("%s -> %s", r.Abstraction, r.Implementation)
}

// Registry provides thread-safe storage for registrations.
// Closed registrations are keyed by identity, template registrations by template.
type Registry struct {
	mu        sync.RWMutex
	closed    map[typeid.ID]Registration
	templates map[*typeid.Template]Registration
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		closed:    make(map[typeid.ID]Registration),
		templates: make(map[*typeid.Template]Registration),
	}
}

// Register records a registration, replacing any previous one for the same
// abstraction. Both identities must be non-zero and of the same kind: closed
// to closed, or unbound template to unbound template. Template arities are
// not compared here; a mismatch surfaces on lookup.
//
// This method is goroutine-safe.
func (r *Registry) Register(abstraction, implementation typeid.ID) (Registration, error) {
	if abstraction.IsZero() {
		return Registration{}, &InvalidRegistrationError{Reason: "abstraction cannot be the zero ID"}
	}
	if implementation.IsZero() {
		return Registration{}, &InvalidRegistrationError{Reason: "implementation cannot be the zero ID"}
	}
	if abstraction.Kind() != implementation.Kind() {
		return Registration{}, &InvalidRegistrationError{
			Reason: fmt.Sprintf("cannot map %s %s to %s %s",
				abstraction.Kind(), abstraction, implementation.Kind(), implementation),
		}
	}

	reg := Registration{
		Abstraction:    abstraction,
		Implementation: implementation,
		Template:       abstraction.IsTemplate(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if reg.Template {
		r.templates[abstraction.Template()] = reg
	} else {
		r.closed[abstraction] = reg
	}
	return reg, nil
}

// TryLookup finds the registration that serves requested.
//
// An exact registration always wins. Otherwise, when requested is a template
// instantiation and its template is registered, the template's implementation
// is instantiated with the requested arguments in the same positions. The
// boolean is false when nothing applies.
//
// This method is goroutine-safe.
func (r *Registry) TryLookup(requested typeid.ID) (Registration, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if requested.IsTemplate() {
		reg, ok := r.templates[requested.Template()]
		return reg, ok, nil
	}

	if reg, ok := r.closed[requested]; ok {
		return reg, true, nil
	}

	if !requested.IsInstantiation() {
		return Registration{}, false, nil
	}

	tmplReg, ok := r.templates[requested.Template()]
	if !ok {
		return Registration{}, false, nil
	}

	args := requested.Args()
	implTemplate := tmplReg.Implementation.Template()
	if implTemplate.Arity() != len(args) {
		return Registration{}, false, &AmbiguousTemplateArgumentError{
			Requested:      requested,
			Implementation: tmplReg.Implementation,
			Got:            len(args),
			Want:           implTemplate.Arity(),
		}
	}

	impl, err := implTemplate.Instantiate(args...)
	if err != nil {
		return Registration{}, false, &AmbiguousTemplateArgumentError{
			Requested:      requested,
			Implementation: tmplReg.Implementation,
			Got:            len(args),
			Want:           implTemplate.Arity(),
		}
	}

	return Registration{
		Abstraction:    requested,
		Implementation: impl,
		Template:       true,
	}, true, nil
}

// Has checks if a registration exists for the exact identity.
//
// This method is goroutine-safe.
func (r *Registry) Has(abstraction typeid.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if abstraction.IsTemplate() {
		_, ok := r.templates[abstraction.Template()]
		return ok
	}
	_, ok := r.closed[abstraction]
	return ok
}

// Remove deletes the registration for the exact identity.
// It reports whether a registration was removed.
func (r *Registry) Remove(abstraction typeid.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if abstraction.IsTemplate() {
		if _, ok := r.templates[abstraction.Template()]; ok {
			delete(r.templates, abstraction.Template())
			return true
		}
		return false
	}
	if _, ok := r.closed[abstraction]; ok {
		delete(r.closed, abstraction)
		return true
	}
	return false
}

// Len returns the number of stored registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.closed) + len(r.templates)
}

// All returns every stored registration ordered by abstraction name.
func (r *Registry) All() []Registration {
	r.mu.RLock()
	all := make([]Registration, 0, len(r.closed)+len(r.templates))
	for _, reg := range r.closed {
		all = append(all, reg)
	}
	for _, reg := range r.templates {
		all = append(all, reg)
	}
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Abstraction.String() < all[j].Abstraction.String()
	})
	return all
}

// InvalidRegistrationError is returned when a registration is malformed.
type InvalidRegistrationError struct {
	Reason string
}

func (e *InvalidRegistrationError) Error() string {
	return fmt.Sprintf("invalid registration: %s", e.Reason)
}

// AmbiguousTemplateArgumentError is returned when a requested instantiation's
// arguments cannot be mapped onto the arity of the registered implementation template.
type AmbiguousTemplateArgumentError struct {
	Requested      typeid.ID
	Implementation typeid.ID
	Got            int
	Want           int
}

func (e *AmbiguousTemplateArgumentError) Error() string {
	return fmt.Sprintf("cannot map %d type argument(s) of %s onto %s (takes %d)",
		e.Got, e.Requested, e.Implementation, e.Want)
}
