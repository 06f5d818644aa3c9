// Package registry holds named transformer handles and resolves them into
// invocable form on demand.
//
// A registered handle may be a plain function, an object implementing the
// Sanitizer interface, or a string class reference ("Ident" or
// "Ident@Method") resolved through a Container collaborator. Class-backed
// handles are constructed at most once per name for the registry's
// lifetime.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/vyrodovalexey/avsanitize/internal/observability"
)

// Func is the canonical transformer function shape. The current field
// value is always the first argument; declared rule arguments follow.
type Func func(value interface{}, args ...string) interface{}

// Sanitizer is implemented by stateful transformer objects.
type Sanitizer interface {
	Sanitize(value interface{}, args ...string) interface{}
}

// Container resolves class reference identifiers into instances. It is
// the only capability the registry requires from an application's
// dependency injection layer.
type Container interface {
	Make(identifier string) (interface{}, error)
}

// DefaultMethod is the method looked up on class-backed transformers when
// the reference carries no explicit selector.
const DefaultMethod = "Sanitize"

// methodSeparator separates the identifier from the method selector in a
// class reference.
const methodSeparator = "@"

// Registry maps transformer names to handles. It is safe for concurrent
// use; class-backed handles are constructed under the lock so concurrent
// resolutions of the same name never construct two instances.
type Registry struct {
	mu        sync.Mutex
	container Container
	logger    observability.Logger
	entries   map[string]interface{}
	resolved  map[string]*Handle
}

// Option is a functional option for configuring the registry.
type Option func(*Registry)

// WithLogger sets the logger for the registry.
func WithLogger(logger observability.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithContainer sets the container used to resolve class references.
func WithContainer(container Container) Option {
	return func(r *Registry) {
		r.container = container
	}
}

// New creates a new Registry instance.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger:   observability.NopLogger(),
		entries:  make(map[string]interface{}),
		resolved: make(map[string]*Handle),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register inserts or silently overwrites the handle for a name.
// Re-registering a name discards any memoized resolution for it.
func (r *Registry) Register(name string, handle interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[name] = handle
	delete(r.resolved, name)
}

// Names returns the registered transformer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the invocable handle for a name, or nil when the name
// is unknown or the stored entry is not usable. The only error condition
// is a failing Container.Make while constructing a class-backed handle;
// that error is returned to the caller rather than swallowed, since it
// indicates broken application wiring.
func (r *Registry) Resolve(name string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle, ok := r.resolved[name]; ok {
		return handle, nil
	}

	raw, ok := r.entries[name]
	if !ok {
		return nil, nil
	}

	handle, err := r.resolveEntry(name, raw)
	if err != nil {
		return nil, err
	}
	if handle != nil {
		r.resolved[name] = handle
	}
	return handle, nil
}

// resolveEntry turns a raw registration into an invocable handle.
// Must be called with the lock held.
func (r *Registry) resolveEntry(name string, raw interface{}) (*Handle, error) {
	switch entry := raw.(type) {
	case Func:
		return newFuncHandle(entry), nil
	case func(interface{}, ...string) interface{}:
		return newFuncHandle(entry), nil
	case Sanitizer:
		return newBoundHandle(entry), nil
	case string:
		return r.resolveClassRef(name, entry)
	default:
		fn := reflect.ValueOf(raw)
		if fn.Kind() == reflect.Func {
			return newReflectHandle(fn, r.logger), nil
		}
		r.logger.Warn("registered transformer is not invocable",
			observability.String("name", name),
			observability.String("type", fmt.Sprintf("%T", raw)))
		return nil, nil
	}
}

// resolveClassRef constructs a class-backed handle through the container.
func (r *Registry) resolveClassRef(name, ref string) (*Handle, error) {
	if r.container == nil {
		r.logger.Warn("class reference registered but no container configured",
			observability.String("name", name),
			observability.String("ref", ref))
		return nil, nil
	}

	identifier, method := splitClassRef(ref)

	instance, err := r.container.Make(identifier)
	if err != nil {
		return nil, fmt.Errorf("making transformer %s: %w", identifier, err)
	}
	if instance == nil {
		r.logger.Warn("container returned nil instance",
			observability.String("name", name),
			observability.String("ref", identifier))
		return nil, nil
	}

	if method == DefaultMethod {
		if s, ok := instance.(Sanitizer); ok {
			return newBoundHandle(s), nil
		}
	}

	m := reflect.ValueOf(instance).MethodByName(method)
	if !m.IsValid() {
		r.logger.Warn("transformer instance has no such method",
			observability.String("name", name),
			observability.String("method", method))
		return nil, nil
	}

	return newReflectHandle(m, r.logger), nil
}

// splitClassRef splits "Ident@Method" into its parts, defaulting the
// method selector when absent.
func splitClassRef(ref string) (identifier, method string) {
	identifier, method, found := strings.Cut(ref, methodSeparator)
	if !found || method == "" {
		method = DefaultMethod
	}
	return identifier, method
}
