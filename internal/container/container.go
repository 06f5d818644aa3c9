// Package container provides a minimal factory-based implementation of
// the registry.Container collaborator. Applications bind identifiers to
// no-argument factories; the registry calls Make once per class-backed
// transformer and memoizes the instance.
package container

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotBound indicates that an identifier has no registered factory.
var ErrNotBound = errors.New("identifier is not bound")

// Factory constructs an instance for a bound identifier.
type Factory func() (interface{}, error)

// Container resolves identifiers into instances via bound factories.
// Safe for concurrent use.
type Container struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty container.
func New() *Container {
	return &Container{
		factories: make(map[string]Factory),
	}
}

// Bind registers a factory for an identifier, replacing any previous
// binding.
func (c *Container) Bind(identifier string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[identifier] = factory
}

// BindValue binds an identifier to an already-constructed instance.
func (c *Container) BindValue(identifier string, instance interface{}) {
	c.Bind(identifier, func() (interface{}, error) {
		return instance, nil
	})
}

// Make constructs an instance for the identifier. Each call runs the
// factory; callers that need a single shared instance memoize the result
// themselves.
func (c *Container) Make(identifier string) (interface{}, error) {
	c.mu.RLock()
	factory, ok := c.factories[identifier]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, identifier)
	}

	return factory()
}
