// Package avsanitize provides a process-wide default sanitization engine
// with the built-in filter set pre-registered.
//
// Rules map field paths to pipelines of named transformation steps:
//
//	record := map[string]interface{}{"name": "  bob  ", "city": "ny"}
//	avsanitize.Sanitize(ctx, map[string]interface{}{
//	    "*":    "trim",
//	    "name": "capitalize",
//	}, record)
//
// The wildcard path "*" applies to every field present in the record
// before field-specific pipelines run. Unknown step names pass values
// through unchanged.
package avsanitize

import (
	"context"
	"sync"

	"github.com/vyrodovalexey/avsanitize/internal/container"
	"github.com/vyrodovalexey/avsanitize/internal/filters"
	"github.com/vyrodovalexey/avsanitize/internal/observability"
	"github.com/vyrodovalexey/avsanitize/internal/registry"
	"github.com/vyrodovalexey/avsanitize/internal/sanitize"
)

// WildcardKey is the reserved field path applied to every present field.
const WildcardKey = sanitize.WildcardKey

var (
	defaultOnce      sync.Once
	defaultContainer *container.Container
	defaultEngine    *sanitize.Engine
)

// initDefault wires the default container, registry and engine.
func initDefault() {
	defaultOnce.Do(func() {
		defaultContainer = container.New()
		reg := registry.New(
			registry.WithLogger(observability.L()),
			registry.WithContainer(defaultContainer),
		)
		filters.Register(reg)
		defaultEngine = sanitize.New(reg, sanitize.WithLogger(observability.L()))
	})
}

// Register adds a transformer to the default engine under a name.
// The handle may be a function taking the value as its first argument,
// an object with a Sanitize method, or a string class reference
// ("Ident" or "Ident@Method") resolved through the default container.
// Registering an existing name silently overwrites it.
func Register(name string, handle interface{}) {
	initDefault()
	defaultEngine.Registry().Register(name, handle)
}

// Bind registers a factory for a class reference identifier in the
// default container. The factory runs at most once per registered name;
// the constructed instance is memoized by the registry.
func Bind(identifier string, factory func() (interface{}, error)) {
	initDefault()
	defaultContainer.Bind(identifier, factory)
}

// Sanitize mutates record in place by running each field named in rules
// through its pipeline, and returns the record.
func Sanitize(ctx context.Context, rules map[string]interface{}, record map[string]interface{}) (map[string]interface{}, error) {
	initDefault()
	return defaultEngine.Sanitize(ctx, rules, record)
}

// SanitizeValue runs a single value through a piped pipeline string.
func SanitizeValue(ctx context.Context, pipeline string, value interface{}) (interface{}, error) {
	initDefault()
	return defaultEngine.SanitizeValue(ctx, pipeline, value)
}
