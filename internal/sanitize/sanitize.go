// Package sanitize implements the rule-driven sanitization engine.
//
// A ruleset maps field paths to pipelines of named transformation steps.
// Sanitize runs each declared field's current value through its pipeline
// in order, writing the result back into the record. A wildcard pipeline
// under "*" is applied to every present field before field-specific
// pipelines run.
package sanitize

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avsanitize/internal/fieldpath"
	"github.com/vyrodovalexey/avsanitize/internal/observability"
	"github.com/vyrodovalexey/avsanitize/internal/registry"
)

// Ruleset maps field paths (or the wildcard key) to pipeline
// declarations in any of the shapes ParseSteps accepts.
type Ruleset map[string]interface{}

// Record is the mutable mapping of field paths to values being sanitized.
type Record = map[string]interface{}

// valueKey is the internal field name used by SanitizeValue.
const valueKey = "__value"

var sanitizeTracer = otel.Tracer("avsanitize/sanitize")

// Engine orchestrates ruleset parsing, wildcard expansion, field
// iteration and step invocation against a transformer registry.
type Engine struct {
	registry *registry.Registry
	logger   observability.Logger
}

// Option is a functional option for configuring the engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates a new Engine backed by the given registry.
func New(reg *registry.Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = registry.New()
	}

	e := &Engine{
		registry: reg,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Registry returns the registry backing the engine.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Sanitize mutates record in place by running every declared field's
// value through its pipeline, and returns the record. Fields referenced
// by the ruleset but absent from the record are skipped. Field iteration
// is in sorted path order so results are deterministic. The only error
// condition is a failing container construction for a class-backed
// transformer; every other irregularity degrades to passing the value
// through unchanged.
func (e *Engine) Sanitize(ctx context.Context, rules Ruleset, record Record) (Record, error) {
	if record == nil || len(rules) == 0 {
		return record, nil
	}

	ctx, span := sanitizeTracer.Start(ctx, "sanitize.record",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("sanitize.rule_count", len(rules)),
			attribute.Int("sanitize.field_count", len(record)),
		),
	)
	defer span.End()

	start := time.Now()
	metrics := GetMetrics()
	defer func() {
		metrics.ObserveDuration(time.Since(start))
	}()

	if wildcard, ok := rules[WildcardKey]; ok {
		if err := e.wildcardPass(ctx, record, wildcard); err != nil {
			return record, err
		}
	}

	for _, path := range sortedKeys(rules) {
		if path == WildcardKey {
			continue
		}
		if !fieldpath.Has(record, path) {
			e.logger.WithContext(ctx).Debug("field absent from record, skipping",
				observability.String("field", path))
			metrics.RecordField("absent")
			continue
		}
		if err := e.applySteps(ctx, record, path, ParseSteps(rules[path])); err != nil {
			return record, err
		}
	}

	return record, nil
}

// wildcardPass applies the wildcard pipeline to a snapshot of the
// record's top-level fields. Fields a transformer adds during the pass
// are not revisited.
func (e *Engine) wildcardPass(ctx context.Context, record Record, pipeline interface{}) error {
	steps := ParseSteps(pipeline)
	for _, path := range sortedKeys(record) {
		if err := e.applySteps(ctx, record, path, steps); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeField runs a single field of the record through a pipeline.
func (e *Engine) SanitizeField(ctx context.Context, record Record, path string, pipeline interface{}) error {
	return e.applySteps(ctx, record, path, ParseSteps(pipeline))
}

// SanitizeValue runs a bare value through a pipeline by wrapping it as a
// one-field record.
func (e *Engine) SanitizeValue(ctx context.Context, pipeline interface{}, value interface{}) (interface{}, error) {
	record := Record{valueKey: value}
	if _, err := e.Sanitize(ctx, Ruleset{valueKey: pipeline}, record); err != nil {
		return value, err
	}
	return record[valueKey], nil
}

// applySteps reads and removes the value at path, chains it through the
// steps, and writes the final value back, creating intermediate
// containers as needed. Unknown step names pass the value through.
func (e *Engine) applySteps(ctx context.Context, record Record, path string, steps []Step) error {
	if len(steps) == 0 {
		return nil
	}

	value, ok := fieldpath.Pull(record, path)
	if !ok {
		return nil
	}

	logger := e.logger.WithContext(ctx)
	metrics := GetMetrics()

	for _, step := range steps {
		handle, err := e.registry.Resolve(step.Name)
		if err != nil {
			// Restore the field before surfacing the wiring error.
			_ = fieldpath.Set(record, path, value)
			metrics.RecordField("error")
			return err
		}
		if handle == nil {
			logger.Debug("unknown transformer, skipping step",
				observability.String("field", path),
				observability.String("step", step.Name))
			metrics.RecordStep("skipped")
			continue
		}

		value = handle.Invoke(value, step.Args...)
		metrics.RecordStep("applied")
	}

	if err := fieldpath.Set(record, path, value); err != nil {
		metrics.RecordField("error")
		return err
	}

	metrics.RecordField("success")
	return nil
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
