package sanitize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avsanitize/internal/registry"
)

// newTestEngine builds an engine with a small transformer set.
func newTestEngine(t *testing.T, opts ...registry.Option) *Engine {
	t.Helper()

	reg := registry.New(opts...)
	reg.Register("trim", registry.Func(func(value interface{}, _ ...string) interface{} {
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s)
		}
		return value
	}))
	reg.Register("upper", registry.Func(func(value interface{}, _ ...string) interface{} {
		if s, ok := value.(string); ok {
			return strings.ToUpper(s)
		}
		return value
	}))
	reg.Register("lower", registry.Func(func(value interface{}, _ ...string) interface{} {
		if s, ok := value.(string); ok {
			return strings.ToLower(s)
		}
		return value
	}))
	reg.Register("truncate", registry.Func(func(value interface{}, args ...string) interface{} {
		s, ok := value.(string)
		if !ok || len(args) == 0 {
			return value
		}
		n := len(s)
		if parsed, err := parseInt(args[0]); err == nil && parsed < n {
			n = parsed
		}
		return s[:n]
	}))
	reg.Register("append", registry.Func(func(value interface{}, args ...string) interface{} {
		s, _ := value.(string)
		return s + strings.Join(args, "")
	}))

	return New(reg)
}

// parseInt keeps the test transformer free of strconv noise.
func parseInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

func TestSanitizeFieldPipeline(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{"name": "  bob  "}
	result, err := e.Sanitize(context.Background(), Ruleset{"name": "trim|upper"}, record)

	require.NoError(t, err)
	assert.Equal(t, "BOB", result["name"])
	// Sanitize mutates in place.
	assert.Equal(t, "BOB", record["name"])
}

func TestSanitizeCompositionOrder(t *testing.T) {
	e := newTestEngine(t)

	// append:a then upper is not the same as upper then append:a.
	record := map[string]interface{}{"v": "x"}
	_, err := e.Sanitize(context.Background(), Ruleset{"v": "append:a|upper"}, record)
	require.NoError(t, err)
	assert.Equal(t, "XA", record["v"])

	record = map[string]interface{}{"v": "x"}
	_, err = e.Sanitize(context.Background(), Ruleset{"v": "upper|append:a"}, record)
	require.NoError(t, err)
	assert.Equal(t, "Xa", record["v"])
}

func TestSanitizeUntouchedFieldsUnchanged(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{
		"name":  "  bob  ",
		"email": "  KEEP@ME  ",
	}
	_, err := e.Sanitize(context.Background(), Ruleset{"name": "trim"}, record)

	require.NoError(t, err)
	assert.Equal(t, "bob", record["name"])
	assert.Equal(t, "  KEEP@ME  ", record["email"])
}

func TestSanitizeAbsentFieldIgnored(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{"name": "bob"}
	_, err := e.Sanitize(context.Background(), Ruleset{"missing": "upper"}, record)

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "bob"}, record)
}

func TestSanitizeUnknownStepPassesThrough(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{"name": "  bob  "}
	_, err := e.Sanitize(context.Background(), Ruleset{"name": "frobnicate|trim"}, record)

	require.NoError(t, err)
	// The unknown step is skipped, the rest of the pipeline still runs.
	assert.Equal(t, "bob", record["name"])
}

func TestSanitizeWildcardBeforeFieldPipelines(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{"name": "bob", "city": "ny"}
	_, err := e.Sanitize(context.Background(), Ruleset{
		WildcardKey: "upper",
		"name":      "upper|truncate:3",
	}, record)

	require.NoError(t, err)
	assert.Equal(t, "BOB", record["name"])
	assert.Equal(t, "NY", record["city"])
}

func TestSanitizeWildcardFeedsFieldPipeline(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{"name": "bob"}
	_, err := e.Sanitize(context.Background(), Ruleset{
		WildcardKey: "append:x",
		"name":      "upper",
	}, record)

	require.NoError(t, err)
	// The field pipeline sees the wildcard-processed value.
	assert.Equal(t, "BOBX", record["name"])
}

func TestSanitizeDottedPaths(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{
		"user": map[string]interface{}{
			"name":  "  ALICE  ",
			"email": "untouched",
		},
	}
	_, err := e.Sanitize(context.Background(), Ruleset{"user.name": "trim|lower"}, record)

	require.NoError(t, err)
	user := record["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["name"])
	assert.Equal(t, "untouched", user["email"])
}

func TestSanitizeNilAndEmptyInputs(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Sanitize(context.Background(), Ruleset{"name": "trim"}, nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	record := map[string]interface{}{"name": " x "}
	result, err = e.Sanitize(context.Background(), nil, record)
	require.NoError(t, err)
	assert.Equal(t, " x ", result["name"])
}

func TestSanitizeValue(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		pipeline string
		value    interface{}
		expected interface{}
	}{
		{
			name:     "trim and lower",
			pipeline: "trim|lower",
			value:    "  HeLLo  ",
			expected: "hello",
		},
		{
			name:     "unregistered step is identity",
			pipeline: "frobnicate",
			value:    "x",
			expected: "x",
		},
		{
			name:     "non-string value passes through string filters",
			pipeline: "trim|upper",
			value:    42,
			expected: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.SanitizeValue(context.Background(), tt.pipeline, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSanitizeField(t *testing.T) {
	e := newTestEngine(t)

	record := map[string]interface{}{"name": "  bob  "}
	err := e.SanitizeField(context.Background(), record, "name", "trim|upper")

	require.NoError(t, err)
	assert.Equal(t, "BOB", record["name"])
}

func TestSanitizeResolvedInstanceReused(t *testing.T) {
	c := &countingContainer{}
	e := newTestEngine(t, registry.WithContainer(c))
	e.Registry().Register("mark", "Marker")

	record := map[string]interface{}{"a": "1", "b": "2"}
	_, err := e.Sanitize(context.Background(), Ruleset{"a": "mark", "b": "mark"}, record)

	require.NoError(t, err)
	assert.Equal(t, "1!", record["a"])
	assert.Equal(t, "2!", record["b"])
	assert.Equal(t, 1, c.calls)
}

func TestSanitizeContainerErrorPropagates(t *testing.T) {
	c := &countingContainer{err: errors.New("wiring broken")}
	e := newTestEngine(t, registry.WithContainer(c))
	e.Registry().Register("mark", "Marker")

	record := map[string]interface{}{"a": " x "}
	_, err := e.Sanitize(context.Background(), Ruleset{"a": "trim|mark"}, record)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiring broken")
	// The field is not lost when the pipeline aborts.
	assert.Contains(t, record, "a")
}

// marker appends "!" to string values.
type marker struct{}

func (marker) Sanitize(value interface{}, _ ...string) interface{} {
	if s, ok := value.(string); ok {
		return s + "!"
	}
	return value
}

// countingContainer counts Make calls and optionally fails.
type countingContainer struct {
	calls int
	err   error
}

func (c *countingContainer) Make(identifier string) (interface{}, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return marker{}, nil
}
