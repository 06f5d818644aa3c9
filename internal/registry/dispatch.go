package registry

import (
	"reflect"
	"strconv"

	"github.com/vyrodovalexey/avsanitize/internal/observability"
)

// Handle is the resolved, invocable form of a registered transformer.
// Invocation never fails: a handle that cannot be applied to the given
// arguments returns the input value unchanged.
type Handle struct {
	invoke func(value interface{}, args []string) interface{}
}

// Invoke calls the handle with the positional argument list
// [value, args...] and returns the new value.
func (h *Handle) Invoke(value interface{}, args ...string) interface{} {
	return h.invoke(value, args)
}

// newFuncHandle wraps a canonical transformer function.
func newFuncHandle(fn Func) *Handle {
	return &Handle{invoke: func(value interface{}, args []string) interface{} {
		return fn(value, args...)
	}}
}

// newBoundHandle wraps the Sanitize method of a transformer instance.
func newBoundHandle(s Sanitizer) *Handle {
	return &Handle{invoke: func(value interface{}, args []string) interface{} {
		return s.Sanitize(value, args...)
	}}
}

// newReflectHandle wraps an arbitrary function value. Declared rule
// arguments are converted to the function's parameter types on a
// best-effort basis; any shape mismatch degrades to returning the input
// value unchanged. A trailing error result, when non-nil, likewise
// degrades to the input value.
func newReflectHandle(fn reflect.Value, logger observability.Logger) *Handle {
	return &Handle{invoke: func(value interface{}, args []string) interface{} {
		result, ok := callReflected(fn, value, args)
		if !ok {
			logger.Debug("transformer not applicable to arguments, passing value through",
				observability.String("func", fn.Type().String()),
				observability.Int("args", len(args)))
			return value
		}
		return result
	}}
}

// callReflected performs the reflective call. The second return value
// reports whether the call produced a usable result.
func callReflected(fn reflect.Value, value interface{}, args []string) (interface{}, bool) {
	t := fn.Type()

	in, ok := buildCallArgs(t, value, args)
	if !ok {
		return nil, false
	}

	results := fn.Call(in)

	if len(results) == 0 {
		return nil, false
	}

	// A trailing error result aborts the step.
	last := results[len(results)-1]
	if last.Type().Implements(errorType) {
		if !last.IsNil() {
			return nil, false
		}
		if len(results) == 1 {
			return nil, false
		}
	}

	return results[0].Interface(), true
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// buildCallArgs assembles [value, args...] converted to the function's
// parameter types.
func buildCallArgs(t reflect.Type, value interface{}, args []string) ([]reflect.Value, bool) {
	numIn := t.NumIn()
	total := 1 + len(args)

	if t.IsVariadic() {
		if total < numIn-1 {
			return nil, false
		}
	} else if total != numIn {
		return nil, false
	}

	in := make([]reflect.Value, 0, total)

	v, ok := convertValue(value, paramType(t, 0))
	if !ok {
		return nil, false
	}
	in = append(in, v)

	for i, arg := range args {
		av, ok := convertArg(arg, paramType(t, i+1))
		if !ok {
			return nil, false
		}
		in = append(in, av)
	}

	return in, true
}

// paramType returns the effective type of the i-th parameter, unwrapping
// the variadic slice element type.
func paramType(t reflect.Type, i int) reflect.Type {
	if t.IsVariadic() && i >= t.NumIn()-1 {
		return t.In(t.NumIn() - 1).Elem()
	}
	return t.In(i)
}

// convertValue adapts the current field value to a parameter type.
func convertValue(value interface{}, t reflect.Type) (reflect.Value, bool) {
	if value == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice:
			return reflect.Zero(t), true
		default:
			return reflect.Value{}, false
		}
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, true
	}
	// Conversions are restricted to numeric kinds: reflect would also
	// happily turn an int into a one-rune string.
	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), true
	}
	return reflect.Value{}, false
}

// isNumericKind reports whether a kind is an integer or float kind.
func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// convertArg parses a declared string argument into a parameter type.
func convertArg(arg string, t reflect.Type) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(arg).Convert(t), true
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return reflect.ValueOf(arg), true
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(arg, 10, 64)
		if err == nil {
			return reflect.ValueOf(n).Convert(t), true
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(arg, 10, 64)
		if err == nil {
			return reflect.ValueOf(n).Convert(t), true
		}
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(arg, 64)
		if err == nil {
			return reflect.ValueOf(f).Convert(t), true
		}
	case reflect.Bool:
		b, err := strconv.ParseBool(arg)
		if err == nil {
			return reflect.ValueOf(b).Convert(t), true
		}
	}
	return reflect.Value{}, false
}
