// Package fieldpath implements dotted field path access on nested records.
//
// Paths use dot notation for nested maps and bracket notation for array
// elements, e.g. "user.name" or "items[0].id".
package fieldpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Common field path errors.
var (
	// ErrInvalidPath indicates that a field path cannot be parsed.
	ErrInvalidPath = errors.New("invalid field path")

	// ErrNotFound indicates that no value exists at the path.
	ErrNotFound = errors.New("field not found")

	// ErrNotTraversable indicates that a path segment lands on a value
	// that is neither a map nor an array.
	ErrNotTraversable = errors.New("value is not traversable")
)

// segment is one parsed element of a field path.
type segment struct {
	key     string
	indexed bool
	index   int
}

// parse splits a path into segments. A trailing "[n]" on a segment
// addresses an array element; anything else is a map key.
func parse(path string) ([]segment, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	raw := strings.Split(path, ".")
	segments := make([]segment, 0, len(raw))

	for _, part := range raw {
		if part == "" {
			return nil, ErrInvalidPath
		}

		open := strings.IndexByte(part, '[')
		if open <= 0 || !strings.HasSuffix(part, "]") {
			segments = append(segments, segment{key: part})
			continue
		}

		index, err := strconv.Atoi(part[open+1 : len(part)-1])
		if err != nil || index < 0 {
			// Not a numeric index; treat the whole token as a plain key.
			segments = append(segments, segment{key: part})
			continue
		}

		segments = append(segments, segment{key: part[:open], indexed: true, index: index})
	}

	return segments, nil
}

// Get retrieves the value at the given path.
func Get(data map[string]interface{}, path string) (interface{}, error) {
	segments, err := parse(path)
	if err != nil {
		return nil, err
	}

	var current interface{} = data
	for _, seg := range segments {
		current, err = descend(current, seg)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// Has reports whether a value exists at the given path.
func Has(data map[string]interface{}, path string) bool {
	_, err := Get(data, path)
	return err == nil
}

// descend resolves one segment against the current value.
func descend(current interface{}, seg segment) (interface{}, error) {
	m, ok := current.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: cannot descend into %T", ErrNotTraversable, current)
	}

	val, exists := m[seg.key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, seg.key)
	}

	if !seg.indexed {
		return val, nil
	}

	arr, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an array", ErrNotTraversable, seg.key)
	}
	if seg.index >= len(arr) {
		return nil, fmt.Errorf("%w: index %d out of bounds", ErrNotFound, seg.index)
	}

	return arr[seg.index], nil
}

// Set writes a value at the given path, creating intermediate maps as needed.
// Existing non-map values along the path are replaced by maps.
func Set(data map[string]interface{}, path string, value interface{}) error {
	segments, err := parse(path)
	if err != nil {
		return err
	}

	current := data
	for _, seg := range segments[:len(segments)-1] {
		current, err = stepOrCreate(current, seg)
		if err != nil {
			return err
		}
	}

	return setLeaf(current, segments[len(segments)-1], value)
}

// stepOrCreate walks one segment down, materialising containers as needed.
func stepOrCreate(current map[string]interface{}, seg segment) (map[string]interface{}, error) {
	val, exists := current[seg.key]
	if !exists {
		if seg.indexed {
			val = make([]interface{}, seg.index+1)
		} else {
			val = make(map[string]interface{})
		}
		current[seg.key] = val
	}

	if seg.indexed {
		arr, ok := val.([]interface{})
		if !ok {
			arr = make([]interface{}, 0, seg.index+1)
		}
		for len(arr) <= seg.index {
			arr = append(arr, nil)
		}
		current[seg.key] = arr

		if m, ok := arr[seg.index].(map[string]interface{}); ok {
			return m, nil
		}
		m := make(map[string]interface{})
		arr[seg.index] = m
		return m, nil
	}

	if m, ok := val.(map[string]interface{}); ok {
		return m, nil
	}

	m := make(map[string]interface{})
	current[seg.key] = m
	return m, nil
}

// setLeaf writes the final value for the last path segment.
func setLeaf(current map[string]interface{}, seg segment, value interface{}) error {
	if !seg.indexed {
		current[seg.key] = value
		return nil
	}

	arr, ok := current[seg.key].([]interface{})
	if !ok {
		arr = make([]interface{}, 0, seg.index+1)
	}
	for len(arr) <= seg.index {
		arr = append(arr, nil)
	}
	arr[seg.index] = value
	current[seg.key] = arr
	return nil
}

// Delete removes the value at the given path. Ancestor containers are
// left in place. Deleting a missing path is a no-op.
func Delete(data map[string]interface{}, path string) {
	segments, err := parse(path)
	if err != nil {
		return
	}

	current := data
	for _, seg := range segments[:len(segments)-1] {
		next, ok := stepForDelete(current, seg)
		if !ok {
			return
		}
		current = next
	}

	last := segments[len(segments)-1]
	if last.indexed {
		// Array elements are nilled out rather than spliced so that
		// sibling indices remain stable.
		if arr, ok := current[last.key].([]interface{}); ok && last.index < len(arr) {
			arr[last.index] = nil
		}
		return
	}
	delete(current, last.key)
}

// stepForDelete walks one segment down without creating anything.
func stepForDelete(current map[string]interface{}, seg segment) (map[string]interface{}, bool) {
	val, exists := current[seg.key]
	if !exists {
		return nil, false
	}

	if seg.indexed {
		arr, ok := val.([]interface{})
		if !ok || seg.index >= len(arr) {
			return nil, false
		}
		m, ok := arr[seg.index].(map[string]interface{})
		return m, ok
	}

	m, ok := val.(map[string]interface{})
	return m, ok
}

// Pull reads and removes the value at the given path. The second return
// value reports whether a value was present.
func Pull(data map[string]interface{}, path string) (interface{}, bool) {
	value, err := Get(data, path)
	if err != nil {
		return nil, false
	}
	Delete(data, path)
	return value, true
}

// DeepCopy creates a deep copy of a record.
func DeepCopy(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}

	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

// deepCopyValue creates a deep copy of a single value.
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return DeepCopy(val)
	case []interface{}:
		dst := make([]interface{}, len(val))
		for i, elem := range val {
			dst[i] = deepCopyValue(elem)
		}
		return dst
	default:
		return v
	}
}
