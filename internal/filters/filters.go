// Package filters provides the built-in transformer set. The filters are
// plugins registered into a registry; the engine itself has no knowledge
// of them.
package filters

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/vyrodovalexey/avsanitize/internal/registry"
)

// Register installs the built-in filter set into a registry under their
// conventional names.
func Register(r *registry.Registry) {
	r.Register("trim", registry.Func(Trim))
	r.Register("lowercase", stringFilter(strings.ToLower))
	r.Register("uppercase", stringFilter(strings.ToUpper))
	r.Register("capitalize", NewCapitalizer())
	r.Register("escape", stringFilter(html.EscapeString))
	r.Register("strip_tags", NewTagStripper())
	r.Register("digit", stringFilter(digits))
	r.Register("squish", stringFilter(squish))
	r.Register("ascii", stringFilter(ascii))
	r.Register("truncate", Truncate)
	r.Register("cast", registry.Func(Cast))
	r.Register("format_date", FormatDate)
	r.Register("default", registry.Func(Default))
}

// stringFilter lifts a plain string function into the canonical
// transformer shape; non-string values pass through unchanged.
func stringFilter(fn func(string) string) registry.Func {
	return func(value interface{}, _ ...string) interface{} {
		s, ok := value.(string)
		if !ok {
			return value
		}
		return fn(s)
	}
}

// Trim removes surrounding whitespace, or the characters given as the
// first argument ("trim:/" strips slashes).
func Trim(value interface{}, args ...string) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if len(args) > 0 && args[0] != "" {
		return strings.Trim(s, args[0])
	}
	return strings.TrimSpace(s)
}

// Capitalizer title-cases string values. The underlying caser carries
// state across calls, so it is guarded by a mutex.
type Capitalizer struct {
	mu    sync.Mutex
	caser cases.Caser
}

// NewCapitalizer creates a capitalize transformer.
func NewCapitalizer() *Capitalizer {
	return &Capitalizer{caser: cases.Title(language.Und)}
}

// Sanitize implements registry.Sanitizer.
func (c *Capitalizer) Sanitize(value interface{}, _ ...string) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caser.String(s)
}

// TagStripper removes HTML markup from string values.
type TagStripper struct {
	policy *bluemonday.Policy
}

// NewTagStripper creates a strip_tags transformer backed by a strict
// bluemonday policy that allows no markup at all.
func NewTagStripper() *TagStripper {
	return &TagStripper{policy: bluemonday.StrictPolicy()}
}

// Sanitize implements registry.Sanitizer.
func (t *TagStripper) Sanitize(value interface{}, _ ...string) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return t.policy.Sanitize(s)
}

// digits keeps only decimal digit runes.
func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// squish trims the string and collapses interior whitespace runs into
// single spaces.
func squish(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// asciiTransformer strips combining marks after canonical decomposition,
// turning "café" into "cafe".
var asciiTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// ascii removes diacritics from string values.
func ascii(s string) string {
	out, _, err := transform.String(asciiTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// Truncate shortens a string value to at most length runes.
func Truncate(value string, length int) string {
	if length < 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= length {
		return value
	}
	return string(r[:length])
}

// Cast converts the value to the type named by the first argument:
// int, float, bool or string. Values that cannot be converted pass
// through unchanged.
func Cast(value interface{}, args ...string) interface{} {
	if len(args) == 0 {
		return value
	}

	switch args[0] {
	case "int":
		return castInt(value)
	case "float":
		return castFloat(value)
	case "bool":
		return castBool(value)
	case "string":
		return fmt.Sprintf("%v", value)
	default:
		return value
	}
}

// castInt converts a value to int64 when possible.
func castInt(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	}
	return value
}

// castFloat converts a value to float64 when possible.
func castFloat(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return value
}

// castBool converts a value to bool when possible.
func castBool(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return value
}

// FormatDate re-renders a date string from one Go reference layout into
// another; unparseable values pass through unchanged.
func FormatDate(value string, from, to string) string {
	t, err := time.Parse(from, value)
	if err != nil {
		return value
	}
	return t.Format(to)
}

// Default substitutes the first argument when the value is nil or an
// empty string.
func Default(value interface{}, args ...string) interface{} {
	if len(args) == 0 {
		return value
	}
	if value == nil {
		return args[0]
	}
	if s, ok := value.(string); ok && s == "" {
		return args[0]
	}
	return value
}
