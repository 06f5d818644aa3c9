package sanitize

import "strings"

// WildcardKey is the reserved field path whose pipeline applies to every
// field present in the record before field-specific pipelines run.
const WildcardKey = "*"

// Rule string separators.
const (
	stepSeparator    = "|"
	argSeparator     = ":"
	argListSeparator = ","
)

// Step is one named transformation with its declared string arguments.
type Step struct {
	Name string
	Args []string
}

// ParseSteps normalizes a pipeline declaration into an ordered step
// sequence. Accepted shapes are a piped string ("trim|truncate:16"), a
// slice of step tokens, a slice of Steps, or a mixed []interface{} of
// those. Anything else yields no steps.
func ParseSteps(pipeline interface{}) []Step {
	switch p := pipeline.(type) {
	case string:
		return parseRuleString(p)
	case []string:
		steps := make([]Step, 0, len(p))
		for _, token := range p {
			steps = append(steps, parseToken(token))
		}
		return steps
	case []Step:
		return p
	case []interface{}:
		var steps []Step
		for _, elem := range p {
			switch token := elem.(type) {
			case string:
				steps = append(steps, parseToken(token))
			case Step:
				steps = append(steps, token)
			}
		}
		return steps
	default:
		return nil
	}
}

// parseRuleString splits a piped rule string into steps.
func parseRuleString(rule string) []Step {
	tokens := strings.Split(rule, stepSeparator)
	steps := make([]Step, 0, len(tokens))
	for _, token := range tokens {
		steps = append(steps, parseToken(token))
	}
	return steps
}

// parseToken splits one "name:arg1,arg2" token into a Step. Only the
// first separator counts; arguments may themselves contain colons.
func parseToken(token string) Step {
	name, rest, found := strings.Cut(token, argSeparator)
	step := Step{Name: strings.TrimSpace(name)}

	if !found || rest == "" {
		return step
	}

	args := strings.Split(rest, argListSeparator)
	for i, arg := range args {
		args[i] = strings.TrimSpace(arg)
	}
	step.Args = args
	return step
}
