package scenario

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// placeholderRe matches {{name}} and {{parent.child}} with optional
// surrounding whitespace inside the braces.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)?)\s*\}\}`)

// Resolver substitutes {{variable}} placeholders against a variable map.
// Unresolved placeholders are left in place with a warning; resolution
// never fails.
type Resolver struct {
	vars   map[string]interface{}
	logger *zap.Logger
}

// NewResolver creates a resolver over the given variable map. The map is
// shared, not copied: callers mutate it between resolutions.
func NewResolver(vars map[string]interface{}, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{vars: vars, logger: logger}
}

// ResolveString replaces every placeholder in input whose variable is
// present. Dotted paths look one level into an object-valued variable.
func (r *Resolver) ResolveString(input string) string {
	return placeholderRe.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])

		if parent, child, ok := strings.Cut(name, "."); ok {
			if value, found := r.lookupNested(parent, child); found {
				return renderValue(value)
			}
			r.logger.Warn("variable not found", zap.String("name", name))
			return match
		}

		if value, found := r.vars[name]; found {
			return renderValue(value)
		}
		r.logger.Warn("variable not found", zap.String("name", name))
		return match
	})
}

// ResolveValue walks a structured JSON value, resolving placeholders in
// every string. Object keys and non-string scalars pass through unchanged.
func (r *Resolver) ResolveValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return r.ResolveString(v)
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(v))
		for key, item := range v {
			resolved[key] = r.ResolveValue(item)
		}
		return resolved
	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, item := range v {
			resolved[i] = r.ResolveValue(item)
		}
		return resolved
	default:
		return value
	}
}

func (r *Resolver) lookupNested(parent, child string) (interface{}, bool) {
	parentValue, ok := r.vars[parent]
	if !ok {
		return nil, false
	}
	obj, ok := parentValue.(map[string]interface{})
	if !ok {
		return nil, false
	}
	value, ok := obj[child]
	return value, ok
}

// renderValue produces the canonical lexical form of a JSON value for
// inline substitution: strings verbatim, numbers and booleans in their
// shortest form, arrays and objects as JSON.
func renderValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
