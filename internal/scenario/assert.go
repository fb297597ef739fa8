package scenario

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/phanngoc/lookapi/pkg/jsonpath"
)

// Assertion operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "notEquals"
	OpContains    = "contains"
	OpMatches     = "matches"
	OpGreaterThan = "greaterThan"
	OpLessThan    = "lessThan"
	OpExists      = "exists"
)

// EvaluateAssertion resolves the observed value from the response and
// compares it against the expected value under the assertion's operator.
// The returned copy is annotated with the actual value, the pass flag and
// a diagnostic on failure.
func EvaluateAssertion(a Assertion, resp *StepResponse, durationMs int64) Assertion {
	actual := observedValue(a, resp, durationMs)
	passed, diag := compareValues(actual, a.Expected, a.Operator)

	result := a
	result.Actual = actual
	result.Passed = &passed
	result.Error = diag
	return result
}

func observedValue(a Assertion, resp *StepResponse, durationMs int64) interface{} {
	switch a.Source {
	case "status":
		return float64(resp.Status)
	case "duration":
		return float64(durationMs)
	case "header":
		if a.Path == "" {
			return nil
		}
		if value, ok := headerLookup(resp.Headers, a.Path); ok {
			return value
		}
		return nil
	case "body":
		if a.Path == "" {
			return resp.Body
		}
		if value, ok := jsonpath.Lookup(resp.Body, a.Path); ok {
			return value
		}
		return nil
	default:
		return nil
	}
}

// compareValues decides pass/fail for one operator and produces a
// diagnostic on failure.
func compareValues(actual, expected interface{}, operator string) (bool, string) {
	switch operator {
	case OpEquals:
		if jsonEqual(actual, expected) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %s but got %s", renderJSON(expected), renderJSON(actual))

	case OpNotEquals:
		if !jsonEqual(actual, expected) {
			return true, ""
		}
		return false, fmt.Sprintf("expected value to not equal %s", renderJSON(expected))

	case OpContains:
		actualStr := coerceString(actual)
		expectedStr := coerceString(expected)
		if strings.Contains(actualStr, expectedStr) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to contain %q", actualStr, expectedStr)

	case OpMatches:
		actualStr := coerceString(actual)
		pattern := coerceString(expected)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid pattern %q: %v", pattern, err)
		}
		if re.MatchString(actualStr) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to match pattern %q", actualStr, pattern)

	case OpGreaterThan:
		actualNum := coerceFloat(actual)
		expectedNum := coerceFloat(expected)
		if actualNum > expectedNum {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v to be greater than %v", actualNum, expectedNum)

	case OpLessThan:
		actualNum := coerceFloat(actual)
		expectedNum := coerceFloat(expected)
		if actualNum < expectedNum {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v to be less than %v", actualNum, expectedNum)

	case OpExists:
		if actual != nil {
			return true, ""
		}
		return false, "expected value to exist but got null"

	default:
		return false, fmt.Sprintf("unknown operator: %s", operator)
	}
}

// jsonEqual compares two values structurally after normalizing both
// through a JSON round-trip, so int/float and typed/untyped shapes agree.
func jsonEqual(a, b interface{}) bool {
	return reflect.DeepEqual(normalizeJSON(a), normalizeJSON(b))
}

func normalizeJSON(value interface{}) interface{} {
	encoded, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var normalized interface{}
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return value
	}
	return normalized
}

func renderJSON(value interface{}) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

func coerceString(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return renderJSON(value)
}

func coerceFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
