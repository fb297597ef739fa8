package scanner

import (
	"strconv"
	"strings"
)

// GenerateExample produces a plausible example value for a parameter from
// its type, name and validation rules.
func GenerateExample(paramType, fieldName string, validation []string) interface{} {
	if hasRule(validation, "email") {
		return "user@example.com"
	}
	if hasRule(validation, "url") {
		return "https://example.com"
	}
	if hasRule(validation, "date") {
		return "2024-01-01"
	}

	field := strings.ToLower(fieldName)
	switch {
	case strings.Contains(field, "email"):
		return "user@example.com"
	case strings.Contains(field, "name") && !strings.Contains(field, "username"):
		return "John Doe"
	case strings.Contains(field, "phone"):
		return "+1234567890"
	case strings.Contains(field, "url"), strings.Contains(field, "link"):
		return "https://example.com"
	case strings.Contains(field, "date"), strings.Contains(field, "birth"):
		return "2024-01-01"
	}

	switch paramType {
	case "string":
		length := exampleStringLength(validation)
		return strings.Repeat("x", length)
	case "number", "integer":
		minimum := 1
		if value, ok := ruleValue(validation, "min"); ok && value > 1 {
			minimum = value
		}
		return minimum
	case "boolean":
		return false
	case "array":
		return []interface{}{}
	case "object":
		return map[string]interface{}{}
	default:
		return "example"
	}
}

// GenerateDefault produces the zero-ish default for a type.
func GenerateDefault(paramType string) interface{} {
	switch paramType {
	case "string":
		return ""
	case "number", "integer":
		return 0
	case "boolean":
		return false
	case "array":
		return []interface{}{}
	case "object":
		return map[string]interface{}{}
	default:
		return nil
	}
}

func exampleStringLength(validation []string) int {
	minLen, hasMin := ruleValue(validation, "min")
	if !hasMin {
		minLen, hasMin = ruleValue(validation, "minLength")
	}
	maxLen, hasMax := ruleValue(validation, "max")
	if !hasMax {
		maxLen, hasMax = ruleValue(validation, "maxLength")
	}

	switch {
	case hasMin && hasMax:
		length := minLen
		if length < 5 {
			length = 5
		}
		if length > maxLen {
			length = maxLen
		}
		return length
	case hasMin:
		if minLen > 5 {
			return minLen
		}
		return 5
	case hasMax:
		if maxLen < 20 {
			return maxLen
		}
		return 20
	default:
		return 10
	}
}

func hasRule(rules []string, name string) bool {
	for _, rule := range rules {
		trimmed := strings.TrimSpace(rule)
		if trimmed == name || strings.HasPrefix(trimmed, name+":") {
			return true
		}
	}
	return false
}

func ruleValue(rules []string, name string) (int, bool) {
	for _, rule := range rules {
		if suffix, ok := strings.CutPrefix(strings.TrimSpace(rule), name+":"); ok {
			if value, err := strconv.Atoi(suffix); err == nil {
				return value, true
			}
		}
	}
	return 0, false
}
