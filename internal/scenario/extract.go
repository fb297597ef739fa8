package scenario

import (
	"strings"

	"github.com/phanngoc/lookapi/pkg/jsonpath"
)

// ExtractValue pulls a value out of a response according to the extractor's
// source and path, falling back to the extractor's default (or nil) when
// the target is absent.
func ExtractValue(e Extractor, resp *StepResponse) interface{} {
	switch e.Source {
	case "status":
		return float64(resp.Status)
	case "header":
		if value, ok := headerLookup(resp.Headers, e.Path); ok {
			return value
		}
		return e.DefaultValue
	case "body":
		if value, ok := jsonpath.Lookup(resp.Body, e.Path); ok {
			return value
		}
		return e.DefaultValue
	default:
		return e.DefaultValue
	}
}

// headerLookup matches header names case-insensitively; recorded responses
// may carry either original or lowercased keys.
func headerLookup(headers map[string]string, name string) (string, bool) {
	if value, ok := headers[name]; ok {
		return value, true
	}
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return "", false
}
