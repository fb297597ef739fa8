// Package jsonpath navigates JSON values along dot-separated paths.
//
// The path grammar is deliberately small: segments are separated by ".",
// and a segment is either a key ("user"), a key with an index ("items[0]"),
// or a bare index ("[0]"). There are no wildcards, slices or filters.
package jsonpath

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var indexRe = regexp.MustCompile(`\[(\d+)\]`)

// Lookup navigates a decoded JSON value along path.
//
// It returns the value found at the path and true, or nil and false if any
// traversal step is absent or of the wrong kind. Numbers come back as
// float64, objects as map[string]interface{}, arrays as []interface{} —
// the same shapes encoding/json produces.
func Lookup(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, doc != nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, false
	}

	return LookupRaw(string(raw), path)
}

// LookupRaw navigates a raw JSON document along path.
func LookupRaw(raw, path string) (interface{}, bool) {
	if raw == "" || path == "" {
		return nil, false
	}

	result := gjson.Get(raw, toGjsonPath(path))
	if !result.Exists() {
		return nil, false
	}

	return result.Value(), true
}

// toGjsonPath rewrites the bracketed index form into gjson's dotted form:
// "items[0].name" becomes "items.0.name", "[2]" becomes "2".
func toGjsonPath(path string) string {
	converted := indexRe.ReplaceAllString(path, ".$1")
	converted = strings.TrimPrefix(converted, ".")
	return converted
}
