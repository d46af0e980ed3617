// Package template pulls typed fields out of raw JSON without fully
// unmarshaling it, the "pluck the field you need" idiom the bus reactor
// applies to every pipeline.Message payload.
package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Extract extracts values from JSON using JSONPath expressions.
// Paths use JSONPath syntax ($.foo.bar) which is converted to gjson format.
// Array access: $.items[0].id -> items.0.id
// Returns all errors joined if multiple extractions fail.
func Extract(body []byte, rules map[string]string) (map[string]any, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON payload")
	}

	result := make(map[string]any, len(rules))
	var errs []error

	for varName, jsonPath := range rules {
		path := convertJSONPath(jsonPath)
		value := gjson.GetBytes(body, path)

		if !value.Exists() {
			errs = append(errs, fmt.Errorf("path %q not found for variable %q", jsonPath, varName))
			continue
		}

		result[varName] = value.Value()
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

// convertJSONPath converts JSONPath syntax to gjson path format.
// $.foo.bar -> foo.bar
// $.items[0].id -> items.0.id
// $.data[*].name -> data.#.name
func convertJSONPath(path string) string {
	// Remove leading $. or $
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	} else if strings.HasPrefix(path, "$") {
		path = path[1:]
	}

	// Convert array access [n] to .n
	// Convert [*] to .#
	var result strings.Builder
	i := 0
	for i < len(path) {
		if path[i] == '[' {
			// Find closing bracket
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				content := path[i+1 : j]
				if content == "*" {
					result.WriteString(".#")
				} else {
					result.WriteByte('.')
					result.WriteString(content)
				}
				i = j + 1
				continue
			}
		}
		result.WriteByte(path[i])
		i++
	}

	return result.String()
}

// StringField reads a flat field of a JSON payload as a string, returning ""
// if the field is absent. Bus message payloads use flat gjson paths
// directly (no "$." prefix), unlike Extract's JSONPath rule set.
func StringField(payload []byte, path string) string {
	return gjson.GetBytes(payload, path).String()
}

// IntField reads a flat field of a JSON payload as an integer, returning 0
// if the field is absent.
func IntField(payload []byte, path string) int64 {
	return gjson.GetBytes(payload, path).Int()
}

// HasField reports whether path exists in payload.
func HasField(payload []byte, path string) bool {
	return gjson.GetBytes(payload, path).Exists()
}

// StringArrayField reads a flat array field of a JSON payload as a slice of
// strings, returning nil if the field is absent or not an array.
func StringArrayField(payload []byte, path string) []string {
	arr := gjson.GetBytes(payload, path).Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		out[i] = v.String()
	}
	return out
}
