package guard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/psychograph/internal/domain"
)

// ValidationError lists every schema violation found in one response.
type ValidationError struct {
	Schema     string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOutput
}

// Retryable is false: the same prompt is expected to produce the same shape.
func (e *ValidationError) Retryable() bool {
	return false
}

// ParseOutput strips markdown code fences and decodes a JSON object.
func ParseOutput(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, &ValidationError{Schema: "json", Violations: []string{"response is not a JSON object: " + err.Error()}}
	}
	return out, nil
}

// Validate checks output against schema: required paths exist, and every
// declared field present has the right type, bounds and enum membership.
func (g *PromptGuard) Validate(output map[string]any, schema *domain.OutputSchema) error {
	if schema == nil {
		return nil
	}

	var violations []string
	for _, path := range schema.Required {
		if _, ok := Lookup(output, path); !ok {
			violations = append(violations, path+": required")
		}
	}

	paths := make([]string, 0, len(schema.Fields))
	for p := range schema.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		v, ok := Lookup(output, path)
		if !ok {
			continue
		}
		if msg := checkField(v, schema.Fields[path]); msg != "" {
			violations = append(violations, path+": "+msg)
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Schema: schema.Name, Violations: violations}
	}
	return nil
}

// Lookup resolves a dotted path inside nested JSON objects.
func Lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func checkField(v any, spec domain.FieldSpec) string {
	switch spec.Type {
	case domain.FieldString:
		s, ok := v.(string)
		if !ok {
			return "expected string"
		}
		if len(spec.Enum) > 0 && !contains(spec.Enum, s) {
			return fmt.Sprintf("%q not in %v", s, spec.Enum)
		}
	case domain.FieldNumber:
		n, ok := v.(float64)
		if !ok {
			return "expected number"
		}
		if spec.Min != nil && n < *spec.Min {
			return fmt.Sprintf("%v below minimum %v", n, *spec.Min)
		}
		if spec.Max != nil && n > *spec.Max {
			return fmt.Sprintf("%v above maximum %v", n, *spec.Max)
		}
	case domain.FieldBool:
		if _, ok := v.(bool); !ok {
			return "expected boolean"
		}
	case domain.FieldArray:
		if _, ok := v.([]any); !ok {
			return "expected array"
		}
	case domain.FieldObject:
		if _, ok := v.(map[string]any); !ok {
			return "expected object"
		}
	default:
		return fmt.Sprintf("unknown field type %q", spec.Type)
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Summarize describes the structure of a decoded response as path -> type,
// without any of its values.
func Summarize(output map[string]any) map[string]any {
	out := make(map[string]any)
	summarizeInto(out, "", output)
	return out
}

func summarizeInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			summarizeInto(out, path, t)
		case []any:
			out[path] = fmt.Sprintf("array[%d]", len(t))
		default:
			out[path] = jsonType(v)
		}
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return "unknown"
}
