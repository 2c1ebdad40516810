package domain

import "context"

type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldBool   FieldType = "boolean"
	FieldArray  FieldType = "array"
	FieldObject FieldType = "object"
)

// FieldSpec constrains one dotted path of a model response.
type FieldSpec struct {
	Type FieldType `json:"type"`
	Min  *float64  `json:"minimum,omitempty"`
	Max  *float64  `json:"maximum,omitempty"`
	Enum []string  `json:"enum,omitempty"`
}

// OutputSchema is the declared shape of a model response. Paths use "."
// to descend into nested objects.
type OutputSchema struct {
	Name     string               `json:"name"`
	Required []string             `json:"required"`
	Fields   map[string]FieldSpec `json:"fields"`
}

// LLMClient is the single opaque provider call. It is treated as untrusted,
// slow and fallible.
type LLMClient interface {
	InvokeModel(ctx context.Context, prompt string, schema *OutputSchema) (string, error)
	Model() string
}
