package guard

import (
	"testing"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func testSchema() *domain.OutputSchema {
	return &domain.OutputSchema{
		Name:     "profile",
		Required: []string{"risk.value", "risk.confidence"},
		Fields: map[string]domain.FieldSpec{
			"risk.value":      {Type: domain.FieldString, Enum: []string{"low", "high"}},
			"risk.confidence": {Type: domain.FieldNumber, Min: floatPtr(0), Max: floatPtr(1)},
			"tags":            {Type: domain.FieldArray},
			"ok":              {Type: domain.FieldBool},
		},
	}
}

func TestParseOutput(t *testing.T) {
	out, err := ParseOutput("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["a"])

	_, err = ParseOutput("not json")
	assert.ErrorIs(t, err, ErrInvalidOutput)

	_, err = ParseOutput("[1,2]")
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestValidate(t *testing.T) {
	g := New(Config{})

	tests := []struct {
		name       string
		raw        string
		violations int
	}{
		{"valid", `{"risk":{"value":"low","confidence":0.4},"tags":[],"ok":true}`, 0},
		{"missing required", `{"risk":{"value":"low"}}`, 1},
		{"out of bounds", `{"risk":{"value":"low","confidence":1.5}}`, 1},
		{"bad enum", `{"risk":{"value":"medium","confidence":0.5}}`, 1},
		{"wrong types", `{"risk":{"value":3,"confidence":"x"},"tags":{},"ok":"yes"}`, 4},
		{"parent not object", `{"risk":"low"}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseOutput(tt.raw)
			require.NoError(t, err)

			err = g.Validate(out, testSchema())
			if tt.violations == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Violations, tt.violations)
			assert.False(t, verr.Retryable())
			assert.ErrorIs(t, err, ErrInvalidOutput)
		})
	}
}

func TestSummarize(t *testing.T) {
	out, err := ParseOutput(`{"risk":{"value":"low","confidence":0.4},"tags":["a","b"],"note":null}`)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"risk.value":      "string",
		"risk.confidence": "number",
		"tags":            "array[2]",
		"note":            "null",
	}, Summarize(out))
}
