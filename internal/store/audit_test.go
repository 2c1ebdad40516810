package store

import (
	"testing"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAuditPayload(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		scores  string
		wantErr string
	}{
		{"both present", `{"risk_profile":"moderate"}`, `{"risk_profile":0.8}`, ""},
		{"empty columns", "", "", ""},
		{"corrupt summary", `{"risk_profile":`, `{"risk_profile":0.8}`, "decode output summary"},
		{"corrupt scores", `{}`, `{"risk_profile":"high"}`, "decode confidence scores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := domain.AuditRecord{ID: uuid.New()}
			err := decodeAuditPayload(&r, []byte(tt.summary), []byte(tt.scores))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Contains(t, err.Error(), r.ID.String())
				return
			}
			require.NoError(t, err)
			if tt.summary != "" {
				assert.Equal(t, "moderate", r.OutputSummary["risk_profile"])
				assert.InDelta(t, 0.8, r.ConfidenceScores["risk_profile"], 1e-9)
			}
		})
	}
}
