package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDocumentsPass(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		doc    string
	}{
		{"trend list", TrendList, `{"trends": [{"topic": "ai", "summary": "s", "source_url": "https://x", "score": 0.5}]}`},
		{"empty trend list", TrendList, `{"trends": []}`},
		{"draft list", DraftList, `{"drafts": [{"title": "t", "body": "b", "hashtags": ["#x"], "format": "linkedin_post"}]}`},
		{"review list", ReviewList, `{"reviews": [{"approved": false, "score": 0.1, "feedback": "no"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidateJSONString(tt.schema, tt.doc))
		})
	}
}

func TestInvalidDocumentsFail(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		doc    string
	}{
		{"score out of range", TrendList, `{"trends": [{"topic": "ai", "score": 1.5}]}`},
		{"missing topic", TrendList, `{"trends": [{"score": 0.5}]}`},
		{"empty draft list", DraftList, `{"drafts": []}`},
		{"draft missing body", DraftList, `{"drafts": [{"title": "t"}]}`},
		{"review missing approved", ReviewList, `{"reviews": [{"score": 0.5}]}`},
		{"unexpected field", ReviewList, `{"reviews": [{"approved": true, "score": 0.5, "rating": "A"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONString(tt.schema, tt.doc)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestMalformedDocumentIsValidationError(t *testing.T) {
	err := ValidateJSONString(TrendList, `{"trends": [`)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestBrokenSchemaIsLoadError(t *testing.T) {
	err := ValidateJSONString(`{"type": 42}`, `{}`)
	var le *SchemaLoadError
	require.ErrorAs(t, err, &le)
}
