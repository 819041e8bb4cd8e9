package intelligence

import (
	"encoding/json"
	"testing"
)

func TestValidateJSONAgainstSchema(t *testing.T) {
	tests := []struct {
		name    string
		schema  map[string]any
		data    string
		wantErr bool
	}{
		{
			name:   "valid classification",
			schema: ClassificationSchema(),
			data:   `{"document_type":"Passport","visa_category":"H-1B","confidence":0.92,"summary":"ok"}`,
		},
		{
			name:   "classification with null category",
			schema: ClassificationSchema(),
			data:   `{"document_type":"Passport","visa_category":null}`,
		},
		{
			name:    "classification missing document type",
			schema:  ClassificationSchema(),
			data:    `{"confidence":0.9}`,
			wantErr: true,
		},
		{
			name:   "valid analysis",
			schema: AnalysisSchema(),
			data:   `{"completeness_score":85,"is_correct_type":true,"field_confidence":{"name":90}}`,
		},
		{
			name:    "analysis score out of range",
			schema:  AnalysisSchema(),
			data:    `{"completeness_score":130}`,
			wantErr: true,
		},
		{
			name:   "analysis tolerates extra fields",
			schema: AnalysisSchema(),
			data:   `{"completeness_score":70,"model_notes":"extra"}`,
		},
		{
			name:   "valid ocr",
			schema: OCRSchema(),
			data:   `{"transcribed_text":"hello","ocr_confidence":60}`,
		},
		{
			name:    "ocr missing transcription",
			schema:  OCRSchema(),
			data:    `{"ocr_confidence":60}`,
			wantErr: true,
		},
		{
			name:    "not json at all",
			schema:  OCRSchema(),
			data:    `plain text answer`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJSONAgainstSchema(tt.schema, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJSONAgainstSchema() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDateMapFlattensNestedGroups(t *testing.T) {
	payload := `{
		"expiry_date": "2026-01-01",
		"other_dates": {"translation_date": "2025-06-01", "nested": {"issue_date": "2024-01-01"}},
		"count": 3
	}`
	var d DateMap
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"expiry_date":      "2026-01-01",
		"translation_date": "2025-06-01",
		"issue_date":       "2024-01-01",
	}
	if len(d) != len(want) {
		t.Fatalf("DateMap = %v, want %v", d, want)
	}
	for k, v := range want {
		if d[k] != v {
			t.Errorf("DateMap[%q] = %q, want %q", k, d[k], v)
		}
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
