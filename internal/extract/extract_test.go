package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quorum/backend/internal/schema"
)

func TestJSONDirectParse(t *testing.T) {
	result := JSON(`{"sentiment":"BULLISH","confidence":85}`)

	assert.Equal(t, "BULLISH", result["sentiment"])
	assert.Equal(t, float64(85), result["confidence"])
	_, failed := result["error"]
	assert.False(t, failed)
}

func TestJSONFencedBlock(t *testing.T) {
	text := "Here is my analysis:\n```json\n{\"sentiment\":\"BULLISH\",\"confidence\":85}\n```\nHope that helps."
	result := JSON(text)

	assert.Equal(t, "BULLISH", result["sentiment"])
	assert.Equal(t, float64(85), result["confidence"])
}

func TestJSONFencedBlockNoLanguageTag(t *testing.T) {
	text := "```\n{\"risk_score\": 7}\n```"
	result := JSON(text)

	assert.Equal(t, float64(7), result["risk_score"])
}

func TestJSONEmbeddedObject(t *testing.T) {
	text := `The verdict is as follows {"final_verdict": "HOLD", "nested": {"a": 1}} end of message`
	result := JSON(text)

	assert.Equal(t, "HOLD", result["final_verdict"])
	nested, ok := result["nested"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), nested["a"])
}

func TestJSONBracesInsideStrings(t *testing.T) {
	text := `prefix {"note": "a } inside a string", "n": 2} suffix`
	result := JSON(text)

	assert.Equal(t, "a } inside a string", result["note"])
	assert.Equal(t, float64(2), result["n"])
}

func TestJSONTopLevelArray(t *testing.T) {
	result := JSON(`[{"score": 8}, {"score": 5}]`)

	items, ok := result["items"].([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestJSONGarbage(t *testing.T) {
	result := JSON("no json here")

	assert.Contains(t, result, "error")
	assert.Equal(t, "no json here", result["raw_text"])
}

func TestJSONTruncatesRawText(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	result := JSON(string(long))

	assert.Len(t, result["raw_text"], 500)
}

// Idempotence: feeding already-valid JSON through any strategy yields the
// same record as the direct parse.
func TestJSONIdempotent(t *testing.T) {
	direct := `{"sentiment":"NEUTRAL","confidence":50,"key_arguments":["a"],"risk_score":5}`
	fenced := "```json\n" + direct + "\n```"
	embedded := "noise before " + direct + " noise after"

	want := JSON(direct)
	assert.Equal(t, want, JSON(fenced))
	assert.Equal(t, want, JSON(embedded))
}

func TestJSONWithSchemaValid(t *testing.T) {
	text := `{"sentiment":"BEARISH","confidence":70,"key_arguments":["debt"],"risk_score":8}`
	result := JSONWithSchema(text, schema.OpinionFields)

	_, hasErrors := result["_validation_errors"]
	assert.False(t, hasErrors)
}

func TestJSONWithSchemaMissingFields(t *testing.T) {
	text := `{"sentiment":"BEARISH"}`
	result := JSONWithSchema(text, schema.OpinionFields)

	// Parsed data is kept
	assert.Equal(t, "BEARISH", result["sentiment"])

	errs, ok := result["_validation_errors"].([]map[string]string)
	require.True(t, ok)
	assert.Len(t, errs, 3) // confidence, key_arguments, risk_score
}

func TestJSONWithSchemaWrongType(t *testing.T) {
	text := `{"sentiment":42,"confidence":70,"key_arguments":["x"],"risk_score":3}`
	result := JSONWithSchema(text, schema.OpinionFields)

	errs, ok := result["_validation_errors"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "sentiment", errs[0]["field"])
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		def   float64
		want  float64
	}{
		{"float", 3.14, 0, 3.14},
		{"int", 42, 0, 42},
		{"nil", nil, 1.5, 1.5},
		{"string", "2.5", 0, 2.5},
		{"dollar string", "$1,234.50", 0, 1234.50},
		{"percent string", "12.5%", 0, 12.5},
		{"garbage string", "N/A", 9, 9},
		{"bool", true, 7, 7},
		{"json number", json.Number("88"), 0, 88},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFloat(tt.value, tt.def))
		})
	}
}

func TestParseIntClamps(t *testing.T) {
	assert.Equal(t, 100, ParseInt(float64(250), 0, 0, 100))
	assert.Equal(t, 0, ParseInt(float64(-5), 0, 0, 100))
	assert.Equal(t, 50, ParseInt("50", 0, 0, 100))
	assert.Equal(t, 5, ParseInt(nil, 5, 0, 10))
}

func TestStrings(t *testing.T) {
	in := []interface{}{"a", 1, "b", nil}
	assert.Equal(t, []string{"a", "b"}, Strings(in))
	assert.Nil(t, Strings("not an array"))
}
