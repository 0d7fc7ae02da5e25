// Package extract turns untrusted LLM output into typed data. Every entry
// point degrades to an explicit failure marker instead of returning an error:
// the caller decides materiality.
package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/wonny/quorum/backend/internal/schema"
)

// rawTextLimit caps how much of the offending input is echoed back.
const rawTextLimit = 500

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// JSON extracts a JSON object from text using fallback strategies, in order:
//  1. Parse the whole text directly.
//  2. Parse the inner content of the first fenced code block.
//  3. Parse the first balanced {...} or [...] region.
//
// If everything fails the result is {"error": ..., "raw_text": ...}.
// A top-level array is wrapped under "items" so the contract stays a mapping.
func JSON(text string) map[string]interface{} {
	if strings.TrimSpace(text) == "" {
		return failure("empty input", text)
	}

	// Strategy 1: direct parse
	if v, ok := tryParse(text); ok {
		return asObject(v, text)
	}

	// Strategy 2: fenced code block
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if v, ok := tryParse(m[1]); ok {
			return asObject(v, text)
		}
	}

	// Strategy 3: first balanced bracket region
	for _, open := range []byte{'{', '['} {
		if region, ok := balancedRegion(text, open); ok {
			if v, ok := tryParse(region); ok {
				return asObject(v, text)
			}
		}
	}

	// Strategy 4: explicit failure marker
	return failure("Failed to extract valid JSON from text", text)
}

// JSONWithSchema extracts JSON and validates required fields. Validation
// failures keep the parsed data and attach a "_validation_errors" list.
func JSONWithSchema(text string, fields []schema.Field) map[string]interface{} {
	parsed := JSON(text)
	if _, failed := parsed["error"]; failed {
		return parsed
	}

	var errs []map[string]string
	for _, f := range fields {
		v, ok := parsed[f.Name]
		if !ok || v == nil {
			errs = append(errs, map[string]string{
				"field":   f.Name,
				"message": "missing required field",
			})
			continue
		}
		if !kindMatches(v, f.Kind) {
			errs = append(errs, map[string]string{
				"field":   f.Name,
				"message": "unexpected type",
			})
		}
	}

	if len(errs) > 0 {
		parsed["_validation_errors"] = errs
	}
	return parsed
}

// ParseFloat coerces a value that may be a number, a numeric string
// (possibly with $, % or thousands separators) or nil into a float.
// Returns def on any failure. Never panics.
func ParseFloat(value interface{}, def float64) float64 {
	switch v := value.(type) {
	case nil:
		return def
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return def
		}
		return f
	case string:
		cleaned := strings.NewReplacer(",", "", "$", "", "%", "").Replace(strings.TrimSpace(v))
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// ParseInt is ParseFloat truncated to int, clamped to [min, max].
func ParseInt(value interface{}, def, min, max int) int {
	n := int(ParseFloat(value, float64(def)))
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// Strings converts an interface slice into its string elements.
// Non-string elements are dropped.
func Strings(value interface{}) []string {
	arr, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func tryParse(text string) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return v, true
	default:
		// Bare scalars parse as JSON but carry no structure
		return nil, false
	}
}

func asObject(v interface{}, original string) map[string]interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return val
	case []interface{}:
		return map[string]interface{}{"items": val}
	default:
		return failure("Failed to extract valid JSON from text", original)
	}
}

// balancedRegion finds the first balanced bracket region starting with open,
// honoring string literals and escapes.
func balancedRegion(text string, open byte) (string, bool) {
	var close byte
	if open == '{' {
		close = '}'
	} else {
		close = ']'
	}

	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func kindMatches(v interface{}, kind schema.Kind) bool {
	switch kind {
	case schema.KindString:
		_, ok := v.(string)
		return ok
	case schema.KindNumber:
		switch v.(type) {
		case float64, json.Number:
			return true
		}
		return false
	case schema.KindArray:
		_, ok := v.([]interface{})
		return ok
	default:
		return false
	}
}

func failure(msg, text string) map[string]interface{} {
	raw := text
	if len(raw) > rawTextLimit {
		raw = raw[:rawTextLimit]
	}
	return map[string]interface{}{
		"error":    msg,
		"raw_text": raw,
	}
}
