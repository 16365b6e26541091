package client

import (
	"fmt"

	json "github.com/goccy/go-json"
)

const hexDigits = "0123456789abcdef"

// escapeControlChars rewrites raw control characters (U+0000 to U+001F)
// inside JSON string literals as \u00XX escapes. DSIS returns free-text
// header fields with embedded tabs and newlines, which strict decoders reject.
// Whitespace between tokens is left alone.
func escapeControlChars(data []byte) []byte {
	clean := true
	for _, b := range data {
		if b < 0x20 {
			clean = false
			break
		}
	}
	if clean {
		return data
	}

	out := make([]byte, 0, len(data)+32)
	inString, escaped := false, false
	for _, b := range data {
		switch {
		case escaped:
			escaped = false
			out = append(out, b)
		case inString && b == '\\':
			escaped = true
			out = append(out, b)
		case b == '"':
			inString = !inString
			out = append(out, b)
		case inString && b < 0x20:
			out = append(out, '\\', 'u', '0', '0', hexDigits[b>>4], hexDigits[b&0xf])
		default:
			out = append(out, b)
		}
	}
	return out
}

// decodeLenient decodes a JSON object, tolerating control characters in strings.
func decodeLenient(data []byte) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal(escapeControlChars(data), &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return v, nil
}

// records extracts the `value` array of an OData collection response.
func records(body map[string]any) ([]map[string]any, error) {
	raw, ok := body["value"]
	if !ok {
		return nil, fmt.Errorf("%w: no value array", ErrMalformedResponse)
	}
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: value is %T, want array", ErrMalformedResponse, raw)
	}
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: value[%d] is %T, want object", ErrMalformedResponse, i, item)
		}
		out = append(out, record)
	}
	return out, nil
}
