// Package header turns raw DSIS LOG records into flat log headers.
//
// All header attributes of a native LOG record live in one string field,
// ExtendedProperties, formatted as "key=value;key=value;...".
package header

import (
	"fmt"
	"strings"
)

// ExtendedPropertiesField is the raw record field holding header attributes.
const ExtendedPropertiesField = "ExtendedProperties"

// Header maps attribute names to values.
type Header map[string]string

// MalformedRecordError reports a record that has no usable
// ExtendedProperties string.
type MalformedRecordError struct {
	// Index of the record within its page, -1 when unknown
	Index  int
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("malformed record %d: field %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record: field %s %s", e.Field, e.Reason)
}

// Parse splits s on ';' and keeps segments that contain '='. Each kept
// segment is split on its first '=' only, so values may contain '='.
// Later duplicates of a key overwrite earlier ones.
func Parse(s string) Header {
	h := make(Header)
	for _, segment := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		h[key] = value
	}
	return h
}

// Normalize extracts the header of one raw record.
func Normalize(record map[string]any) (Header, error) {
	raw, ok := record[ExtendedPropertiesField]
	if !ok {
		return nil, &MalformedRecordError{Index: -1, Field: ExtendedPropertiesField, Reason: "is missing"}
	}
	s, ok := raw.(string)
	if !ok {
		reason := fmt.Sprintf("has type %T, want string", raw)
		if raw == nil {
			reason = "is null"
		}
		return nil, &MalformedRecordError{Index: -1, Field: ExtendedPropertiesField, Reason: reason}
	}
	return Parse(s), nil
}

// NormalizeAll normalizes every record of a page. The first malformed record
// aborts with its index filled in.
func NormalizeAll(records []map[string]any) ([]Header, error) {
	headers := make([]Header, 0, len(records))
	for i, record := range records {
		h, err := Normalize(record)
		if err != nil {
			if malformed, ok := err.(*MalformedRecordError); ok {
				malformed.Index = i
			}
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// Get returns the value of attribute name and whether it is present.
func (h Header) Get(name string) (string, bool) {
	v, ok := h[name]
	return v, ok
}
