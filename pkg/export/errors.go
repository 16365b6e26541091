package export

import "fmt"

// AttributeNotFoundError reports a requested attribute that is absent from
// a log header. It aborts the export.
type AttributeNotFoundError struct {
	Attribute string
	// Page is the 0-based page index, -1 outside an export
	Page int
	// Record is the 0-based index within the page, -1 outside an export
	Record int
}

// Error implements the error interface.
func (e *AttributeNotFoundError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("attribute %q not found in log header", e.Attribute)
	}
	return fmt.Sprintf("attribute %q not found in record %d of page %d", e.Attribute, e.Record, e.Page)
}
