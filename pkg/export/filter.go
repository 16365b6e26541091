package export

import (
	"strings"

	"github.com/Sternrassler/dsis-recall-client/pkg/header"
)

// Filter decides whether a header is exported. It sees the full header,
// before projection.
type Filter func(h header.Header) bool

// NameContains keeps headers whose attribute contains substr. Headers
// without the attribute are dropped.
func NameContains(attribute, substr string) Filter {
	return func(h header.Header) bool {
		v, ok := h[attribute]
		return ok && strings.Contains(v, substr)
	}
}

// Project returns the values of attributes in h, in order.
func Project(h header.Header, attributes []string) ([]string, error) {
	row := make([]string, len(attributes))
	for i, name := range attributes {
		v, ok := h[name]
		if !ok {
			return nil, &AttributeNotFoundError{Attribute: name, Page: -1, Record: -1}
		}
		row[i] = v
	}
	return row, nil
}
