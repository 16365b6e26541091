package cache

import (
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached DSIS response.
type CacheKey struct {
	// Model distinguishes the native and common model vocabularies
	Model string

	// Root is the service root URL the response was fetched from
	Root string

	// Project is the DSIS project (e.g. "NORWAY_WELLDB"); empty for the service root
	Project string

	// Entity is the entity set name as sent on the wire (e.g. "LOG", "WellLog")
	Entity string

	// ID is the entity key for by-id lookups
	ID string

	// Query is the raw OData query string
	Query string
}

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// String generates a deterministic cache key string.
// Format: dsis:model:root:project:entity:id[:opt1=val1:opt2=val2]
//
// Every field keeps its position even when empty, and '%' and ':' inside a
// field are percent-encoded, so distinct keys never render alike.
//
// Example:
//
//	dsis:recall:https%3A//dsis.example/recall:NORWAY_WELLDB:WELL:2/1:$expand=LOG:$format=json
func (k CacheKey) String() string {
	parts := []string{"dsis"}
	for _, part := range []string{k.Model, k.Root, k.Project, k.Entity, k.ID} {
		parts = append(parts, segmentEscaper.Replace(part))
	}

	// Query options sorted for determinism
	if k.Query != "" {
		values, err := url.ParseQuery(k.Query)
		if err != nil {
			parts = append(parts, segmentEscaper.Replace(k.Query))
			return strings.Join(parts, ":")
		}

		queryKeys := make([]string, 0, len(values))
		for key := range values {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, segmentEscaper.Replace(key+"="+values.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
