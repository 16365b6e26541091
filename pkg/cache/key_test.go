package cache

import (
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	const root = "https://dsis.example/recall"

	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "service root",
			key: CacheKey{
				Model: "recall",
				Root:  root,
				Query: "$format=json",
			},
			want: "dsis:recall:https%3A//dsis.example/recall::::$format=json",
		},
		{
			name: "entity by id",
			key: CacheKey{
				Model:   "recall",
				Root:    root,
				Project: "NORWAY_WELLDB",
				Entity:  "LOG",
				ID:      "1234",
			},
			want: "dsis:recall:https%3A//dsis.example/recall:NORWAY_WELLDB:LOG:1234",
		},
		{
			name: "id containing slash",
			key: CacheKey{
				Model:   "recall",
				Root:    root,
				Project: "NORWAY_WELLDB",
				Entity:  "WELL",
				ID:      "2/1",
				Query:   "$format=json",
			},
			want: "dsis:recall:https%3A//dsis.example/recall:NORWAY_WELLDB:WELL:2/1:$format=json",
		},
		{
			name: "id containing colon and percent",
			key: CacheKey{
				Model:   "recall",
				Root:    root,
				Project: "NORWAY_WELLDB",
				Entity:  "WELL",
				ID:      "a:b%c",
			},
			want: "dsis:recall:https%3A//dsis.example/recall:NORWAY_WELLDB:WELL:a%3Ab%25c",
		},
		{
			name: "query options sorted",
			key: CacheKey{
				Model:   "RecallCommonModel",
				Root:    root,
				Project: "NORWAY_WELLDB",
				Entity:  "Well",
				ID:      "2/1",
				Query:   "$format=json&$expand=WellLog",
			},
			want: "dsis:RecallCommonModel:https%3A//dsis.example/recall:NORWAY_WELLDB:Well:2/1:$expand=WellLog:$format=json",
		},
		{
			name: "unparseable query kept verbatim",
			key: CacheKey{
				Model: "recall",
				Query: "a=%zz",
			},
			want: "dsis:recall:::::a=%25zz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheKey_DistinctFields(t *testing.T) {
	tests := []struct {
		name string
		a, b CacheKey
	}{
		{
			name: "different service roots",
			a:    CacheKey{Model: "recall", Root: "https://qa.example/recall", Project: "P", Entity: "WELL", ID: "2/1", Query: "$format=json"},
			b:    CacheKey{Model: "recall", Root: "https://prod.example/recall", Project: "P", Entity: "WELL", ID: "2/1", Query: "$format=json"},
		},
		{
			name: "colon moved between entity and id",
			a:    CacheKey{Model: "recall", Project: "P", Entity: "WELL", ID: "a:b"},
			b:    CacheKey{Model: "recall", Project: "P", Entity: "WELL:a", ID: "b"},
		},
		{
			name: "empty project shifts fields",
			a:    CacheKey{Model: "recall", Project: "", Entity: "P", ID: "LOG"},
			b:    CacheKey{Model: "recall", Project: "P", Entity: "LOG"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.String() == tt.b.String() {
				t.Errorf("keys collide: %q", tt.a.String())
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Model:   "recall",
		Project: "NORWAY_WELLDB",
		Entity:  "WELL",
		ID:      "2/1",
		Query:   "$format=json&$expand=LOG&$select=NAME",
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if result := key.String(); result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}

	reordered := key
	reordered.Query = "$select=NAME&$expand=LOG&$format=json"
	if reordered.String() != first {
		t.Errorf("query order changed key: %v vs %v", reordered.String(), first)
	}
}
