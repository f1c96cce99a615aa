package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

func TestDecodeBytes_KeepsKeyOrder(t *testing.T) {
	n, err := DecodeBytes([]byte(`{"z": 1, "a": [true, null], "m": {"k": "v"}}`))
	require.NoError(t, err)
	require.Equal(t, KindMapping, n.Kind)

	var keys []string
	for _, f := range n.Fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	a, ok := n.Get("a")
	require.True(t, ok)
	assert.Equal(t, KindSequence, a.Kind)
	assert.Len(t, a.Items, 2)
}

func TestDecodeBytes_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"truncated", `{"products": [`},
		{"html page", `<!doctype html><html></html>`},
		{"trailing data", `{"a": 1} {"b": 2}`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tt.body))
			assert.ErrorIs(t, err, catalog.ErrMalformedPayload)
		})
	}
}

func TestFindCandidates(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		names []string
	}{
		{
			name:  "scalar root",
			body:  `42`,
			names: nil,
		},
		{
			name:  "no product-like arrays",
			body:  `{"meta": {"total": 3}, "tags": ["a", "b"]}`,
			names: nil,
		},
		{
			name:  "guard blocks unrelated keys",
			body:  `{"data": {"list": [{"name": "Сыр", "price": 300}]}}`,
			names: nil,
		},
		{
			name:  "nested through guarded keys",
			body:  `{"productGroups": [{"items": [{"name": "Сыр", "id": 1}, {"name": "Масло", "sku": "b-2"}]}]}`,
			names: []string{"Сыр", "Масло"},
		},
		{
			name:  "guard is case-insensitive",
			body:  `{"ProductList": [{"title": "Кефир", "current_price": "75"}]}`,
			names: []string{"Кефир"},
		},
		{
			name:  "root sequence",
			body:  `[{"name": "Чай", "price": 120}, {"label": "banner"}]`,
			names: []string{"Чай"},
		},
		{
			name:  "empty mapping",
			body:  `{}`,
			names: nil,
		},
		{
			name:  "empty sequence",
			body:  `[]`,
			names: nil,
		},
		{
			name:  "null root",
			body:  `null`,
			names: nil,
		},
		{
			name:  "deeply nested mappings",
			body:  strings.Repeat(`{"items":`, 5000) + `[]` + strings.Repeat(`}`, 5000),
			names: nil,
		},
		{
			name:  "deeply nested sequences",
			body:  strings.Repeat(`[`, 5000) + strings.Repeat(`]`, 5000),
			names: nil,
		},
		{
			name:  "zero price and no id is not a product",
			body:  `{"items": [{"name": "Подарок", "price": 0}]}`,
			names: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := DecodeBytes([]byte(tt.body))
			require.NoError(t, err)

			var names []string
			for _, item := range FindCandidates(root) {
				if v, ok := item["name"]; ok {
					names = append(names, v.(string))
				} else {
					names = append(names, item["title"].(string))
				}
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestFindCandidates_ZeroNode(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Empty(t, FindCandidates(Node{}))
	})
}

func TestSearcher_CustomGuard(t *testing.T) {
	root := FromValue(map[string]any{
		"data": map[string]any{
			"list": []any{map[string]any{"name": "Сыр", "price": 300.0}},
		},
	})

	everything := Searcher{Guard: func(string) bool { return true }}
	got := everything.Find(root)
	require.Len(t, got, 1)
	assert.Equal(t, "Сыр", got[0]["name"])
}

func TestFromValue_SortsKeys(t *testing.T) {
	n := FromValue(map[string]any{"b": 1, "a": 2, "c": 3})
	require.Len(t, n.Fields, 3)
	assert.Equal(t, "a", n.Fields[0].Key)
	assert.Equal(t, "b", n.Fields[1].Key)
	assert.Equal(t, "c", n.Fields[2].Key)
}
