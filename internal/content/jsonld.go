package content

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

// listingTypes are schema.org types that describe a listing page.
var listingTypes = map[string]bool{
	"CollectionPage": true,
	"ItemList":       true,
	"ProductGroup":   true,
	"OfferCatalog":   true,
	"WebPage":        true,
}

// FromJSONLD reads category metadata from the page's JSON-LD blocks. Listing
// types win over any other named node.
func FromJSONLD(doc *goquery.Document) (catalog.Category, bool) {
	var fallback map[string]any
	var found catalog.Category
	ok := false

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return true
		}
		for _, node := range jsonLDNodes(payload) {
			if textField(node, "name") == "" {
				continue
			}
			if isListingType(node["@type"]) {
				found, ok = categoryFromMap(node), true
				return false
			}
			if fallback == nil {
				fallback = node
			}
		}
		return true
	})

	if ok {
		return found, true
	}
	if fallback != nil {
		return categoryFromMap(fallback), true
	}
	return catalog.Category{}, false
}

// jsonLDNodes flattens top-level arrays and @graph containers.
func jsonLDNodes(payload any) []map[string]any {
	var out []map[string]any
	switch t := payload.(type) {
	case map[string]any:
		out = append(out, t)
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				out = append(out, jsonLDNodes(item)...)
			}
		}
	case []any:
		for _, item := range t {
			out = append(out, jsonLDNodes(item)...)
		}
	}
	return out
}

func isListingType(t any) bool {
	switch v := t.(type) {
	case string:
		return listingTypes[v]
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && listingTypes[s] {
				return true
			}
		}
	}
	return false
}
