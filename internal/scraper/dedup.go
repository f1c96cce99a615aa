package scraper

import "github.com/baxromumarov/shelf-harvester/internal/catalog"

// DedupKey is the composite identity of a product. Name is part of the key
// because synthesized ids are not guaranteed to be unique per item.
func DedupKey(p catalog.Product) string {
	return p.ID + "_" + p.Name
}

// Dedup keeps the first occurrence of every key, preserving order.
func Dedup(items []catalog.Product) []catalog.Product {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]catalog.Product, 0, len(items))
	for _, p := range items {
		key := DedupKey(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
