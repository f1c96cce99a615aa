package scraper

// listKeys are the top-level keys known endpoints put product arrays under.
var listKeys = []string{"products", "items", "data"}

// envelopeKeys wrap the real payload one level down, e.g. {"data": {"products": [...]}}.
var envelopeKeys = []string{"data", "result", "payload"}

// ExtractPayload pulls product-like records out of an endpoint response. Known
// shapes are tried first; unknown shapes fall back to the recursive search.
func ExtractPayload(root Node, source string) Outcome {
	return Outcome{Items: payloadItems(root), Source: source}
}

func payloadItems(root Node) []RawItem {
	switch root.Kind {
	case KindSequence:
		return mappings(root)
	case KindMapping:
	default:
		return nil
	}

	if items := knownList(root); len(items) > 0 {
		return items
	}
	for _, key := range envelopeKeys {
		inner, ok := root.Get(key)
		if !ok || inner.Kind != KindMapping {
			continue
		}
		if items := knownList(inner); len(items) > 0 {
			return items
		}
	}
	if items := firstProductArray(root); len(items) > 0 {
		return items
	}
	return FindCandidates(root)
}

func knownList(n Node) []RawItem {
	for _, key := range listKeys {
		v, ok := n.Get(key)
		if !ok || v.Kind != KindSequence {
			continue
		}
		if items := mappings(v); len(items) > 0 {
			return items
		}
	}
	return nil
}

// firstProductArray returns the first non-empty array whose leading element
// carries an id or a name.
func firstProductArray(n Node) []RawItem {
	for _, f := range n.Fields {
		if f.Value.Kind != KindSequence || len(f.Value.Items) == 0 {
			continue
		}
		first := f.Value.Items[0]
		if first.Kind == KindMapping && hasAny(first, "id", "product_id", "name") {
			return mappings(f.Value)
		}
	}
	return nil
}

func mappings(seq Node) []RawItem {
	var out []RawItem
	for _, item := range seq.Items {
		if item.Kind == KindMapping {
			out = append(out, item.Raw())
		}
	}
	return out
}
