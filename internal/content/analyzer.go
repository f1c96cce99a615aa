package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

const initialStateMarker = "window.__INITIAL_STATE__"

// Parse loads markup into a goquery document.
func Parse(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

// FromMarkup tries JSON-LD first, then the embedded initial state. A zero
// Category with a nil error means the markup does not name the category.
func FromMarkup(markup string) (catalog.Category, error) {
	if doc, err := Parse(markup); err == nil {
		if c, ok := FromJSONLD(doc); ok {
			return c, nil
		}
	}
	return FromInitialState(markup)
}

// FromInitialState decodes the object assigned to window.__INITIAL_STATE__ and
// reads its "category" (or "catalog") entry.
func FromInitialState(markup string) (catalog.Category, error) {
	idx := strings.Index(markup, initialStateMarker)
	if idx < 0 {
		return catalog.Category{}, nil
	}
	rest := markup[idx+len(initialStateMarker):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return catalog.Category{}, nil
	}

	var state map[string]any
	dec := json.NewDecoder(strings.NewReader(rest[eq+1:]))
	dec.UseNumber()
	if err := dec.Decode(&state); err != nil {
		return catalog.Category{}, fmt.Errorf("%w: initial state: %v", catalog.ErrMalformedPayload, err)
	}
	for _, key := range []string{"category", "catalog"} {
		if m, ok := state[key].(map[string]any); ok {
			if c := categoryFromMap(m); c.Name != "" {
				return c, nil
			}
		}
	}
	return catalog.Category{}, nil
}

// FromAPIBody reads a category descriptor from an endpoint body. With
// envelope set the body must be {"success": true, "data": {...}}.
func FromAPIBody(body []byte, envelope bool) (catalog.Category, error) {
	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return catalog.Category{}, fmt.Errorf("%w: category body: %v", catalog.ErrMalformedPayload, err)
	}
	if envelope {
		if success, _ := payload["success"].(bool); !success {
			return catalog.Category{}, nil
		}
		data, ok := payload["data"].(map[string]any)
		if !ok {
			return catalog.Category{}, nil
		}
		payload = data
	}
	c := categoryFromMap(payload)
	if c.Name == "" {
		return catalog.Category{}, nil
	}
	return c, nil
}

// FromHeading returns the page's first h1, else its <title> up to the first "|".
func FromHeading(doc *goquery.Document) string {
	if h1 := collapse(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	title := doc.Find("title").First().Text()
	if i := strings.Index(title, "|"); i >= 0 {
		title = title[:i]
	}
	return collapse(title)
}

func categoryFromMap(m map[string]any) catalog.Category {
	c := catalog.Category{
		ID:          firstText(m, "id", "category_id", "@id"),
		Name:        firstText(m, "name", "title"),
		Description: firstText(m, "description"),
		URL:         firstText(m, "url", "link"),
	}
	for _, key := range []string{"productCount", "products_count", "product_count", "total", "numberOfItems"} {
		if n, ok := intField(m, key); ok {
			c.ProductCount = n
			break
		}
	}
	return c
}

func firstText(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := textField(m, k); s != "" {
			return s
		}
	}
	return ""
}

func textField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return collapse(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
