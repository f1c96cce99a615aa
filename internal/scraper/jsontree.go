package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

type Kind int

const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

// Field is one key/value pair of a mapping, kept in document order.
type Field struct {
	Key   string
	Value Node
}

// Node is a decoded JSON value as a tagged variant.
type Node struct {
	Kind   Kind
	Scalar any
	Items  []Node
	Fields []Field
}

// Get returns the first value stored under key.
func (n Node) Get(key string) (Node, bool) {
	if n.Kind != KindMapping {
		return Node{}, false
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Node{}, false
}

// Value converts the node back into plain Go values (map[string]any, []any, scalars).
func (n Node) Value() any {
	switch n.Kind {
	case KindSequence:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Value()
		}
		return out
	case KindMapping:
		out := make(map[string]any, len(n.Fields))
		for _, f := range n.Fields {
			if _, dup := out[f.Key]; dup {
				continue
			}
			out[f.Key] = f.Value.Value()
		}
		return out
	}
	return n.Scalar
}

// Raw converts a mapping node into a RawItem.
func (n Node) Raw() RawItem {
	if m, ok := n.Value().(map[string]any); ok {
		return RawItem(m)
	}
	return nil
}

// DecodeNode parses a single JSON document, keeping mapping key order.
func DecodeNode(r io.Reader) (Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	n, err := decodeValue(dec)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %v", catalog.ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Node{}, fmt.Errorf("%w: trailing data after document", catalog.ErrMalformedPayload)
	}
	return n, nil
}

// DecodeBytes is DecodeNode over a byte slice.
func DecodeBytes(body []byte) (Node, error) {
	return DecodeNode(bytes.NewReader(body))
}

func decodeValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return Node{Kind: KindScalar, Scalar: tok}, nil
	}
	switch delim {
	case '[':
		n := Node{Kind: KindSequence}
		for dec.More() {
			item, err := decodeValue(dec)
			if err != nil {
				return Node{}, err
			}
			n.Items = append(n.Items, item)
		}
		if _, err := dec.Token(); err != nil {
			return Node{}, err
		}
		return n, nil
	case '{':
		n := Node{Kind: KindMapping}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return Node{}, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return Node{}, fmt.Errorf("unexpected key token %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return Node{}, err
			}
			n.Fields = append(n.Fields, Field{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil {
			return Node{}, err
		}
		return n, nil
	}
	return Node{}, fmt.Errorf("unexpected delimiter %v", delim)
}

// FromValue wraps already-decoded Go values. Map keys are visited in sorted
// order so that traversal is deterministic.
func FromValue(v any) Node {
	switch t := v.(type) {
	case []any:
		n := Node{Kind: KindSequence, Items: make([]Node, len(t))}
		for i, item := range t {
			n.Items[i] = FromValue(item)
		}
		return n
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := Node{Kind: KindMapping, Fields: make([]Field, 0, len(keys))}
		for _, k := range keys {
			n.Fields = append(n.Fields, Field{Key: k, Value: FromValue(t[k])})
		}
		return n
	case RawItem:
		return FromValue(map[string]any(t))
	}
	return Node{Kind: KindScalar, Scalar: v}
}

// KeyGuard decides whether the search descends into a mapping value.
type KeyGuard func(key string) bool

// ProductKeyGuard only follows keys that mention products or items.
func ProductKeyGuard(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "product") || strings.Contains(k, "item")
}

// Searcher walks JSON trees looking for arrays of product-like objects.
type Searcher struct {
	Guard KeyGuard
}

// FindCandidates runs the default searcher over node.
func FindCandidates(node Node) []RawItem {
	return Searcher{Guard: ProductKeyGuard}.Find(node)
}

func (s Searcher) Find(node Node) []RawItem {
	guard := s.Guard
	if guard == nil {
		guard = ProductKeyGuard
	}
	var out []RawItem
	s.visit(node, guard, &out)
	return out
}

func (s Searcher) visit(node Node, guard KeyGuard, out *[]RawItem) {
	switch node.Kind {
	case KindSequence:
		for _, item := range node.Items {
			if LooksLikeProduct(item) {
				*out = append(*out, item.Raw())
				continue
			}
			s.visit(item, guard, out)
		}
	case KindMapping:
		for _, f := range node.Fields {
			if guard(f.Key) {
				s.visit(f.Value, guard, out)
			}
		}
	}
}

// LooksLikeProduct reports whether node has a name-like field and either a
// price-like or an id-like field.
func LooksLikeProduct(node Node) bool {
	if node.Kind != KindMapping {
		return false
	}
	return hasAny(node, "name", "title") &&
		(hasAny(node, "price", "current_price", "price_current") || hasAny(node, "id", "product_id", "sku"))
}

func hasAny(node Node, keys ...string) bool {
	for _, k := range keys {
		v, ok := node.Get(k)
		if !ok {
			continue
		}
		if present(v) {
			return true
		}
	}
	return false
}

func present(v Node) bool {
	switch v.Kind {
	case KindMapping:
		return len(v.Fields) > 0
	case KindSequence:
		return len(v.Items) > 0
	}
	switch t := v.Scalar.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case json.Number:
		return t != "" && t != "0"
	case float64:
		return t != 0
	}
	return true
}
