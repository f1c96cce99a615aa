package scraper

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

// Canonical field names used as keys of the alias table.
const (
	FieldID              = "id"
	FieldName            = "name"
	FieldPrice           = "price"
	FieldOldPrice        = "oldPrice"
	FieldDiscountPercent = "discountPercent"
	FieldRating          = "rating"
	FieldReviewsCount    = "reviewsCount"
	FieldWeightOrVolume  = "weightOrVolume"
	FieldBrand           = "brand"
	FieldImageURL        = "imageUrl"
	FieldPageURL         = "pageUrl"
	FieldInStock         = "inStock"
	FieldCategoryLabel   = "categoryLabel"
)

// Aliases lists, per canonical field, the source keys consulted in priority order.
var Aliases = map[string][]string{
	FieldID:              {"id", "product_id", "sku", "productId"},
	FieldName:            {"name", "title", "product_name"},
	FieldPrice:           {"price", "current_price", "price_current"},
	FieldOldPrice:        {"old_price", "price_old", "oldPrice"},
	FieldDiscountPercent: {"discount", "discount_percent"},
	FieldRating:          {"rating", "review_rating"},
	FieldReviewsCount:    {"reviews_count", "review_count", "reviewsCount"},
	FieldWeightOrVolume:  {"weight", "volume"},
	FieldBrand:           {"brand", "brand_name"},
	FieldImageURL:        {"image", "image_url", "picture"},
	FieldPageURL:         {"url", "product_url"},
	FieldInStock:         {"in_stock", "inStock", "available"},
	FieldCategoryLabel:   {"category", "category_name"},
}

// DefaultSentinels are placeholder names that mark a record as unnamed.
var DefaultSentinels = []string{"Товар без названия", "Товар", "unnamed product"}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shelf-harvester/product"))

// Normalizer maps raw records of unknown shape onto catalog.Product.
type Normalizer struct {
	aliases   map[string][]string
	sentinels map[string]struct{}
}

func NewNormalizer() *Normalizer {
	n := &Normalizer{
		aliases:   Aliases,
		sentinels: make(map[string]struct{}, len(DefaultSentinels)),
	}
	for _, s := range DefaultSentinels {
		n.sentinels[strings.ToLower(s)] = struct{}{}
	}
	return n
}

// Normalize resolves every canonical field through the alias table. It
// returns false when the record has no usable name.
func (n *Normalizer) Normalize(raw RawItem, source string) (catalog.Product, bool) {
	name := textValue(n.lookup(raw, FieldName))
	if !n.validName(name) {
		return catalog.Product{}, false
	}

	p := catalog.Product{
		Name:            name,
		Price:           numericValue(n.lookup(raw, FieldPrice)),
		OldPrice:        numericValue(n.lookup(raw, FieldOldPrice)),
		DiscountPercent: numericValue(n.lookup(raw, FieldDiscountPercent)),
		Rating:          numericValue(n.lookup(raw, FieldRating)),
		ReviewsCount:    intValue(n.lookup(raw, FieldReviewsCount)),
		WeightOrVolume:  textValue(n.lookup(raw, FieldWeightOrVolume)),
		Brand:           textValue(n.lookup(raw, FieldBrand)),
		ImageURL:        textValue(n.lookup(raw, FieldImageURL)),
		PageURL:         textValue(n.lookup(raw, FieldPageURL)),
		InStock:         true,
		CategoryLabel:   textValue(n.lookup(raw, FieldCategoryLabel)),
	}
	if stock, ok := boolValue(n.lookup(raw, FieldInStock)); ok {
		p.InStock = stock
	}

	p.ID = textValue(n.lookup(raw, FieldID))
	if p.ID == "" {
		p.ID = SyntheticID(p.Name, p.Price, source)
	}
	return p, true
}

// NormalizeAll normalizes items in order, dropping invalid ones.
func (n *Normalizer) NormalizeAll(items []RawItem, source string) []catalog.Product {
	out := make([]catalog.Product, 0, len(items))
	for _, raw := range items {
		if p, ok := n.Normalize(raw, source); ok {
			out = append(out, p)
		}
	}
	return out
}

// SyntheticID derives a stable identifier from record content, so repeated
// runs over the same source produce the same ids.
func SyntheticID(name, price, source string) string {
	return uuid.NewSHA1(idNamespace, []byte(name+"\x00"+price+"\x00"+source)).String()
}

func (n *Normalizer) validName(name string) bool {
	if name == "" {
		return false
	}
	_, placeholder := n.sentinels[strings.ToLower(name)]
	return !placeholder
}

func (n *Normalizer) lookup(raw RawItem, field string) any {
	for _, key := range n.aliases[field] {
		v, ok := raw[key]
		if !ok || isBlank(v) {
			continue
		}
		return v
	}
	return nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case json.Number:
		return t == ""
	}
	return false
}

func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return cleanText(t)
	case json.Number:
		return t.String()
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range []string{"name", "title", "value", "url", "src"} {
			if s := textValue(t[key]); s != "" {
				return s
			}
		}
	case RawItem:
		return textValue(map[string]any(t))
	}
	return ""
}

// numericValue renders a price-like value as a currency-free decimal string.
func numericValue(v any) string {
	switch t := v.(type) {
	case map[string]any:
		for _, key := range []string{"current", "value", "amount", "price"} {
			if s := numericValue(t[key]); s != "" {
				return s
			}
		}
		return ""
	case RawItem:
		return numericValue(map[string]any(t))
	case string:
		return numericText(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return formatFloat(f)
		}
		return numericText(t.String())
	case bool, nil:
		return ""
	}
	return numericText(textValue(v))
}

// numberToken matches the first number in a string, with space-grouped
// thousands and any run of "." or "," separators.
var numberToken = regexp.MustCompile(`\d+(?:[ \x{00A0}\x{202F}]\d{3})*(?:[.,]\d+)*`)

// numericText reads the first number of s as a plain decimal:
// "1 299,90 ₽" -> "1299.90", "99 ₽ за 1 кг" -> "99". The last separator is
// the decimal point; earlier ones group thousands.
func numericText(s string) string {
	tok := numberToken.FindString(s)
	if tok == "" {
		return ""
	}
	tok = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, tok)
	last := strings.LastIndexAny(tok, ".,")
	if last < 0 {
		return tok
	}
	whole := strings.NewReplacer(".", "", ",", "").Replace(tok[:last])
	return whole + "." + tok[last+1:]
}

func intValue(v any) int {
	s := numericValue(v)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func boolValue(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t > 0, true
	case int:
		return t > 0, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, false
		}
		return f > 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "да":
			return true, true
		case "false", "0", "no", "n", "нет":
			return false, true
		}
	}
	return false, false
}
