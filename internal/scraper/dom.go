package scraper

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/baxromumarov/shelf-harvester/internal/urlutil"
)

const (
	SourceDOMAnchor   = "dom:anchor"
	SourceDOMSelector = "dom:selector"
)

// currencyPrice captures the digit run in front of a ruble marker. NBSP and
// narrow NBSP are common thousands separators on the source.
var currencyPrice = regexp.MustCompile(`(\d[\d\s\x{00A0}\x{202F}]*)\s*(?:₽|руб)`)

// PriceBeforeCurrency returns the whitespace-free digits preceding the currency marker.
func PriceBeforeCurrency(text string) (string, bool) {
	m := currencyPrice.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, m[1])
	if digits == "" {
		return "", false
	}
	return digits, true
}

func hasCurrencyMarker(text string) bool {
	return strings.Contains(text, "₽") || strings.Contains(text, "руб")
}

// DOMExtractor builds raw records from a rendered document using two ordered
// families of structural heuristics.
type DOMExtractor struct {
	PageURL        string
	ProductLink    string
	AncestorLevels int
	MinNameLen     int
	MaxNameLen     int

	AnchorNameSelectors  []string
	AnchorPriceSelectors []string

	ContainerSelectors []string
	CardNameSelectors  []string
	CardPriceSelectors []string
}

func NewDOMExtractor(pageURL string) *DOMExtractor {
	return &DOMExtractor{
		PageURL:        pageURL,
		ProductLink:    `a[href*="/product/"]`,
		AncestorLevels: 5,
		MinNameLen:     5,
		MaxNameLen:     100,
		AnchorNameSelectors: []string{
			"h1", "h2", "h3", "h4", `[class*="name"]`, `[class*="title"]`,
		},
		AnchorPriceSelectors: []string{
			`[class*="price"]`, `[class*="Price"]`, `[class*="руб"]`, `[class*="₽"]`,
		},
		ContainerSelectors: []string{
			".x-product-card",
			".product-card",
			`[data-testid="product-card"]`,
			".catalog-item",
			".item-product",
			".product-item",
		},
		CardNameSelectors: []string{
			".x-product-card-description__product-name",
			".product-name",
			"h3",
			"h4",
			`[class*="name"]`,
			`[class*="title"]`,
		},
		CardPriceSelectors: []string{
			".x-product-card-description__price-single",
			".product-card-price__current",
			`[class*="price-current"]`,
			`[class*="price__current"]`,
			".price",
		},
	}
}

// Extract tries the anchor heuristics, then the container heuristics.
func (d *DOMExtractor) Extract(root Element) Outcome {
	if items := d.AnchorBased(root); len(items) > 0 {
		return Outcome{Items: items, Source: SourceDOMAnchor}
	}
	return Outcome{Items: d.SelectorFamily(root), Source: SourceDOMSelector}
}

// ExtractHTML parses markup and runs Extract over it.
func (d *DOMExtractor) ExtractHTML(markup string) (Outcome, error) {
	root, err := ParseDocument(markup)
	if err != nil {
		return Outcome{}, err
	}
	return d.Extract(root), nil
}

// AnchorBased finds product links and reads name, price and image from an
// ancestor container. Records lacking either name or price are skipped.
func (d *DOMExtractor) AnchorBased(root Element) []RawItem {
	var out []RawItem
	for _, link := range root.Find(d.ProductLink) {
		container := ascend(link, d.AncestorLevels)

		name := d.anchorName(container)
		if name == "" {
			continue
		}
		price := d.firstCurrencyPrice(container, d.AnchorPriceSelectors, true)
		if price == "" {
			continue
		}

		href, _ := link.Attr("href")
		item := RawItem{
			"name":  name,
			"price": price,
			"url":   urlutil.Resolve(d.PageURL, href),
		}
		if id := urlutil.ProductID(href); id != "" {
			item["id"] = id
		}
		if img := d.imageURL(container, "src", "data-src"); img != "" {
			item["image"] = img
		}
		out = append(out, item)
	}
	return out
}

// SelectorFamily uses the first container selector that matches anything
// and never mixes container shapes. Price is optional here.
func (d *DOMExtractor) SelectorFamily(root Element) []RawItem {
	for _, selector := range d.ContainerSelectors {
		cards := root.Find(selector)
		if len(cards) == 0 {
			continue
		}
		var out []RawItem
		for _, card := range cards {
			name := firstText(card, d.CardNameSelectors)
			if name == "" {
				continue
			}
			item := RawItem{"name": name}
			if price := d.firstCurrencyPrice(card, d.CardPriceSelectors, false); price != "" {
				item["price"] = price
			}
			if img := d.imageURL(card, "src", "data-src", "data-original"); img != "" {
				item["image"] = img
			}
			var href string
			if links := card.Find(d.ProductLink); len(links) > 0 {
				href, _ = links[0].Attr("href")
				item["url"] = urlutil.Resolve(d.PageURL, href)
			}
			if id := cardID(card, href); id != "" {
				item["id"] = id
			}
			out = append(out, item)
		}
		return out
	}
	return nil
}

func (d *DOMExtractor) anchorName(container Element) string {
	for _, selector := range d.AnchorNameSelectors {
		for _, el := range container.Find(selector) {
			text := strings.TrimSpace(el.Text())
			n := utf8.RuneCountInString(text)
			if n > d.MinNameLen && n < d.MaxNameLen {
				return text
			}
		}
	}
	return ""
}

// firstCurrencyPrice scans selectors in order. With requireMarker the element
// text must mention a currency before the digits are considered.
func (d *DOMExtractor) firstCurrencyPrice(container Element, selectors []string, requireMarker bool) string {
	for _, selector := range selectors {
		for _, el := range container.Find(selector) {
			text := strings.TrimSpace(el.Text())
			if requireMarker && !hasCurrencyMarker(text) {
				continue
			}
			if price, ok := PriceBeforeCurrency(text); ok {
				return price
			}
			if !requireMarker {
				// only the first element of a card-level selector is considered
				break
			}
		}
	}
	return ""
}

func (d *DOMExtractor) imageURL(container Element, attrs ...string) string {
	imgs := container.Find("img")
	if len(imgs) == 0 {
		return ""
	}
	for _, attr := range attrs {
		if v, ok := imgs[0].Attr(attr); ok && strings.TrimSpace(v) != "" {
			return urlutil.Resolve(d.PageURL, v)
		}
	}
	return ""
}

func firstText(container Element, selectors []string) string {
	for _, selector := range selectors {
		found := container.Find(selector)
		if len(found) == 0 {
			continue
		}
		if text := strings.TrimSpace(found[0].Text()); text != "" {
			return text
		}
	}
	return ""
}

func cardID(card Element, href string) string {
	for _, attr := range []string{"data-product-id", "data-id"} {
		if v, ok := card.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return urlutil.ProductID(href)
}

func ascend(el Element, levels int) Element {
	for i := 0; i < levels; i++ {
		parent, ok := el.Parent()
		if !ok {
			break
		}
		el = parent
	}
	return el
}
