package scraper

import (
	"regexp"
	"unicode/utf8"

	"github.com/baxromumarov/shelf-harvester/internal/urlutil"
)

const SourceMarkup = "markup"

// MarkupExtractor scans raw markup text with regular expressions. It is the
// last resort when neither endpoints nor a rendered document produced records.
type MarkupExtractor struct {
	SiteURL    string
	MinNameLen int
	Containers []*regexp.Regexp
}

var (
	markupNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<h3[^>]*>([^<]+)</h3>`),
		regexp.MustCompile(`(?i)<h4[^>]*>([^<]+)</h4>`),
		regexp.MustCompile(`(?i)class="[^"]*product-name[^"]*"[^>]*>([^<]+)<`),
	}
	markupCurrencyPrice = regexp.MustCompile(`(\d[\d\s\x{00A0}\x{202F},]+)\s*₽`)
	markupClassPrice    = regexp.MustCompile(`(?i)class="[^"]*price[^"]*"[^>]*>([^<]+)<`)
	markupProductLink   = regexp.MustCompile(`(?i)href="(/product/[^"]+)"`)
)

func NewMarkupExtractor(siteURL string) *MarkupExtractor {
	return &MarkupExtractor{
		SiteURL:    siteURL,
		MinNameLen: 3,
		Containers: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<div[^>]*class="[^"]*x-product-card[^"]*"[^>]*>[\s\S]*?</div>`),
			regexp.MustCompile(`(?i)<a[^>]*href="/product/[^"]*"[^>]*>[\s\S]*?</a>`),
			regexp.MustCompile(`(?i)<div[^>]*data-testid="product-card"[^>]*>[\s\S]*?</div>`),
		},
	}
}

// Extract uses the first container pattern with at least one match, even when
// none of its fragments yield a record.
func (m *MarkupExtractor) Extract(markup string) Outcome {
	for _, pattern := range m.Containers {
		fragments := pattern.FindAllString(markup, -1)
		if len(fragments) == 0 {
			continue
		}
		var out []RawItem
		for _, fragment := range fragments {
			if item, ok := m.fragmentItem(fragment); ok {
				out = append(out, item)
			}
		}
		return Outcome{Items: out, Source: SourceMarkup}
	}
	return Outcome{Source: SourceMarkup}
}

func (m *MarkupExtractor) fragmentItem(fragment string) (RawItem, bool) {
	var name string
	for _, p := range markupNamePatterns {
		if sub := p.FindStringSubmatch(fragment); len(sub) > 1 {
			name = cleanText(sub[1])
			break
		}
	}
	if utf8.RuneCountInString(name) <= m.MinNameLen {
		return nil, false
	}

	item := RawItem{"name": name}
	if price := fragmentPrice(fragment); price != "" {
		item["price"] = price
	}
	if sub := markupProductLink.FindStringSubmatch(fragment); len(sub) > 1 {
		item["url"] = urlutil.Resolve(m.SiteURL, sub[1])
		if id := urlutil.ProductID(sub[1]); id != "" {
			item["id"] = id
		}
	}
	return item, true
}

func fragmentPrice(fragment string) string {
	if sub := markupCurrencyPrice.FindStringSubmatch(fragment); len(sub) > 1 {
		if price := numericText(sub[1]); price != "" {
			return price
		}
	}
	if sub := markupClassPrice.FindStringSubmatch(fragment); len(sub) > 1 {
		return numericText(sub[1])
	}
	return ""
}
