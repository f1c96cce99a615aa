package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	detailPricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"price"\s*:\s*["']?(\d+)`),
		regexp.MustCompile(`"currentPrice"\s*:\s*["']?(\d+)`),
		regexp.MustCompile(`data-price=["'](\d+)["']`),
		regexp.MustCompile(`(\d{2,})\s*₽`),
		regexp.MustCompile(`₽\D*(\d+)`),
	}
	detailElementPrice = regexp.MustCompile(`(\d+)\s*₽`)
	detailRating       = regexp.MustCompile(`"rating"\s*:\s*["']?(\d+\.?\d*)`)
	detailNumber       = regexp.MustCompile(`\d+\.?\d*`)
	detailReviews      = regexp.MustCompile(`(?i)(\d+)\s*отзыв`)
	yearLike           = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// maxScannedElements bounds the element-text fallbacks.
const maxScannedElements = 50

// DetailFields is what a single product page yields.
type DetailFields struct {
	Prices       []string
	Rating       string
	ReviewsCount string
}

// ExtractDetail pulls prices, rating and review count out of a rendered product page.
func ExtractDetail(markup string) DetailFields {
	var d DetailFields

	seen := make(map[string]struct{})
	for _, p := range detailPricePatterns {
		for _, m := range p.FindAllStringSubmatch(markup, -1) {
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			d.Prices = append(d.Prices, m[1])
		}
	}

	if m := detailRating.FindStringSubmatch(markup); len(m) > 1 {
		d.Rating = m[1]
	}
	if m := detailReviews.FindStringSubmatch(markup); len(m) > 1 {
		d.ReviewsCount = m[1]
	}

	if len(d.Prices) > 0 && d.Rating != "" && d.ReviewsCount != "" {
		return d
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return d
	}
	texts := elementTexts(doc, maxScannedElements)

	if len(d.Prices) == 0 {
		for _, text := range texts {
			if !strings.Contains(text, "₽") {
				continue
			}
			m := detailElementPrice.FindStringSubmatch(text)
			if len(m) < 2 {
				continue
			}
			if _, dup := seen[m[1]]; !dup {
				seen[m[1]] = struct{}{}
				d.Prices = append(d.Prices, m[1])
			}
		}
	}
	if d.Rating == "" {
		d.Rating = ratingFromText(texts)
	}
	if d.ReviewsCount == "" {
		if m := detailReviews.FindStringSubmatch(doc.Find("body").Text()); len(m) > 1 {
			d.ReviewsCount = m[1]
		}
	}
	return d
}

func ratingFromText(texts []string) string {
	for _, text := range texts {
		if !strings.Contains(text, "★") && !strings.Contains(strings.ToLower(text), "рейтинг") {
			continue
		}
		n := detailNumber.FindString(text)
		if n == "" || yearLike.MatchString(n) {
			continue
		}
		return n
	}
	return ""
}

func elementTexts(doc *goquery.Document, limit int) []string {
	var out []string
	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = append(out, s.Text())
		return len(out) < limit
	})
	return out
}
