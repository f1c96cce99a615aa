package catalog

import "time"

// ParserVersion is stamped into every result's metadata.
const ParserVersion = "1.0"

// Product is the canonical record every extraction strategy collapses into.
type Product struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Price           string `json:"price,omitempty"`
	OldPrice        string `json:"oldPrice,omitempty"`
	DiscountPercent string `json:"discountPercent,omitempty"`
	Rating          string `json:"rating,omitempty"`
	ReviewsCount    int    `json:"reviewsCount,omitempty"`
	WeightOrVolume  string `json:"weightOrVolume,omitempty"`
	Brand           string `json:"brand,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	PageURL         string `json:"pageUrl,omitempty"`
	InStock         bool   `json:"inStock"`
	CategoryLabel   string `json:"categoryLabel,omitempty"`
}

// Category describes the listing page the products were harvested from.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	URL          string `json:"url"`
	ProductCount int    `json:"productCount"`
}

type Metadata struct {
	ParsedAt      time.Time `json:"parsedAt"`
	SourceURL     string    `json:"sourceUrl"`
	CategoryID    string    `json:"categoryId"`
	TotalCount    int       `json:"totalCount"`
	Success       bool      `json:"success"`
	Strategy      string    `json:"strategy,omitempty"`
	ParserVersion string    `json:"parserVersion"`
}

// Result is the document handed to persistence collaborators.
type Result struct {
	Metadata Metadata  `json:"metadata"`
	Category Category  `json:"category"`
	Products []Product `json:"products"`
}

// ProductDetail is what the single-product path extracts from a rendered page.
type ProductDetail struct {
	URL          string    `json:"url"`
	Region       string    `json:"region"`
	Prices       []string  `json:"prices"`
	Rating       string    `json:"rating,omitempty"`
	ReviewsCount string    `json:"reviewsCount,omitempty"`
	CapturedAt   time.Time `json:"capturedAt"`
	Screenshot   []byte    `json:"-"`
}
