package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

const ruleWidth = 80

// WriteJSON writes result using the output schema, indented.
func WriteJSON(w io.Writer, result catalog.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// WriteText writes a human-readable category report.
func WriteText(w io.Writer, result catalog.Result) error {
	rule := strings.Repeat("=", ruleWidth)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nCATEGORY HARVEST REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Date:      %s\n", result.Metadata.ParsedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "URL:       %s\n", result.Metadata.SourceURL)
	fmt.Fprintf(&b, "Category:  %s (id %s)\n", result.Category.Name, result.Category.ID)
	if result.Category.Description != "" {
		fmt.Fprintf(&b, "About:     %s\n", result.Category.Description)
	}
	fmt.Fprintf(&b, "Products:  %d\n", len(result.Products))
	strategy := result.Metadata.Strategy
	if strategy == "" {
		strategy = "none"
	}
	fmt.Fprintf(&b, "Strategy:  %s\n\n", strategy)

	fmt.Fprintf(&b, "%s\nPRODUCTS\n%s\n\n", rule, rule)
	if len(result.Products) == 0 {
		b.WriteString("No products found.\n\n")
	}
	for i, p := range result.Products {
		writeProduct(&b, i+1, p)
	}

	fmt.Fprintf(&b, "%s\nEND OF REPORT\n%s\n", rule, rule)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeProduct(b *strings.Builder, n int, p catalog.Product) {
	fmt.Fprintf(b, "%d. %s\n", n, p.Name)
	fmt.Fprintf(b, "   ID: %s\n", p.ID)
	if p.Price != "" {
		fmt.Fprintf(b, "   Price: %s ₽\n", p.Price)
	} else {
		b.WriteString("   Price: out of stock\n")
	}
	if p.OldPrice != "" {
		fmt.Fprintf(b, "   Old price: %s ₽\n", p.OldPrice)
	}
	if p.DiscountPercent != "" {
		fmt.Fprintf(b, "   Discount: %s%%\n", p.DiscountPercent)
	}
	if p.Rating != "" {
		fmt.Fprintf(b, "   Rating: %s\n", p.Rating)
	}
	if p.ReviewsCount > 0 {
		fmt.Fprintf(b, "   Reviews: %d\n", p.ReviewsCount)
	}
	if p.Brand != "" {
		fmt.Fprintf(b, "   Brand: %s\n", p.Brand)
	}
	if p.PageURL != "" {
		fmt.Fprintf(b, "   Link: %s\n", p.PageURL)
	}
	fmt.Fprintf(b, "   In stock: %s\n\n", yesNo(p.InStock))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// Stats summarizes a product list.
type Stats struct {
	Total      int
	WithPrice  int
	WithImage  int
	WithURL    int
	WithRating int
	Discounted int
	MinPrice   float64
	MaxPrice   float64
	AvgPrice   float64
}

// Summarize computes Stats. Price figures only cover parseable prices and
// stay zero when there are none.
func Summarize(products []catalog.Product) Stats {
	s := Stats{Total: len(products)}
	var sum float64
	var priced int
	for _, p := range products {
		if p.ImageURL != "" {
			s.WithImage++
		}
		if p.PageURL != "" {
			s.WithURL++
		}
		if p.Rating != "" {
			s.WithRating++
		}
		if p.OldPrice != "" || p.DiscountPercent != "" {
			s.Discounted++
		}
		if p.Price == "" {
			continue
		}
		s.WithPrice++
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			continue
		}
		if priced == 0 || v < s.MinPrice {
			s.MinPrice = v
		}
		if priced == 0 || v > s.MaxPrice {
			s.MaxPrice = v
		}
		sum += v
		priced++
	}
	if priced > 0 {
		s.AvgPrice = sum / float64(priced)
	}
	return s
}

// WriteSummary prints the statistics block shown after a harvest, with the
// first few products as a preview.
func WriteSummary(w io.Writer, result catalog.Result, preview int) error {
	s := Summarize(result.Products)
	rule := strings.Repeat("-", 40)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nCategory:    %s\nProducts:    %d\n", rule, result.Category.Name, s.Total)
	if s.Total > 0 {
		fmt.Fprintf(&b, "With price:  %d\nWith image:  %d\nWith link:   %d\nWith rating: %d\nDiscounted:  %d\n",
			s.WithPrice, s.WithImage, s.WithURL, s.WithRating, s.Discounted)
		if s.MaxPrice > 0 {
			fmt.Fprintf(&b, "Price:       %.2f .. %.2f ₽ (avg %.2f)\n", s.MinPrice, s.MaxPrice, s.AvgPrice)
		}
		for i, p := range result.Products {
			if i >= preview {
				break
			}
			price := p.Price
			if price == "" {
				price = "?"
			}
			fmt.Fprintf(&b, "%d. %s: %s ₽\n", i+1, truncate(p.Name, 40), price)
		}
	}
	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// WriteDetail writes the product-detail report.
func WriteDetail(w io.Writer, d catalog.ProductDetail) error {
	rule := strings.Repeat("=", 50)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nPRODUCT DETAILS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "URL:      %s\n", d.URL)
	if d.Region != "" {
		fmt.Fprintf(&b, "Region:   %s\n", d.Region)
	}
	fmt.Fprintf(&b, "Captured: %s\n\n", d.CapturedAt.Format(time.RFC3339))

	b.WriteString("PRICES:\n")
	if len(d.Prices) == 0 {
		b.WriteString("  not found\n")
	}
	for i, p := range d.Prices {
		fmt.Fprintf(&b, "  %d. %s ₽\n", i+1, p)
	}

	b.WriteString("\nRATING:\n")
	fmt.Fprintf(&b, "  %s\n", orNotFound(d.Rating))
	b.WriteString("\nREVIEWS:\n")
	fmt.Fprintf(&b, "  %s\n", orNotFound(d.ReviewsCount))
	b.WriteString("\n" + rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func orNotFound(s string) string {
	if s == "" {
		return "not found"
	}
	return s
}

// SaveCategory writes category_<unixms>.json and its readable companion into
// dir and returns both paths.
func SaveCategory(dir string, result catalog.Result) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	stamp := result.Metadata.ParsedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	base := filepath.Join(dir, "category_"+strconv.FormatInt(stamp.UnixMilli(), 10))

	jsonPath := base + ".json"
	if err := writeFile(jsonPath, func(w io.Writer) error { return WriteJSON(w, result) }); err != nil {
		return "", "", err
	}
	textPath := base + "_readable.txt"
	if err := writeFile(textPath, func(w io.Writer) error { return WriteText(w, result) }); err != nil {
		return "", "", err
	}
	return jsonPath, textPath, nil
}

// SaveDetail writes product.txt and, when present, screenshot.jpg into dir.
// The screenshot path is empty when no screenshot was taken.
func SaveDetail(dir string, d catalog.ProductDetail) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	textPath := filepath.Join(dir, "product.txt")
	if err := writeFile(textPath, func(w io.Writer) error { return WriteDetail(w, d) }); err != nil {
		return "", "", err
	}
	if len(d.Screenshot) == 0 {
		return textPath, "", nil
	}
	shotPath := filepath.Join(dir, "screenshot.jpg")
	if err := os.WriteFile(shotPath, d.Screenshot, 0o644); err != nil {
		return "", "", fmt.Errorf("write screenshot: %w", err)
	}
	return textPath, shotPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
