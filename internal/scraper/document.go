package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Element is the slice of a rendered document the DOM heuristics need.
type Element interface {
	Find(selector string) []Element
	Text() string
	Attr(name string) (string, bool)
	Parent() (Element, bool)
}

type queryElement struct {
	sel *goquery.Selection
}

// ParseDocument parses rendered markup into a queryable root element.
func ParseDocument(markup string) (Element, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return queryElement{sel: doc.Selection}, nil
}

func (e queryElement) Find(selector string) []Element {
	found := e.sel.Find(selector)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, queryElement{sel: s})
	})
	return out
}

func (e queryElement) Text() string {
	return e.sel.Text()
}

func (e queryElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e queryElement) Parent() (Element, bool) {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil, false
	}
	return queryElement{sel: p}, true
}
