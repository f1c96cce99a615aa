package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageURL = "https://www.vprok.ru/catalog/7382/pomidory-i-ovoschnye-nabory"

func TestPriceBeforeCurrency(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"89 ₽", "89", true},
		{"1 299 ₽", "1299", true},
		{"1\u00a0299\u00a0₽", "1299", true},
		{"2\u202f450 ₽", "2450", true},
		{"от 45₽ за кг", "45", true},
		{"250 руб.", "250", true},
		{"нет в наличии", "", false},
		{"₽", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := PriceBeforeCurrency(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDOMExtractor_AnchorBased(t *testing.T) {
	markup := `<html><body><section class="grid">
<div class="tile">
  <div><div><div><div><a href="/product/moloko-pasterizovannoe--123"><img data-src="/img/moloko.jpg"></a></div></div></div></div>
  <div class="tile-title">Молоко пастеризованное 1 л</div>
  <div class="tile-price">1&nbsp;299&nbsp;₽</div>
</div>
<div class="tile">
  <div><div><div><div><a href="https://www.vprok.ru/product/kefir--456"><img src="https://cdn.example/kefir.jpg"></a></div></div></div></div>
  <div class="tile-title">Кефир 3.2% 900 г</div>
  <div class="tile-price">89 ₽</div>
</div>
<div class="tile">
  <div><div><div><div><a href="/product/no-price--789">x</a></div></div></div></div>
  <div class="tile-title">Товар без цены в наличии</div>
</div>
</section></body></html>`

	out, err := NewDOMExtractor(pageURL).ExtractHTML(markup)
	require.NoError(t, err)
	assert.Equal(t, SourceDOMAnchor, out.Source)
	require.Len(t, out.Items, 2)

	assert.Equal(t, RawItem{
		"id":    "moloko-pasterizovannoe--123",
		"name":  "Молоко пастеризованное 1 л",
		"price": "1299",
		"url":   "https://www.vprok.ru/product/moloko-pasterizovannoe--123",
		"image": "https://www.vprok.ru/img/moloko.jpg",
	}, out.Items[0])
	assert.Equal(t, RawItem{
		"id":    "kefir--456",
		"name":  "Кефир 3.2% 900 г",
		"price": "89",
		"url":   "https://www.vprok.ru/product/kefir--456",
		"image": "https://cdn.example/kefir.jpg",
	}, out.Items[1])
}

func TestDOMExtractor_SelectorFamilyUsesFirstMatchingSelector(t *testing.T) {
	markup := `<html><body>
<div class="product-card" data-product-id="11"><h3>Кефир</h3><span class="price">75 ₽</span><img src="https://cdn.example/kefir.jpg"></div>
<div class="product-card" data-id="12"><span class="product-name">Ряженка</span><div class="product-card-price__current">64 ₽</div></div>
<div class="catalog-item"><h3>Творог</h3></div>
</body></html>`

	out, err := NewDOMExtractor(pageURL).ExtractHTML(markup)
	require.NoError(t, err)
	assert.Equal(t, SourceDOMSelector, out.Source)
	require.Len(t, out.Items, 2)

	assert.Equal(t, RawItem{
		"id":    "11",
		"name":  "Кефир",
		"price": "75",
		"image": "https://cdn.example/kefir.jpg",
	}, out.Items[0])
	assert.Equal(t, RawItem{
		"id":    "12",
		"name":  "Ряженка",
		"price": "64",
	}, out.Items[1])
}

func TestDOMExtractor_SelectorFamilyLinkAndImage(t *testing.T) {
	root, err := ParseDocument(`<div class="catalog-item"><a href="/product/tvorog--77"><h4>Творог 5%</h4></a><img data-original="/i/t.jpg"></div>
<div class="catalog-item"><span>no name here</span></div>`)
	require.NoError(t, err)

	items := NewDOMExtractor(pageURL).SelectorFamily(root)
	require.Len(t, items, 1)
	assert.Equal(t, RawItem{
		"id":    "tvorog--77",
		"name":  "Творог 5%",
		"url":   "https://www.vprok.ru/product/tvorog--77",
		"image": "https://www.vprok.ru/i/t.jpg",
	}, items[0])
}

func TestDOMExtractor_EmptyDocument(t *testing.T) {
	out, err := NewDOMExtractor(pageURL).ExtractHTML(`<html><body><p>Ничего не найдено</p></body></html>`)
	require.NoError(t, err)
	assert.False(t, out.OK())
	assert.Equal(t, SourceDOMSelector, out.Source)
}

type fakeElement struct {
	text     string
	attrs    map[string]string
	parent   *fakeElement
	children map[string][]*fakeElement
}

func (f *fakeElement) Find(selector string) []Element {
	var out []Element
	for _, c := range f.children[selector] {
		out = append(out, c)
	}
	return out
}

func (f *fakeElement) Text() string { return f.text }

func (f *fakeElement) Attr(name string) (string, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

func (f *fakeElement) Parent() (Element, bool) {
	if f.parent == nil {
		return nil, false
	}
	return f.parent, true
}

func TestDOMExtractor_WorksOverAnyElement(t *testing.T) {
	card := &fakeElement{
		attrs: map[string]string{"data-product-id": "p-1"},
		children: map[string][]*fakeElement{
			"h3":     {{text: " Хлеб бородинский "}},
			".price": {{text: "55 ₽"}},
		},
	}
	root := &fakeElement{children: map[string][]*fakeElement{".item-product": {card}}}

	out := NewDOMExtractor(pageURL).Extract(root)
	require.Len(t, out.Items, 1)
	assert.Equal(t, RawItem{"id": "p-1", "name": "Хлеб бородинский", "price": "55"}, out.Items[0])
}
