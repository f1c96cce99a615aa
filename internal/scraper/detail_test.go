package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   DetailFields
	}{
		{
			name: "embedded state and markup",
			markup: `<html><body><script>{"price": "459", "currentPrice": 399, "rating": 4.8}</script>` +
				`<div data-price="459">459 ₽</div><span>12 отзывов</span></body></html>`,
			want: DetailFields{Prices: []string{"459", "399", "12"}, Rating: "4.8", ReviewsCount: "12"},
		},
		{
			name:   "element text fallbacks",
			markup: `<html><body><div>★ 4.5</div><div class="cost">5 ₽</div></body></html>`,
			want:   DetailFields{Prices: []string{"5"}, Rating: "4.5"},
		},
		{
			name:   "rating text skips years",
			markup: `<html><body><div>рейтинг 2024 года</div><div>★ 4.1</div></body></html>`,
			want:   DetailFields{Rating: "4.1"},
		},
		{
			name:   "nothing to find",
			markup: `<html><body><p>Страница недоступна</p></body></html>`,
			want:   DetailFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDetail(tt.markup))
		})
	}
}
