package render

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chrome binary on PATH")
}

func productPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, `<html><head><title>Молоко</title></head><body>`+
			`<div data-price="459">459 ₽</div><span>12 отзывов</span></body></html>`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBrowser_RenderProductCompletes(t *testing.T) {
	requireChrome(t)
	srv := productPageServer(t)

	b := NewBrowser(Options{Headless: true, NavigationTimeout: 20 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	page, err := b.RenderProduct(ctx, srv.URL+"/product/moloko--1", "")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, `data-price="459"`)
	assert.Equal(t, "Молоко", page.Title)
	assert.NotEmpty(t, page.Screenshot)
}

func TestBrowser_RenderCompletes(t *testing.T) {
	requireChrome(t)
	srv := productPageServer(t)

	b := NewBrowser(Options{
		Headless:          true,
		NavigationTimeout: 20 * time.Second,
		Scroll:            ScrollOptions{MaxDuration: time.Second},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	page, err := b.Render(ctx, srv.URL+"/catalog/7382")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "459 ₽")
}
