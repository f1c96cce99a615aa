package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/store"
	"github.com/baxromumarov/shelf-harvester/internal/urlutil"
)

type fakeHarvester struct {
	locators []string
}

func (f *fakeHarvester) HarvestCategory(_ context.Context, locator string) (catalog.Result, error) {
	f.locators = append(f.locators, locator)
	id, err := urlutil.CategoryID(locator)
	if err != nil {
		return catalog.Result{}, fmt.Errorf("%w: %w", catalog.ErrConfiguration, err)
	}
	return catalog.Result{
		Metadata: catalog.Metadata{CategoryID: id, Success: true, Strategy: "markup", TotalCount: 1},
		Category: catalog.Category{ID: id, Name: "Milk"},
		Products: []catalog.Product{{ID: "1", Name: "Milk 1L", Price: "89", InStock: true}},
	}, nil
}

func (f *fakeHarvester) HarvestProduct(_ context.Context, productURL, region string) (catalog.ProductDetail, error) {
	if urlutil.DetectPageType(productURL) != urlutil.PageTypeProduct {
		return catalog.ProductDetail{}, catalog.ErrConfiguration
	}
	return catalog.ProductDetail{URL: productURL, Region: region, Prices: []string{"89"}, Screenshot: []byte{1}}, nil
}

func newTestServer(t *testing.T, runs RunStore) (*httptest.Server, *fakeHarvester) {
	t.Helper()
	h := &fakeHarvester{}
	srv := httptest.NewServer(NewServer(h, runs, nil).Router())
	t.Cleanup(srv.Close)
	return srv, h
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "harvests_total")
}

func TestHarvest(t *testing.T) {
	srv, h := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/harvest", `{"url": "https://www.vprok.ru/catalog/7382/moloko"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result catalog.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "7382", result.Metadata.CategoryID)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Milk 1L", result.Products[0].Name)
	assert.Equal(t, []string{"https://www.vprok.ru/catalog/7382/moloko"}, h.locators)
}

func TestHarvest_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing url", `{}`},
		{"no category id", `{"url": "https://www.vprok.ru/promo"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/harvest", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestProduct(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/products", `{"url": "https://www.vprok.ru/product/moloko--1", "region": "Москва"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Москва", body["region"])
	assert.NotContains(t, body, "screenshot")

	resp = postJSON(t, srv.URL+"/products", `{"url": "https://www.vprok.ru/catalog/1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuns_PersistenceDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRuns(t *testing.T) {
	st, err := store.Open(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.RunMigrations(context.Background()))

	runID, err := st.SaveResult(context.Background(), catalog.Result{
		Metadata: catalog.Metadata{ParsedAt: time.Now(), CategoryID: "7", Success: true, TotalCount: 2, ParserVersion: catalog.ParserVersion},
		Category: catalog.Category{ID: "7", Name: "Bakery"},
		Products: []catalog.Product{{ID: "a", Name: "Baguette", InStock: true}, {ID: "b", Name: "Rye bread", InStock: true}},
	})
	require.NoError(t, err)

	srv, _ := newTestServer(t, st)

	resp, err := http.Get(srv.URL + "/runs?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Items []store.Run `json:"items"`
		Limit int         `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 5, list.Limit)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Bakery", list.Items[0].CategoryName)

	resp2, err := http.Get(fmt.Sprintf("%s/runs/%d/products", srv.URL, runID))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var detail struct {
		Products []catalog.Product `json:"products"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&detail))
	require.Len(t, detail.Products, 2)
	assert.Equal(t, "Baguette", detail.Products[0].Name)

	resp3, err := http.Get(srv.URL + "/runs/999/products")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)

	resp4, err := http.Get(srv.URL + "/runs/abc/products")
	require.NoError(t, err)
	defer resp4.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp4.StatusCode)
}
