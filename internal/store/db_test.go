package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.RunMigrations(context.Background()))
	return s
}

func result(categoryID string, parsedAt time.Time, products ...catalog.Product) catalog.Result {
	return catalog.Result{
		Metadata: catalog.Metadata{
			ParsedAt:      parsedAt,
			SourceURL:     "https://www.vprok.ru/catalog/" + categoryID,
			CategoryID:    categoryID,
			TotalCount:    len(products),
			Success:       len(products) > 0,
			Strategy:      "api:1",
			ParserVersion: catalog.ParserVersion,
		},
		Category: catalog.Category{ID: categoryID, Name: "Category " + categoryID, ProductCount: len(products)},
		Products: products,
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "")
	assert.Error(t, err)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.RunMigrations(context.Background()))
}

func TestSaveResult_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	parsedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	products := []catalog.Product{
		{ID: "2", Name: "Bread", Price: "45", InStock: true},
		{ID: "1", Name: "Milk", Price: "120", OldPrice: "140", ReviewsCount: 7, Brand: "Farm", InStock: false},
	}
	runID, err := s.SaveResult(ctx, result("7382", parsedAt, products...))
	require.NoError(t, err)
	assert.Positive(t, runID)

	got, err := s.GetRunProducts(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, products, got)

	run, err := s.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "7382", run.CategoryID)
	assert.Equal(t, "Category 7382", run.CategoryName)
	assert.True(t, run.Success)
	assert.Equal(t, 2, run.TotalCount)
	assert.True(t, parsedAt.Equal(run.ParsedAt))

	c, err := s.GetCategory(ctx, "7382")
	require.NoError(t, err)
	assert.Equal(t, 2, c.ProductCount)
}

func TestSaveResult_UpsertsCategory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	_, err := s.SaveResult(ctx, result("10", now, catalog.Product{ID: "a", Name: "A"}))
	require.NoError(t, err)
	r := result("10", now)
	r.Category.Name = "Renamed"
	_, err = s.SaveResult(ctx, r)
	require.NoError(t, err)

	c, err := s.GetCategory(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Name)
	assert.Zero(t, c.ProductCount)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"1", "2", "3"} {
		_, err := s.SaveResult(ctx, result(id, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "3", runs[0].CategoryID)
	assert.Equal(t, "2", runs[1].CategoryID)

	runs, err = s.ListRuns(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "1", runs[0].CategoryID)
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOldRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	oldID, err := s.SaveResult(ctx, result("1", now.Add(-72*time.Hour), catalog.Product{ID: "x", Name: "Old"}))
	require.NoError(t, err)
	_, err = s.SaveResult(ctx, result("2", now, catalog.Product{ID: "y", Name: "New"}))
	require.NoError(t, err)

	deleted, err := s.DeleteOldRuns(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	runs, err := s.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "2", runs[0].CategoryID)

	products, err := s.GetRunProducts(ctx, oldID)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "WHERE a = $1 AND b = $2", pg.rebind("WHERE a = ? AND b = ?"))

	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "WHERE a = ?", lite.rebind("WHERE a = ?"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_time_format=sqlite", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?cache=shared&_time_format=sqlite", sqliteDSN("file:x.db?cache=shared"))
	assert.Equal(t, "x.db?_time_format=sqlite", sqliteDSN("x.db?_time_format=sqlite"))
}
