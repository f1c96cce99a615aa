package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema/*.sql
var schemas embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to a postgres (lib/pq) or sqlite (modernc) database.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// sqliteDSN makes modernc write times in a sortable layout so parsed_at
// comparisons work on the stored text.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

// RunMigrations applies the embedded schema of the store's driver.
func (s *Store) RunMigrations(ctx context.Context) error {
	content, err := schemas.ReadFile("schema/" + s.driver + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, stmt := range strings.Split(string(content), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}

// rebind turns "?" placeholders into "$n" for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

type Run struct {
	ID            int64     `json:"id"`
	SourceURL     string    `json:"sourceUrl"`
	CategoryID    string    `json:"categoryId"`
	CategoryName  string    `json:"categoryName"`
	Strategy      string    `json:"strategy"`
	Success       bool      `json:"success"`
	TotalCount    int       `json:"totalCount"`
	ParserVersion string    `json:"parserVersion"`
	ParsedAt      time.Time `json:"parsedAt"`
}

// SaveResult stores a harvest run with its products and upserts the category.
func (s *Store) SaveResult(ctx context.Context, result catalog.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	meta := result.Metadata
	parsedAt := meta.ParsedAt.UTC()

	var runID int64
	err = tx.QueryRowContext(ctx, s.rebind(`
INSERT INTO harvest_runs (source_url, category_id, category_name, strategy, success, total_count, parser_version, parsed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`), meta.SourceURL, meta.CategoryID, result.Category.Name, meta.Strategy, meta.Success, meta.TotalCount, meta.ParserVersion, parsedAt).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, s.rebind(`
INSERT INTO products (run_id, position, product_id, name, price, old_price, discount_percent, rating, reviews_count, weight_or_volume, brand, image_url, page_url, in_stock, category_label)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`))
	if err != nil {
		return 0, fmt.Errorf("prepare product insert: %w", err)
	}
	defer insert.Close()

	for i, p := range result.Products {
		if _, err := insert.ExecContext(ctx, runID, i, p.ID, p.Name, p.Price, p.OldPrice, p.DiscountPercent, p.Rating,
			p.ReviewsCount, p.WeightOrVolume, p.Brand, p.ImageURL, p.PageURL, p.InStock, p.CategoryLabel); err != nil {
			return 0, fmt.Errorf("insert product %s: %w", p.ID, err)
		}
	}

	c := result.Category
	if c.ID != "" {
		_, err = tx.ExecContext(ctx, s.rebind(`
INSERT INTO categories (id, name, description, url, product_count, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    url = excluded.url,
    product_count = excluded.product_count,
    updated_at = excluded.updated_at
`), c.ID, c.Name, c.Description, c.URL, c.ProductCount, parsedAt)
		if err != nil {
			return 0, fmt.Errorf("upsert category: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT id, source_url, category_id, category_name, strategy, success, total_count, parser_version, parsed_at
FROM harvest_runs
ORDER BY parsed_at DESC, id DESC
LIMIT ? OFFSET ?
`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SourceURL, &r.CategoryID, &r.CategoryName, &r.Strategy, &r.Success,
			&r.TotalCount, &r.ParserVersion, &r.ParsedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT id, source_url, category_id, category_name, strategy, success, total_count, parser_version, parsed_at
FROM harvest_runs
WHERE id = ?
`), id).Scan(&r.ID, &r.SourceURL, &r.CategoryID, &r.CategoryName, &r.Strategy, &r.Success,
		&r.TotalCount, &r.ParserVersion, &r.ParsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// GetRunProducts returns the products of a run in harvest order.
func (s *Store) GetRunProducts(ctx context.Context, runID int64) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT product_id, name, price, old_price, discount_percent, rating, reviews_count, weight_or_volume, brand, image_url, page_url, in_stock, category_label
FROM products
WHERE run_id = ?
ORDER BY position
`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.OldPrice, &p.DiscountPercent, &p.Rating, &p.ReviewsCount,
			&p.WeightOrVolume, &p.Brand, &p.ImageURL, &p.PageURL, &p.InStock, &p.CategoryLabel); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (catalog.Category, error) {
	var c catalog.Category
	err := s.db.QueryRowContext(ctx, s.rebind(`
SELECT id, name, description, url, product_count FROM categories WHERE id = ?
`), id).Scan(&c.ID, &c.Name, &c.Description, &c.URL, &c.ProductCount)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Category{}, ErrNotFound
	}
	return c, err
}

// DeleteOldRuns removes runs parsed before now-retention, with their products.
func (s *Store) DeleteOldRuns(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`
DELETE FROM products WHERE run_id IN (SELECT id FROM harvest_runs WHERE parsed_at < ?)
`), cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM harvest_runs WHERE parsed_at < ?`), cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
