package core

import (
	"context"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/content"
	"github.com/baxromumarov/shelf-harvester/internal/render"
	"github.com/baxromumarov/shelf-harvester/internal/urlutil"
)

// CategoryResolver finds the descriptor of the category being harvested.
type CategoryResolver struct {
	Client  JSONClient
	Markup  MarkupFetcher
	SiteURL string
	APIURL  string
	Options CascadeOptions
}

// Resolve tries the category endpoints, the category page markup and finally
// an already rendered page. It always returns a descriptor; when nothing
// names the category the slug of locator (or "Category <id>") is used.
// rendered may return nil when no page was rendered.
func (r *CategoryResolver) Resolve(ctx context.Context, locator, id string, rendered func() *render.Page) catalog.Category {
	steps := []Step[catalog.Category]{
		{Label: "category:api", Run: func(ctx context.Context) (catalog.Category, error) {
			return r.fromEndpoint(ctx, r.APIURL+"/api/v1/catalog/category/"+id, true)
		}},
		{Label: "category:site-api", Run: func(ctx context.Context) (catalog.Category, error) {
			return r.fromEndpoint(ctx, r.SiteURL+"/api/catalog/v1/categories/"+id, false)
		}},
		{Label: "category:markup", Run: func(ctx context.Context) (catalog.Category, error) {
			if r.Markup == nil {
				return catalog.Category{}, nil
			}
			markup, err := r.Markup.FetchMarkup(ctx, r.SiteURL+"/catalog/"+id)
			if err != nil {
				return catalog.Category{}, err
			}
			return content.FromMarkup(markup)
		}},
		{Label: "category:rendered", Run: func(ctx context.Context) (catalog.Category, error) {
			if rendered == nil {
				return catalog.Category{}, nil
			}
			page := rendered()
			if page == nil {
				return catalog.Category{}, nil
			}
			doc, err := content.Parse(page.HTML)
			if err != nil {
				return catalog.Category{}, err
			}
			return catalog.Category{Name: content.FromHeading(doc)}, nil
		}},
	}

	opts := r.Options
	opts.Pipeline = "category"
	won := First(ctx, opts, steps, func(c catalog.Category) int {
		if c.Name == "" {
			return 0
		}
		return 1
	})

	category := won.Value
	if !won.OK() {
		category = catalog.Category{Name: FallbackCategoryName(locator, id)}
	}
	if category.ID == "" {
		category.ID = id
	}
	if category.URL == "" {
		category.URL = locator
	}
	return category
}

func (r *CategoryResolver) fromEndpoint(ctx context.Context, endpoint string, envelope bool) (catalog.Category, error) {
	if r.Client == nil {
		return catalog.Category{}, nil
	}
	body, err := r.Client.GetJSON(ctx, endpoint, nil)
	if err != nil {
		return catalog.Category{}, err
	}
	return content.FromAPIBody(body, envelope)
}

// FallbackCategoryName builds a name from the locator slug, or "Category <id>".
func FallbackCategoryName(locator, id string) string {
	if name := urlutil.SlugTitle(urlutil.CategorySlug(locator)); name != "" {
		return name
	}
	return "Category " + id
}
