package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/baxromumarov/shelf-harvester/internal/catalog"
	"github.com/baxromumarov/shelf-harvester/internal/observability"
	"github.com/baxromumarov/shelf-harvester/internal/render"
	"github.com/baxromumarov/shelf-harvester/internal/scraper"
	"github.com/baxromumarov/shelf-harvester/internal/urlutil"
)

const (
	LabelRenderNetwork = "render:network"
	LabelRenderDOM     = "render:dom"
	LabelMarkup        = "markup"
)

type JSONClient interface {
	GetJSON(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

type MarkupFetcher interface {
	FetchMarkup(ctx context.Context, rawURL string) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, url string) (*render.Page, error)
	RenderProduct(ctx context.Context, url, region string) (*render.Page, error)
}

type ResultStore interface {
	SaveResult(ctx context.Context, result catalog.Result) (int64, error)
	DeleteOldRuns(ctx context.Context, retention time.Duration) (int64, error)
}

// Settings carry the source addresses and harvest knobs.
type Settings struct {
	SiteURL          string
	APIURL           string
	CityCode         string
	Sort             string
	PageLimit        int
	CandidateTimeout time.Duration
	RenderEnabled    bool
}

func (s Settings) withDefaults() Settings {
	if s.SiteURL == "" {
		s.SiteURL = "https://www.vprok.ru"
	}
	if s.APIURL == "" {
		s.APIURL = "https://api.vprok.ru"
	}
	if s.Sort == "" {
		s.Sort = "popular"
	}
	if s.PageLimit <= 0 {
		s.PageLimit = 100
	}
	if s.CandidateTimeout <= 0 {
		s.CandidateTimeout = 90 * time.Second
	}
	return s
}

type HarvestService struct {
	settings Settings
	client   JSONClient
	markup   MarkupFetcher
	renderer Renderer
	store    ResultStore
	logger   *slog.Logger
	sink     observability.Sink
	now      func() time.Time
}

type Option func(*HarvestService)

func WithRenderer(r Renderer) Option { return func(s *HarvestService) { s.renderer = r } }

func WithStore(st ResultStore) Option { return func(s *HarvestService) { s.store = st } }

func WithLogger(l *slog.Logger) Option { return func(s *HarvestService) { s.logger = l } }

// WithSink adds a sink next to the default log and stats sinks.
func WithSink(sink observability.Sink) Option {
	return func(s *HarvestService) { s.sink = observability.Fanout(s.sink, sink) }
}

func NewHarvestService(settings Settings, client JSONClient, markup MarkupFetcher, opts ...Option) *HarvestService {
	s := &HarvestService{
		settings: settings.withDefaults(),
		client:   client,
		markup:   markup,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	base := observability.Fanout(observability.LogSink{Logger: s.logger}, observability.StatsSink{})
	if s.sink == nil {
		s.sink = base
	} else {
		s.sink = observability.Fanout(base, s.sink)
	}
	return s
}

// HarvestCategory runs the product cascade for one category locator, resolves
// the category descriptor and, when a store is configured, persists the result.
// Only a locator without a category id is an error; an exhausted cascade
// yields a result with Success=false and no products.
func (s *HarvestService) HarvestCategory(ctx context.Context, locator string) (catalog.Result, error) {
	id, err := urlutil.CategoryID(locator)
	if err != nil {
		return catalog.Result{}, fmt.Errorf("%w: %w", catalog.ErrConfiguration, err)
	}
	s.logger.Info("harvesting category", "url", locator, "category_id", id)

	session := &renderSession{renderer: s.renderer, url: locator, enabled: s.settings.RenderEnabled}
	opts := CascadeOptions{Pipeline: "products", Timeout: s.settings.CandidateTimeout, Sink: s.sink}

	harvest := NewCascade(opts).Run(ctx, s.productCandidates(id, session))

	resolver := &CategoryResolver{
		Client:  s.client,
		Markup:  s.markup,
		SiteURL: s.settings.SiteURL,
		APIURL:  s.settings.APIURL,
		Options: opts,
	}
	category := resolver.Resolve(ctx, locator, id, session.rendered)

	products := harvest.Products
	if products == nil {
		products = []catalog.Product{}
	}
	if category.ProductCount == 0 {
		category.ProductCount = len(products)
	}

	result := catalog.Result{
		Metadata: catalog.Metadata{
			ParsedAt:      s.now().UTC(),
			SourceURL:     locator,
			CategoryID:    id,
			TotalCount:    len(products),
			Success:       !harvest.Exhausted(),
			Strategy:      harvest.Strategy,
			ParserVersion: catalog.ParserVersion,
		},
		Category: category,
		Products: products,
	}

	observability.IncHarvest(harvest.Exhausted())
	observability.AddProductsHarvested(len(products))
	s.logger.Info("category harvested",
		"url", locator,
		"strategy", harvest.Strategy,
		"products", len(products),
		"attempts", len(harvest.Trace),
	)

	if s.store != nil {
		runID, err := s.store.SaveResult(ctx, result)
		if err != nil {
			s.logger.Error("failed to save harvest", "url", locator, "error", err)
		} else {
			s.logger.Debug("harvest saved", "run_id", runID)
		}
	}
	return result, nil
}

// productCandidates lists the product sources in the order they are tried.
func (s *HarvestService) productCandidates(id string, session *renderSession) []Candidate {
	var out []Candidate
	for i, endpoint := range s.endpoints(id) {
		out = append(out, Candidate{
			Label:   "api:" + strconv.Itoa(i+1),
			Extract: s.endpointCandidate(endpoint, "api:"+strconv.Itoa(i+1)),
		})
	}

	out = append(out,
		Candidate{Label: LabelRenderNetwork, Extract: func(ctx context.Context) (scraper.Outcome, error) {
			page, err := session.page(ctx)
			if err != nil || page == nil {
				return scraper.Outcome{Source: LabelRenderNetwork}, err
			}
			return networkOutcome(page.Responses), nil
		}},
		Candidate{Label: LabelRenderDOM, Extract: func(ctx context.Context) (scraper.Outcome, error) {
			page, err := session.page(ctx)
			if err != nil || page == nil {
				return scraper.Outcome{Source: LabelRenderDOM}, err
			}
			return scraper.NewDOMExtractor(page.URL).ExtractHTML(page.HTML)
		}},
		Candidate{Label: LabelMarkup, Extract: func(ctx context.Context) (scraper.Outcome, error) {
			markup := ""
			if page := session.rendered(); page != nil {
				markup = page.HTML
			} else {
				if s.markup == nil {
					return scraper.Outcome{Source: LabelMarkup}, nil
				}
				var err error
				if markup, err = s.markup.FetchMarkup(ctx, session.url); err != nil {
					return scraper.Outcome{Source: LabelMarkup}, err
				}
			}
			return scraper.NewMarkupExtractor(s.settings.SiteURL).Extract(markup), nil
		}},
	)
	return out
}

func (s *HarvestService) endpoints(id string) []string {
	return []string{
		s.settings.APIURL + "/api/v1/catalog/category/" + id + "/products",
		s.settings.SiteURL + "/api/catalog/v1/categories/" + id + "/products",
		s.settings.SiteURL + "/api/v1/catalog/products?category_id=" + id,
		s.settings.SiteURL + "/api/catalog/v1/products?category=" + id + "&limit=" + strconv.Itoa(s.settings.PageLimit),
	}
}

func (s *HarvestService) endpointCandidate(endpoint, label string) func(context.Context) (scraper.Outcome, error) {
	return func(ctx context.Context) (scraper.Outcome, error) {
		if s.client == nil {
			return scraper.Outcome{Source: label}, nil
		}
		params := url.Values{}
		params.Set("limit", strconv.Itoa(s.settings.PageLimit))
		params.Set("offset", "0")
		params.Set("sort", s.settings.Sort)
		if s.settings.CityCode != "" {
			params.Set("city_code", s.settings.CityCode)
		}

		body, err := s.client.GetJSON(ctx, endpoint, params)
		if err != nil {
			return scraper.Outcome{Source: label}, err
		}
		root, err := scraper.DecodeBytes(body)
		if err != nil {
			return scraper.Outcome{Source: label}, err
		}
		return scraper.ExtractPayload(root, label), nil
	}
}

// networkOutcome searches every captured response in capture order and keeps
// all product-like records found. Bodies that are not JSON are skipped.
func networkOutcome(responses []render.Response) scraper.Outcome {
	out := scraper.Outcome{Source: LabelRenderNetwork}
	for _, resp := range responses {
		root, err := scraper.DecodeBytes(resp.Body)
		if err != nil {
			continue
		}
		out.Items = append(out.Items, scraper.FindCandidates(root)...)
	}
	return out
}

// HarvestProduct renders a product page in the given delivery region and
// extracts its prices, rating and review count.
func (s *HarvestService) HarvestProduct(ctx context.Context, productURL, region string) (catalog.ProductDetail, error) {
	if urlutil.DetectPageType(productURL) != urlutil.PageTypeProduct {
		return catalog.ProductDetail{}, fmt.Errorf("%w: not a product url: %s", catalog.ErrConfiguration, productURL)
	}
	if s.renderer == nil {
		return catalog.ProductDetail{}, fmt.Errorf("%w: rendering is disabled", catalog.ErrConfiguration)
	}

	s.logger.Info("harvesting product", "url", productURL, "region", region)
	renderCtx, cancel := context.WithTimeout(ctx, s.settings.CandidateTimeout)
	defer cancel()
	page, err := s.renderer.RenderProduct(renderCtx, productURL, region)
	if err != nil {
		observability.IncError(observability.Classify(err), "product")
		return catalog.ProductDetail{}, fmt.Errorf("render product page: %w", err)
	}
	observability.IncPagesRendered()

	fields := scraper.ExtractDetail(page.HTML)
	return catalog.ProductDetail{
		URL:          productURL,
		Region:       region,
		Prices:       fields.Prices,
		Rating:       fields.Rating,
		ReviewsCount: fields.ReviewsCount,
		CapturedAt:   s.now().UTC(),
		Screenshot:   page.Screenshot,
	}, nil
}

// renderSession renders the category page at most once per harvest.
type renderSession struct {
	renderer Renderer
	url      string
	enabled  bool

	mu   sync.Mutex
	done bool
	got  *render.Page
	err  error
}

func (r *renderSession) page(ctx context.Context) (*render.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return r.got, r.err
	}
	if !r.enabled || r.renderer == nil {
		r.done = true
		return nil, nil
	}
	r.got, r.err = r.renderer.Render(ctx, r.url)
	if r.err == nil {
		observability.IncPagesRendered()
	}
	r.done = true
	return r.got, r.err
}

// rendered returns the page if one was already rendered, without rendering.
func (r *renderSession) rendered() *render.Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got
}
