package httpx

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of an endpoint response is read.
const maxBodyBytes = 32 << 20

// ClientOptions configures a PoliteClient. Zero values fall back to defaults.
type ClientOptions struct {
	UserAgent     string
	SiteURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	RespectRobots bool
}

// PoliteClient enforces per-host rate limits and robots.txt rules for JSON
// endpoint calls. Requests are never retried; a failed call is reported and
// the caller moves on to its next source.
type PoliteClient struct {
	client        *http.Client
	ua            string
	site          string
	limit         rate.Limit
	burst         int
	respectRobots bool
	limiters      map[string]*rate.Limiter
	robotsCache   map[string]*robotstxt.RobotsData
	mu            sync.Mutex
}

func NewPoliteClient(opts ClientOptions) *PoliteClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limit := rate.Every(time.Second)
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	return &PoliteClient{
		client:        &http.Client{Timeout: opts.Timeout},
		ua:            opts.UserAgent,
		site:          strings.TrimRight(opts.SiteURL, "/"),
		limit:         limit,
		burst:         opts.Burst,
		respectRobots: opts.RespectRobots,
		limiters:      map[string]*rate.Limiter{},
		robotsCache:   map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.limiters[host] = l
	return l
}

// NewRequest builds an HTTP GET request with context and a safe URL defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if rawURL == "" {
		return nil, errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// GetJSON fetches rawURL with params merged into its query (params override
// values already present) and returns the decoded body. Any non-2xx status
// is a FetchError.
func (p *PoliteClient) GetJSON(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for k, vs := range params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	p.setBrowserHeaders(req)

	resp, err := p.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("GET %s", req.URL.Redacted())}
	}

	body, err := decodedBody(resp)
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: err}
	}
	return body, nil
}

func (p *PoliteClient) setBrowserHeaders(req *http.Request) {
	h := req.Header
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	// Setting Accept-Encoding disables net/http's transparent gzip; decodedBody handles it.
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-site")
	if p.site != "" {
		h.Set("Referer", p.site+"/")
		h.Set("Origin", p.site)
	}
}

func decodedBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("deflate body: %w", err)
		}
		defer zr.Close()
		r = zr
	case "br":
		r = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Do executes a single request respecting robots.txt and rate limits.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && p.ua != "" {
		req.Header.Set("User-Agent", p.ua)
	}

	u := req.URL
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if p.respectRobots && !p.allowed(ctx, u, req.Method) {
		return nil, &FetchError{Status: http.StatusForbidden, Err: fmt.Errorf("blocked by robots.txt: %s", u.Redacted())}
	}

	if err := p.limiterFor(u.Hostname()).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	return resp, nil
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	group := data.FindGroup(p.ua)
	if group == nil {
		group = data.FindGroup("*")
	}
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if !group.Test(path) {
		return false
	}
	return strings.EqualFold(method, http.MethodGet) || strings.EqualFold(method, http.MethodHead)
}
