package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// hostBackoff is how long a host is left alone after a 429 or 5xx.
const hostBackoff = time.Second

// CollyFetcher fetches raw category markup through Colly. Every fetch is a
// single attempt; a 429 or 5xx delays the next fetch from the same host.
type CollyFetcher struct {
	userAgent     string
	timeout       time.Duration
	respectRobots bool
	limit         rate.Limit
	burst         int

	mu    sync.Mutex
	gates map[string]*hostGate
}

// hostGate paces the requests sent to one host.
type hostGate struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	notBefore time.Time
}

// FetchError reports a transport failure (Status 0) or an unusable HTTP status.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewCollyFetcher(opts ClientOptions) *CollyFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "shelf-harvester/1.0"
	}
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
	return &CollyFetcher{
		userAgent:     opts.UserAgent,
		timeout:       opts.Timeout,
		respectRobots: opts.RespectRobots,
		limit:         limit,
		burst:         opts.Burst,
		gates:         make(map[string]*hostGate),
	}
}

// FetchMarkup returns the document served at rawURL. A missing scheme
// defaults to https.
func (f *CollyFetcher) FetchMarkup(ctx context.Context, rawURL string) (string, error) {
	target, host, err := fetchTarget(rawURL)
	if err != nil {
		return "", err
	}
	gate := f.gate(host)
	if err := gate.wait(ctx); err != nil {
		return "", err
	}

	body, status, err := f.get(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			gate.delay(hostBackoff)
		}
		return "", &FetchError{Status: status, Err: err}
	}
	return string(body), nil
}

// get issues one GET through a fresh collector.
func (f *CollyFetcher) get(ctx context.Context, target string) ([]byte, int, error) {
	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	c.IgnoreRobotsTxt = !f.respectRobots
	c.SetRequestTimeout(f.timeout)

	var (
		body   []byte
		status int
		getErr error
	)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		getErr = err
	})

	if err := c.Visit(target); err != nil {
		return nil, status, err
	}
	if err := ctx.Err(); err != nil {
		return nil, status, err
	}
	if getErr != nil {
		return nil, status, getErr
	}
	if status >= 400 {
		return nil, status, fmt.Errorf("status %d", status)
	}
	return body, status, nil
}

func (f *CollyFetcher) gate(host string) *hostGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[host]
	if !ok {
		g = &hostGate{limiter: rate.NewLimiter(f.limit, f.burst)}
		f.gates[host] = g
	}
	return g
}

func (g *hostGate) wait(ctx context.Context) error {
	g.mu.Lock()
	pause := time.Until(g.notBefore)
	g.mu.Unlock()
	if pause > 0 {
		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return g.limiter.Wait(ctx)
}

func (g *hostGate) delay(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if next := time.Now().Add(d); next.After(g.notBefore) {
		g.notBefore = next
	}
}

// fetchTarget resolves rawURL and the host key its requests are paced under.
func fetchTarget(rawURL string) (string, string, error) {
	if rawURL == "" {
		return "", "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return u.String(), host, nil
}
