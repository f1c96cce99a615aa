package render

import (
	"context"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// capture remembers listing-like responses in the order they arrived. Bodies
// are fetched after the page settled, outside the event listener.
type capture struct {
	mu       sync.Mutex
	order    []network.RequestID
	urls     map[network.RequestID]string
	finished map[network.RequestID]bool
}

func newCapture() *capture {
	return &capture{
		urls:     map[network.RequestID]string{},
		finished: map[network.RequestID]bool{},
	}
}

func (c *capture) listen(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil || !wantsResponse(e.Response.URL) {
			return
		}
		c.mu.Lock()
		if _, seen := c.urls[e.RequestID]; !seen {
			c.order = append(c.order, e.RequestID)
			c.urls[e.RequestID] = e.Response.URL
		}
		c.mu.Unlock()
	case *network.EventLoadingFinished:
		c.mu.Lock()
		c.finished[e.RequestID] = true
		c.mu.Unlock()
	}
}

// ready returns the captured requests whose bodies have fully arrived.
func (c *capture) ready() []network.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []network.RequestID
	for _, id := range c.order {
		if c.finished[id] {
			out = append(out, id)
		}
	}
	return out
}

func (c *capture) collect(ctx context.Context, logger *slog.Logger) []Response {
	var out []Response
	for _, id := range c.ready() {
		var body []byte
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		c.mu.Lock()
		url := c.urls[id]
		c.mu.Unlock()
		if err != nil {
			logger.Debug("captured response body unavailable", "url", url, "error", err)
			continue
		}
		out = append(out, Response{URL: url, Body: body})
	}
	return out
}
