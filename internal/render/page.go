package render

import (
	"strings"
	"time"
)

// Page is what one render of a URL leaves behind.
type Page struct {
	URL        string
	HTML       string
	Title      string
	Responses  []Response
	Screenshot []byte
}

// Response is a JSON body the page fetched while it was rendering.
type Response struct {
	URL  string
	Body []byte
}

type Options struct {
	UserAgent         string
	Headless          bool
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	AfterScrollDelay  time.Duration
	RegionDelay       time.Duration
	ScreenshotQuality int
	Scroll            ScrollOptions
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if o.RegionDelay <= 0 {
		o.RegionDelay = 2 * time.Second
	}
	if o.ScreenshotQuality <= 0 || o.ScreenshotQuality > 100 {
		o.ScreenshotQuality = 80
	}
	o.Scroll = o.Scroll.withDefaults()
	return o
}

// wantsResponse picks the network responses that may carry listing data.
func wantsResponse(rawURL string) bool {
	u := strings.ToLower(rawURL)
	return strings.Contains(u, "/api/") && (strings.Contains(u, "product") || strings.Contains(u, "catalog"))
}
