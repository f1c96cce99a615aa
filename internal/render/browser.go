package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Browser renders pages in a shared headless Chrome. The browser process is
// started on first use and lives until Close.
type Browser struct {
	opts   Options
	logger *slog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

func NewBrowser(opts Options, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{opts: opts.withDefaults(), logger: logger}
}

func (b *Browser) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if b.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(b.opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelBrowser = cancelBrowser
	return browserCtx, nil
}

// tab opens a new tab that closes when ctx is done or the returned cancel runs.
// The tab is attached on tabCtx itself, so its event loop lives as long as
// the tab and later Runs may use shorter-lived children.
func (b *Browser) tab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	browserCtx, err := b.start()
	if err != nil {
		return nil, nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	stop := context.AfterFunc(ctx, cancelTab)
	cancel := func() {
		stop()
		cancelTab()
	}
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("open tab: %w", err)
	}
	return tabCtx, cancel, nil
}

// Close shuts the browser down. A later Render starts a new one.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx == nil {
		return
	}
	b.cancelBrowser()
	b.cancelAlloc()
	b.browserCtx = nil
}

// Render loads url, lets it settle, scrolls to trigger lazy loading and
// returns the final document together with the JSON responses captured on the way.
func (b *Browser) Render(ctx context.Context, url string) (*Page, error) {
	tabCtx, cancel, err := b.tab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	capture := newCapture()
	chromedp.ListenTarget(tabCtx, capture.listen)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		return nil, fmt.Errorf("enable network: %w", err)
	}
	if err := b.navigate(tabCtx, url); err != nil {
		return nil, err
	}
	if err := sleep(tabCtx, b.opts.SettleDelay); err != nil {
		return nil, err
	}

	distance, err := scrollPage(tabCtx, cdpScroller{}, b.opts.Scroll, realClock)
	if err != nil {
		if tabCtx.Err() != nil {
			return nil, err
		}
		b.logger.Warn("scroll interrupted", "url", url, "error", err)
	}
	b.logger.Debug("page scrolled", "url", url, "distance", distance)

	if err := sleep(tabCtx, b.opts.AfterScrollDelay); err != nil {
		return nil, err
	}

	page := &Page{URL: url}
	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
		chromedp.Title(&page.Title),
	); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	page.Responses = capture.collect(tabCtx, b.logger)
	return page, nil
}

// RenderProduct loads a product page, tries to switch the delivery region and
// takes a full-page screenshot.
func (b *Browser) RenderProduct(ctx context.Context, url, region string) (*Page, error) {
	tabCtx, cancel, err := b.tab(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	if err := b.navigate(tabCtx, url); err != nil {
		return nil, err
	}
	if err := chromedp.Run(tabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("wait for body: %w", err)
	}

	if region != "" {
		if err := b.selectRegion(tabCtx, region); err != nil {
			if tabCtx.Err() != nil {
				return nil, err
			}
			b.logger.Warn("region selection failed, continuing", "region", region, "error", err)
		}
	}
	if err := sleep(tabCtx, b.opts.AfterScrollDelay); err != nil {
		return nil, err
	}

	page := &Page{URL: url}
	if err := chromedp.Run(tabCtx,
		chromedp.FullScreenshot(&page.Screenshot, b.opts.ScreenshotQuality),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
		chromedp.Title(&page.Title),
	); err != nil {
		return nil, fmt.Errorf("capture product page: %w", err)
	}
	return page, nil
}

func (b *Browser) navigate(tabCtx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(tabCtx, b.opts.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigate %s: %w", url, context.DeadlineExceeded)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}
