package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ScrollOptions bound the lazy-load scroll loop.
type ScrollOptions struct {
	Step        int
	Interval    time.Duration
	MaxDistance int
	MaxDuration time.Duration
}

func (o ScrollOptions) withDefaults() ScrollOptions {
	if o.Step <= 0 {
		o.Step = 500
	}
	if o.Interval <= 0 {
		o.Interval = 300 * time.Millisecond
	}
	if o.MaxDistance <= 0 {
		o.MaxDistance = 5000
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 10 * time.Second
	}
	return o
}

type scroller interface {
	DocumentHeight(ctx context.Context) (int, error)
	ScrollBy(ctx context.Context, dy int) error
}

type clock struct {
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

var realClock = clock{now: time.Now, wait: sleep}

// scrollPage scrolls by opts.Step every opts.Interval until the accumulated
// distance covers the document, exceeds MaxDistance, MaxDuration elapses or
// ctx is done. It returns the distance scrolled.
func scrollPage(ctx context.Context, s scroller, opts ScrollOptions, c clock) (int, error) {
	opts = opts.withDefaults()
	start := c.now()
	distance := 0
	for {
		height, err := s.DocumentHeight(ctx)
		if err != nil {
			return distance, fmt.Errorf("document height: %w", err)
		}
		if err := s.ScrollBy(ctx, opts.Step); err != nil {
			return distance, fmt.Errorf("scroll: %w", err)
		}
		distance += opts.Step

		if distance >= height || distance > opts.MaxDistance || c.now().Sub(start) > opts.MaxDuration {
			return distance, nil
		}
		if err := c.wait(ctx, opts.Interval); err != nil {
			return distance, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cdpScroller drives window scrolling in a chromedp tab.
type cdpScroller struct{}

func (cdpScroller) DocumentHeight(ctx context.Context) (int, error) {
	var h int
	err := chromedp.Run(ctx, chromedp.Evaluate(`document.body ? document.body.scrollHeight : 0`, &h))
	return h, err
}

func (cdpScroller) ScrollBy(ctx context.Context, dy int) error {
	return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, dy), nil))
}
