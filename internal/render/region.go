package render

import (
	"context"
	"errors"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const regionInputMarker = "data-harvest-region"

// clickRegionControl clicks the first element that looks like a location picker.
const clickRegionControl = `(() => {
  const selectors = ['[class*="location"]', '[class*="region"]', '[class*="city"]', 'button', 'a', 'svg'];
  const hints = ['СПб', 'Питер', 'Москва', 'город'];
  for (const sel of selectors) {
    for (const el of document.querySelectorAll(sel)) {
      const text = el.textContent || '';
      const inner = el.innerHTML || '';
      if (hints.some(h => text.includes(h)) || inner.includes('location') || inner.includes('map-pin')) {
        (el.closest('button,a') || el).dispatchEvent(new MouseEvent('click', {bubbles: true}));
        return true;
      }
    }
  }
  return false;
})()`

// markRegionInput tags the address/city input so it can be targeted by selector.
const markRegionInput = `(() => {
  for (const input of document.querySelectorAll('input')) {
    const ph = (input.placeholder || '').toLowerCase();
    if (ph.includes('город') || ph.includes('адрес')) {
      input.setAttribute('data-harvest-region', '1');
      input.value = '';
      return true;
    }
  }
  return false;
})()`

var errNoRegionControl = errors.New("no region control found")

// regionAlreadySelected reports whether the page already mentions the
// region's first word.
func regionAlreadySelected(html, region string) bool {
	fields := strings.Fields(region)
	if len(fields) == 0 {
		return true
	}
	return strings.Contains(html, fields[0])
}

func (b *Browser) selectRegion(ctx context.Context, region string) error {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return err
	}
	if regionAlreadySelected(html, region) {
		b.logger.Debug("region already selected", "region", region)
		return nil
	}

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickRegionControl, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return errNoRegionControl
	}
	if err := sleep(ctx, b.opts.RegionDelay); err != nil {
		return err
	}

	var marked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(markRegionInput, &marked)); err != nil {
		return err
	}
	if !marked {
		return errors.New("no address input after opening region picker")
	}

	selector := "input[" + regionInputMarker + "]"
	if err := chromedp.Run(ctx, chromedp.SendKeys(selector, region, chromedp.ByQuery)); err != nil {
		return err
	}
	if err := sleep(ctx, b.opts.RegionDelay); err != nil {
		return err
	}
	if err := chromedp.Run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return err
	}
	b.logger.Info("region selected", "region", region)
	return nil
}
