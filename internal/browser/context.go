package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript hides the usual automation fingerprints. Target sites probe
// navigator.webdriver before rendering product data, so the shim must run on
// every new document, not just once per session.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
`

// TabContext is an isolated browsing context created from a pooled browser.
// Short-lived and owned by the caller; the scan loop rotates these to bound
// memory growth.
type TabContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Page is a single tab within a TabContext. Scanners borrow a page for the
// duration of one scan call.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTabContext creates a fresh context on the given browser and applies the
// anti-detection shims. The shims are re-applied for every new context.
func NewTabContext(b *Browser) (*TabContext, error) {
	ctx, cancel := chromedp.NewContext(b.ctx)

	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})); err != nil {
		cancel()
		return nil, fmt.Errorf("apply stealth shims: %w", err)
	}

	return &TabContext{ctx: ctx, cancel: cancel}, nil
}

// NewPage opens a new tab in this context.
func (c *TabContext) NewPage() (*Page, error) {
	ctx, cancel := chromedp.NewContext(c.ctx)
	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &Page{ctx: ctx, cancel: cancel}, nil
}

// Ctx exposes the chromedp context for running actions on this page.
func (p *Page) Ctx() context.Context { return p.ctx }

// Close closes the page. Safe to call on a nil page.
func (p *Page) Close() {
	if p == nil || p.cancel == nil {
		return
	}
	p.cancel()
}

// Close closes the context and every page opened from it.
func (c *TabContext) Close() {
	if c == nil || c.cancel == nil {
		return
	}
	c.cancel()
}
