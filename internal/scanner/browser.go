package scanner

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/models"
)

// BrowserScanner drives a real page through chromedp and extracts product
// data with the platform's DOM selector set.
type BrowserScanner struct {
	cfg       *models.PlatformConfig
	extractor DOMExtractor
}

// NewBrowserScanner builds a browser-driven scanner for a platform.
func NewBrowserScanner(cfg *models.PlatformConfig, options map[string]interface{}) *BrowserScanner {
	return &BrowserScanner{
		cfg:       cfg,
		extractor: extractorFromOptions(cfg.Platform, options),
	}
}

func (s *BrowserScanner) Platform() string           { return s.cfg.Platform }
func (s *BrowserScanner) Method() models.StrategyType { return models.StrategyBrowser }

// Scan navigates the borrowed page to the product URL and extracts
// normalized data. Navigation waits for DOM readiness only; target sites
// hold connections open, so waiting for network idle would never return.
func (s *BrowserScanner) Scan(ctx context.Context, url string, pg *browser.Page) (*models.ScannedData, error) {
	if pg == nil {
		return nil, NewBrowserError(fmt.Errorf("browser scan requires a page"))
	}

	navCtx, cancel := context.WithTimeout(pg.Ctx(), s.cfg.NavigationTimeout())
	defer cancel()

	var statusCode int64
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, classifyNavigationError(err)
	}
	if resp != nil {
		statusCode = resp.Status
	}

	var currentURL string
	if err := chromedp.Run(navCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&currentURL),
	); err != nil {
		return nil, classifyNavigationError(err)
	}

	if statusCode == http.StatusNotFound || statusCode == http.StatusGone {
		return nil, ErrProductNotFound
	}

	// A redirect away from the product-detail URL means the product was
	// withdrawn, not that scanning failed.
	if s.cfg.URLPattern.CompiledRegex != nil &&
		s.cfg.URLPattern.CompiledRegex.MatchString(stripQuery(url)) &&
		!s.cfg.URLPattern.CompiledRegex.MatchString(stripQuery(currentURL)) {
		return nil, ErrProductNotFound
	}

	var raw rawExtraction
	if err := chromedp.Run(navCtx, chromedp.Evaluate(ExtractionScript(s.extractor), &raw)); err != nil {
		return nil, NewExtractionError("evaluate extraction script", err)
	}

	if ContainsNotFoundToken(raw.BodyText) {
		return nil, ErrProductNotFound
	}
	if strings.Contains(raw.BodyText, "Cloudflare") || strings.Contains(raw.BodyText, "확인 중입니다") {
		return nil, NewCloudflareError(nil)
	}
	if raw.Name == "" && raw.Price == "" {
		return nil, NewExtractionError("no product fields extracted", nil)
	}

	status := models.SaleStatusOnSale
	if raw.SoldOut {
		status = models.SaleStatusSoldOut
	} else if raw.StatusText != "" {
		status = MapSaleStatus(raw.StatusText, s.cfg.StatusMap)
	}

	data := &models.ScannedData{
		ProductName:     raw.Name,
		Thumbnail:       raw.Thumbnail,
		OriginalPrice:   ParsePrice(raw.OriginalPrice),
		DiscountedPrice: ParsePrice(raw.Price),
		SaleStatus:      status,
	}
	return Normalize(data, currentURL), nil
}

func classifyNavigationError(err error) error {
	switch Classify(err) {
	case KindNetwork:
		return NewNetworkError(err)
	case KindBrowser:
		return NewBrowserError(err)
	case KindNotFound:
		return ErrProductNotFound
	default:
		return NewNetworkError(err)
	}
}

func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
