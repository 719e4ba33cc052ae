package scanner

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/models"
)

// FallbackScanner is the defensive extractor applied when a platform has no
// registered scanner: it navigates the page and tries generic selectors and
// OpenGraph metadata over the rendered HTML.
type FallbackScanner struct {
	cfg *models.PlatformConfig
}

// NewFallbackScanner builds the generic scanner for an unregistered platform.
func NewFallbackScanner(cfg *models.PlatformConfig) *FallbackScanner {
	return &FallbackScanner{cfg: cfg}
}

func (s *FallbackScanner) Platform() string            { return s.cfg.Platform }
func (s *FallbackScanner) Method() models.StrategyType { return models.StrategyBrowser }

// Scan renders the page and parses the HTML with generic selectors.
func (s *FallbackScanner) Scan(ctx context.Context, url string, pg *browser.Page) (*models.ScannedData, error) {
	if pg == nil {
		return nil, NewBrowserError(nil)
	}

	navCtx, cancel := context.WithTimeout(pg.Ctx(), s.cfg.NavigationTimeout())
	defer cancel()

	var html string
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, classifyNavigationError(err)
	}

	return ParseGenericHTML(html, url, s.cfg.StatusMap)
}

// ParseGenericHTML extracts product data from raw HTML using OpenGraph tags
// and price-ish selectors. Shared with tests and the monitor executor.
func ParseGenericHTML(html, pageURL string, statusMap map[string]string) (*models.ScannedData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, NewExtractionError("parse html", err)
	}

	bodyText := doc.Find("body").Text()
	if ContainsNotFoundToken(bodyText) {
		return nil, ErrProductNotFound
	}

	name := strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", ""))
	if name == "" {
		name = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	thumbnail := doc.Find("meta[property='og:image']").AttrOr("content", "")

	priceText := ""
	doc.Find("[class*='price'], [id*='price']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if ParsePrice(text) > 0 {
			priceText = text
			return false
		}
		return true
	})

	if name == "" && priceText == "" {
		return nil, NewExtractionError("generic extraction found no product fields", nil)
	}

	status := models.SaleStatusOnSale
	if doc.Find("[class*='soldout'], [class*='sold-out']").Length() > 0 {
		status = models.SaleStatusSoldOut
	} else if statusText := strings.TrimSpace(doc.Find("[class*='sale-status'], [class*='status']").First().Text()); statusText != "" {
		status = MapSaleStatus(statusText, statusMap)
	}

	data := &models.ScannedData{
		ProductName:     name,
		Thumbnail:       thumbnail,
		DiscountedPrice: ParsePrice(priceText),
		SaleStatus:      status,
	}
	return Normalize(data, pageURL), nil
}
