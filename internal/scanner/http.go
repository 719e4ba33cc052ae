package scanner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/models"
)

// fieldPaths are the gjson paths an API-driven scanner reads from a
// platform's JSON response.
type fieldPaths struct {
	ProductName     string
	Thumbnail       string
	OriginalPrice   string
	DiscountedPrice string
	SaleStatus      string
	NotFound        string // path whose truthy value marks a missing product
}

func fieldPathsFromOptions(options map[string]interface{}) fieldPaths {
	paths := fieldPaths{
		ProductName:     "name",
		Thumbnail:       "image_url",
		OriginalPrice:   "original_price",
		DiscountedPrice: "discounted_price",
		SaleStatus:      "sale_status",
	}
	fields, ok := options["fields"].(map[string]interface{})
	if !ok {
		return paths
	}
	get := func(key, fallback string) string {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
		return fallback
	}
	paths.ProductName = get("product_name", paths.ProductName)
	paths.Thumbnail = get("thumbnail", paths.Thumbnail)
	paths.OriginalPrice = get("original_price", paths.OriginalPrice)
	paths.DiscountedPrice = get("discounted_price", paths.DiscountedPrice)
	paths.SaleStatus = get("sale_status", paths.SaleStatus)
	paths.NotFound = get("not_found", "")
	return paths
}

// HTTPScanner reads product data from a platform's JSON API instead of a
// rendered page. The borrowed page argument is ignored.
type HTTPScanner struct {
	cfg      *models.PlatformConfig
	endpoint string // template with {productId}, empty means GET the url itself
	paths    fieldPaths
	client   *http.Client
}

// NewHTTPScanner builds an API-driven scanner from strategy options.
func NewHTTPScanner(cfg *models.PlatformConfig, options map[string]interface{}) *HTTPScanner {
	endpoint, _ := options["endpoint_template"].(string)
	return &HTTPScanner{
		cfg:      cfg,
		endpoint: endpoint,
		paths:    fieldPathsFromOptions(options),
		client:   &http.Client{Timeout: cfg.NavigationTimeout()},
	}
}

func (s *HTTPScanner) Platform() string            { return s.cfg.Platform }
func (s *HTTPScanner) Method() models.StrategyType { return models.StrategyHTTP }

// Scan requests the product JSON and maps the configured paths onto
// normalized ScannedData.
func (s *HTTPScanner) Scan(ctx context.Context, url string, _ *browser.Page) (*models.ScannedData, error) {
	target := url
	if s.endpoint != "" {
		productID := extractID(s.cfg, url)
		if productID == "" {
			return nil, NewExtractionError(fmt.Sprintf("cannot extract product id from %s", url), nil)
		}
		target = strings.ReplaceAll(s.endpoint, "{productId}", productID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := s.do(req)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusNotFound || statusCode == http.StatusGone {
		return nil, ErrProductNotFound
	}
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		return nil, NewCloudflareError(fmt.Errorf("status %d", statusCode))
	}
	if statusCode >= 400 {
		return nil, NewNetworkError(fmt.Errorf("unexpected status %d", statusCode))
	}

	return parseJSONProduct(body, s.paths, s.cfg, target)
}

func (s *HTTPScanner) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, resp.StatusCode, NewNetworkError(err)
	}
	return body, resp.StatusCode, nil
}

// parseJSONProduct maps gjson paths onto ScannedData; shared by the http and
// graphql scanners.
func parseJSONProduct(body []byte, paths fieldPaths, cfg *models.PlatformConfig, sourceURL string) (*models.ScannedData, error) {
	if !gjson.ValidBytes(body) {
		return nil, NewExtractionError("response is not valid JSON", nil)
	}
	doc := gjson.ParseBytes(body)

	if paths.NotFound != "" && doc.Get(paths.NotFound).Bool() {
		return nil, ErrProductNotFound
	}
	if source := doc.Get("_source").String(); source == "not_found" {
		return nil, ErrProductNotFound
	}

	name := doc.Get(paths.ProductName)
	if !name.Exists() || name.String() == "" {
		return nil, ErrProductNotFound
	}

	statusToken := doc.Get(paths.SaleStatus).String()
	data := &models.ScannedData{
		ProductName:     name.String(),
		Thumbnail:       doc.Get(paths.Thumbnail).String(),
		OriginalPrice:   priceFromResult(doc.Get(paths.OriginalPrice)),
		DiscountedPrice: priceFromResult(doc.Get(paths.DiscountedPrice)),
		SaleStatus:      MapSaleStatus(statusToken, cfg.StatusMap),
	}
	return Normalize(data, sourceURL), nil
}

func priceFromResult(r gjson.Result) int {
	if r.Type == gjson.Number {
		return int(r.Int())
	}
	return ParsePrice(r.String())
}

func extractID(cfg *models.PlatformConfig, url string) string {
	if cfg.URLPattern.CompiledRegex == nil {
		return ""
	}
	matches := cfg.URLPattern.CompiledRegex.FindStringSubmatch(stripQuery(url))
	group := cfg.URLPattern.ProductIDGroup
	if group <= 0 {
		group = 1
	}
	if len(matches) <= group {
		return ""
	}
	return matches[group]
}
