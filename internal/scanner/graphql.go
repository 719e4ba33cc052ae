package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/models"
)

// GraphQLScanner posts the query embedded in the platform's strategy options
// and reads product fields out of the response. The borrowed page argument
// is ignored.
type GraphQLScanner struct {
	cfg      *models.PlatformConfig
	endpoint string
	query    string
	paths    fieldPaths
	client   *http.Client
}

// NewGraphQLScanner builds a GraphQL-driven scanner from strategy options.
// Options: "endpoint", "query" (with a $productId variable), "fields".
func NewGraphQLScanner(cfg *models.PlatformConfig, options map[string]interface{}) *GraphQLScanner {
	endpoint, _ := options["endpoint"].(string)
	query, _ := options["query"].(string)

	paths := fieldPathsFromOptions(options)
	// GraphQL responses nest under data.* unless the config says otherwise.
	if _, hasFields := options["fields"]; !hasFields {
		paths = fieldPaths{
			ProductName:     "data.product.name",
			Thumbnail:       "data.product.imageUrl",
			OriginalPrice:   "data.product.originalPrice",
			DiscountedPrice: "data.product.discountedPrice",
			SaleStatus:      "data.product.saleStatus",
		}
	}

	return &GraphQLScanner{
		cfg:      cfg,
		endpoint: endpoint,
		query:    query,
		paths:    paths,
		client:   &http.Client{Timeout: cfg.NavigationTimeout()},
	}
}

func (s *GraphQLScanner) Platform() string            { return s.cfg.Platform }
func (s *GraphQLScanner) Method() models.StrategyType { return models.StrategyGraphQL }

// Scan executes the configured query for the product id taken from the URL.
func (s *GraphQLScanner) Scan(ctx context.Context, url string, _ *browser.Page) (*models.ScannedData, error) {
	if s.endpoint == "" || s.query == "" {
		return nil, NewExtractionError("graphql strategy missing endpoint or query", nil)
	}
	productID := extractID(s.cfg, url)
	if productID == "" {
		return nil, NewExtractionError(fmt.Sprintf("cannot extract product id from %s", url), nil)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"query":     s.query,
		"variables": map[string]string{"productId": productID},
	})
	if err != nil {
		return nil, NewExtractionError("marshal graphql payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewNetworkError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, NewNetworkError(err)
	}
	if resp.StatusCode >= 400 {
		return nil, NewNetworkError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// GraphQL transports report "not found" as errors in the envelope.
	if strings.Contains(string(body), `"errors"`) {
		var envelope struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
			msg := envelope.Errors[0].Message
			if strings.Contains(strings.ToLower(msg), "not found") {
				return nil, ErrProductNotFound
			}
			return nil, NewExtractionError("graphql error: "+msg, nil)
		}
	}

	return parseJSONProduct(body, s.paths, s.cfg, url)
}
