package nodes

import (
	"context"
	"sync"
	"time"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
)

type fakeProductRepo struct {
	mu       sync.Mutex
	products []models.ProductSet
	updates  []interfaces.ProductUpdate
	rowErrs  []interfaces.UpdateRowError
	findErr  error
}

func (r *fakeProductRepo) FindProducts(_ context.Context, filter interfaces.ProductFilter) ([]models.ProductSet, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	start := filter.Offset
	if start > len(r.products) {
		start = len(r.products)
	}
	end := len(r.products)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return append([]models.ProductSet(nil), r.products[start:end]...), nil
}

func (r *fakeProductRepo) FindByIDs(_ context.Context, ids []string) ([]models.ProductSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.ProductSet
	for _, id := range ids {
		for _, p := range r.products {
			if p.ProductSetID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (r *fakeProductRepo) BatchUpdateProducts(_ context.Context, updates []interfaces.ProductUpdate) (int, []interfaces.UpdateRowError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates = append(r.updates, updates...)
	failed := make(map[string]bool, len(r.rowErrs))
	for _, re := range r.rowErrs {
		failed[re.ProductSetID] = true
	}

	updated := 0
	for _, u := range updates {
		if failed[u.ProductSetID] {
			continue
		}
		for i := range r.products {
			if r.products[i].ProductSetID != u.ProductSetID {
				continue
			}
			for field, value := range u.Fields {
				switch field {
				case "product_name":
					r.products[i].ProductName = value.(string)
				case "thumbnail":
					r.products[i].Thumbnail = value.(string)
				case "original_price":
					r.products[i].OriginalPrice = value.(int)
				case "discounted_price":
					r.products[i].DiscountedPrice = value.(int)
				case "sale_status":
					r.products[i].SaleStatus = models.SaleStatus(value.(string))
				}
			}
		}
		updated++
	}
	return updated, r.rowErrs, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	reviews []interfaces.ReviewHistory
	prices  []interfaces.PriceHistory
	err     error
}

func (r *fakeHistoryRepo) InsertReviewHistory(_ context.Context, h interfaces.ReviewHistory) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = append(r.reviews, h)
	return nil
}

func (r *fakeHistoryRepo) UpsertPriceHistory(_ context.Context, h interfaces.PriceHistory) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, h)
	return nil
}

type fakeBannerRepo struct {
	items []interfaces.BannerItem
	err   error
}

func (r *fakeBannerRepo) ActiveCollaboBanners(context.Context, time.Time) ([]interfaces.BannerItem, error) {
	return r.items, r.err
}
func (r *fakeBannerRepo) ActiveBanners(context.Context) ([]interfaces.BannerItem, error) {
	return r.items, r.err
}
func (r *fakeBannerRepo) PickSectionItems(context.Context) ([]interfaces.BannerItem, error) {
	return r.items, r.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []interfaces.Notification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, notification interfaces.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

type fakeSession struct{}

func (fakeSession) Page() *browser.Page { return nil }
func (fakeSession) RotatePage() error   { return nil }
func (fakeSession) RotateContext() error {
	return nil
}
func (fakeSession) Close() {}

type fakeSessionFactory struct{}

func (fakeSessionFactory) NewSession(context.Context) (engine.Session, error) {
	return fakeSession{}, nil
}

// stubScanner serves canned results per URL.
type stubScanner struct {
	platform string
	results  map[string]*models.ScannedData
	errs     map[string]error
}

func (s *stubScanner) Platform() string            { return s.platform }
func (s *stubScanner) Method() models.StrategyType { return models.StrategyHTTP }

func (s *stubScanner) Scan(_ context.Context, url string, _ *browser.Page) (*models.ScannedData, error) {
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	if data, ok := s.results[url]; ok {
		return data, nil
	}
	return nil, nil
}

func testPlatformConfig(platform string) *models.PlatformConfig {
	cfg := &models.PlatformConfig{
		Platform: platform,
		URLPattern: models.URLPattern{
			Domain: platform + ".example.com",
		},
	}
	cfg.Workflow.Concurrency.Default = 1
	return cfg
}

func testNodeContext(platform string, cfg *models.PlatformConfig, nodeCfg map[string]interface{}) *pipeline.NodeContext {
	if nodeCfg == nil {
		nodeCfg = map[string]interface{}{}
	}
	return &pipeline.NodeContext{
		JobID:          "job-test",
		WorkflowID:     "test",
		Platform:       platform,
		PlatformConfig: cfg,
		Config:         nodeCfg,
		Params:         map[string]interface{}{},
		Logger:         common.GetLogger(),
		State:          pipeline.NewSharedState(),
	}
}

func product(id string, price int) models.ProductSet {
	return models.ProductSet{
		ProductSetID:    id,
		ProductID:       "P-" + id,
		LinkURL:         "https://oliveyoung.example.com/goods/" + id,
		ProductName:     "토너",
		Thumbnail:       "https://img.cdn.com/" + id + ".jpg",
		OriginalPrice:   10000,
		DiscountedPrice: price,
		SaleStatus:      models.SaleStatusOnSale,
	}
}

func fetchOf(p models.ProductSet) *models.ScannedData {
	return &models.ScannedData{
		ProductName:     p.ProductName,
		Thumbnail:       p.Thumbnail,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.DiscountedPrice,
		SaleStatus:      p.SaleStatus,
	}
}
