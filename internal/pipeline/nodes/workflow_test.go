package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/platform"
	"github.com/prodwatch/veriscan/internal/scanner"
	"github.com/prodwatch/veriscan/internal/writer"
)

type fixture struct {
	executor *pipeline.Executor
	products *fakeProductRepo
	history  *fakeHistoryRepo
	notifier *fakeNotifier
	cfg      *models.PlatformConfig
}

// newFixture wires the full node set over fakes, the way cmd wires it over
// real backends.
func newFixture(t *testing.T, rows []models.ProductSet, stub *stubScanner) *fixture {
	t.Helper()

	logger := common.GetLogger()
	cfg := testPlatformConfig("oliveyoung")

	platforms, err := platform.NewRegistry([]*models.PlatformConfig{cfg})
	require.NoError(t, err)

	scanners := scanner.NewRegistry(logger)
	if stub != nil {
		scanners.Register(stub)
	}

	f := &fixture{
		products: &fakeProductRepo{products: rows},
		history:  &fakeHistoryRepo{},
		notifier: &fakeNotifier{},
		cfg:      cfg,
	}

	appCfg := &common.Config{}
	appCfg.Results.Dir = t.TempDir()
	appCfg.Validation.MaxConsecutiveFailures = 5

	registry := pipeline.NewNodeRegistry()
	RegisterAll(registry, Deps{
		Products:  f.products,
		History:   f.history,
		Banners:   &fakeBannerRepo{},
		Notifier:  f.notifier,
		Alerter:   f.notifier,
		Scanners:  scanners,
		Platforms: platforms,
		Sessions:  fakeSessionFactory{},
		Config:    appCfg,
		Logger:    logger,
	})

	f.executor = pipeline.NewExecutor(registry, pipeline.NewWorkflowRegistry(), logger)
	return f
}

func TestProductValidationAllMatched(t *testing.T) {
	a := product("A", 8000)
	b := product("B", 9000)
	stub := &stubScanner{
		platform: "oliveyoung",
		results: map[string]*models.ScannedData{
			a.LinkURL: fetchOf(a),
			b.LinkURL: fetchOf(b),
		},
	}
	f := newFixture(t, []models.ProductSet{a, b}, stub)

	job := models.NewJob(pipeline.WorkflowProductValidation, "oliveyoung", 0, nil)
	require.NoError(t, f.executor.ExecuteJob(context.Background(), job, f.cfg))

	// Nothing diverged, so nothing is written back.
	assert.Empty(t, f.products.updates)
	assert.Empty(t, f.history.reviews)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "✅", f.notifier.sent[0].Emoji)
}

func TestProductValidationPriceDriftUpdatesCatalog(t *testing.T) {
	a := product("A", 8000)
	drifted := fetchOf(a)
	drifted.DiscountedPrice = 7500

	stub := &stubScanner{
		platform: "oliveyoung",
		results:  map[string]*models.ScannedData{a.LinkURL: drifted},
	}
	f := newFixture(t, []models.ProductSet{a}, stub)

	job := models.NewJob(pipeline.WorkflowProductValidation, "oliveyoung", 0, nil)
	require.NoError(t, f.executor.ExecuteJob(context.Background(), job, f.cfg))

	require.Len(t, f.products.updates, 1)
	assert.Equal(t, map[string]interface{}{"discounted_price": 7500}, f.products.updates[0].Fields)
	assert.Equal(t, 7500, f.products.products[0].DiscountedPrice)

	require.Len(t, f.history.reviews, 1)
	assert.Equal(t, "updated", f.history.reviews[0].Status)
	require.Len(t, f.history.prices, 1)
	assert.Equal(t, 7500, f.history.prices[0].DiscountPrice)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "⚠️", f.notifier.sent[0].Emoji)
}

func TestProductValidationNotFoundSkipsUpdate(t *testing.T) {
	a := product("A", 8000)
	gone := product("B", 9000)
	stub := &stubScanner{
		platform: "oliveyoung",
		results:  map[string]*models.ScannedData{a.LinkURL: fetchOf(a)},
		errs:     map[string]error{gone.LinkURL: scanner.ErrProductNotFound},
	}
	f := newFixture(t, []models.ProductSet{a, gone}, stub)

	job := models.NewJob(pipeline.WorkflowProductValidation, "oliveyoung", 0, nil)
	require.NoError(t, f.executor.ExecuteJob(context.Background(), job, f.cfg))

	assert.Empty(t, f.products.updates)

	require.Len(t, f.notifier.sent, 1)
	// 1 of 2 missing is a 50% failure share.
	assert.Equal(t, "🚨", f.notifier.sent[0].Emoji)
}

func TestProductValidationWritesResultFile(t *testing.T) {
	a := product("A", 8000)
	stub := &stubScanner{
		platform: "oliveyoung",
		results:  map[string]*models.ScannedData{a.LinkURL: fetchOf(a)},
	}
	f := newFixture(t, []models.ProductSet{a}, stub)

	job := models.NewJob(pipeline.WorkflowProductValidation, "oliveyoung", 0, nil)
	require.NoError(t, f.executor.ExecuteJob(context.Background(), job, f.cfg))

	require.Len(t, f.notifier.sent, 1)
	path := f.notifier.sent[0].FilePath
	require.NotEmpty(t, path)

	records, err := writer.ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0].ProductSetID)
	assert.Equal(t, "oliveyoung", records[0].Platform)
	assert.True(t, records[0].Match)
}

func TestBannerMonitorWorkflow(t *testing.T) {
	a := product("A", 8000)
	stub := &stubScanner{
		platform: "oliveyoung",
		errs:     map[string]error{a.LinkURL: scanner.ErrProductNotFound},
	}
	f := newFixture(t, nil, stub)

	// Rewire the banner repo with one broken entry.
	logger := common.GetLogger()
	platforms, err := platform.NewRegistry([]*models.PlatformConfig{f.cfg})
	require.NoError(t, err)
	scanners := scanner.NewRegistry(logger)
	scanners.Register(stub)

	appCfg := &common.Config{}
	appCfg.Results.Dir = t.TempDir()

	registry := pipeline.NewNodeRegistry()
	RegisterAll(registry, Deps{
		Products: f.products,
		History:  f.history,
		Banners: &fakeBannerRepo{items: []interfaces.BannerItem{
			{ID: "1", ProductSetID: "A", LinkURL: a.LinkURL},
		}},
		Notifier:  f.notifier,
		Alerter:   f.notifier,
		Scanners:  scanners,
		Platforms: platforms,
		Sessions:  fakeSessionFactory{},
		Config:    appCfg,
		Logger:    logger,
	})
	executor := pipeline.NewExecutor(registry, pipeline.NewWorkflowRegistry(), logger)

	job := models.NewJob(pipeline.WorkflowBannerMonitor, "banners", 0, nil)
	require.NoError(t, executor.ExecuteJob(context.Background(), job, &models.PlatformConfig{Platform: "banners"}))

	require.NotEmpty(t, f.notifier.sent)
	assert.Equal(t, "Monitor Alert (banners)", f.notifier.sent[0].Title)
}
