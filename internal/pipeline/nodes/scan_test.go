package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/scanner"
	"github.com/prodwatch/veriscan/internal/writer"
)

func scanFixture(t *testing.T, products []models.ProductSet, stub *stubScanner) (*ScanNode, *pipeline.NodeContext) {
	t.Helper()

	logger := common.GetLogger()
	scanners := scanner.NewRegistry(logger)
	if stub != nil {
		scanners.Register(stub)
	}
	coordinator := engine.NewCoordinator(fakeSessionFactory{}, logger)
	node := NewScanNode(coordinator, scanners, 5)

	w := writer.NewResultWriter(t.TempDir(), "oliveyoung", "job-test", logger)
	require.NoError(t, w.Initialize())
	t.Cleanup(w.Cleanup)

	nc := testNodeContext("oliveyoung", testPlatformConfig("oliveyoung"), nil)
	nc.State.SetOriginalProducts(products)
	nc.State.SetResultWriter(w)
	return node, nc
}

func TestScanNodeRecordsEveryProduct(t *testing.T) {
	a := product("A", 8000)
	b := product("B", 9000)
	mismatch := fetchOf(b)
	mismatch.DiscountedPrice = 8500

	stub := &stubScanner{
		platform: "oliveyoung",
		results: map[string]*models.ScannedData{
			a.LinkURL: fetchOf(a),
			b.LinkURL: mismatch,
		},
	}
	node, nc := scanFixture(t, []models.ProductSet{a, b}, stub)

	res := node.Execute(context.Background(), nil, nc)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Data["scanned"])
	assert.Equal(t, 0, res.Data["failed_batches"])

	records, err := writer.ReadRecords(nc.State.ResultWriter().Path())
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]*models.ComparisonRecord{}
	for _, rec := range records {
		byID[rec.ProductSetID] = rec
	}
	assert.True(t, byID["A"].Match)
	assert.False(t, byID["B"].Match)
	assert.False(t, byID["B"].Comparison.DiscountedPrice)
}

func TestScanNodeNotFoundRecorded(t *testing.T) {
	a := product("A", 8000)
	stub := &stubScanner{
		platform: "oliveyoung",
		errs:     map[string]error{a.LinkURL: scanner.ErrProductNotFound},
	}
	node, nc := scanFixture(t, []models.ProductSet{a}, stub)

	res := node.Execute(context.Background(), nil, nc)
	require.True(t, res.Success)

	records, err := writer.ReadRecords(nc.State.ResultWriter().Path())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ScanStatusNotFound, records[0].Status)
	assert.False(t, records[0].Match)
}

func TestScanNodeEmptyProductSet(t *testing.T) {
	node, nc := scanFixture(t, nil, nil)

	res := node.Execute(context.Background(), nil, nc)
	require.True(t, res.Success)
	assert.Equal(t, 0, res.Data["scanned"])
}

func TestScanNodeRequiresWriter(t *testing.T) {
	logger := common.GetLogger()
	node := NewScanNode(engine.NewCoordinator(fakeSessionFactory{}, logger), scanner.NewRegistry(logger), 5)
	nc := testNodeContext("oliveyoung", testPlatformConfig("oliveyoung"), nil)

	res := node.Execute(context.Background(), nil, nc)
	require.False(t, res.Success)
	assert.Equal(t, pipeline.CodeScanError, res.Error.Code)
}

func TestScanNodeValidatesConcurrency(t *testing.T) {
	logger := common.GetLogger()
	node := NewScanNode(engine.NewCoordinator(fakeSessionFactory{}, logger), scanner.NewRegistry(logger), 5)

	assert.False(t, node.Validate(map[string]interface{}{"concurrency": -1}).Valid)
	assert.True(t, node.Validate(map[string]interface{}{"concurrency": float64(3)}).Valid)
}
