package writer

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/models"
)

func record(id string, status models.ScanStatus, match bool) *models.ComparisonRecord {
	return &models.ComparisonRecord{
		ProductSetID: id,
		Platform:     "oliveyoung",
		Status:       status,
		Match:        match,
		ValidatedAt:  time.Now(),
	}
}

func TestResultWriterLifecycle(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "oliveyoung", "job-1", common.GetLogger())
	require.NoError(t, w.Initialize())

	require.NoError(t, w.Append(record("a", models.ScanStatusSuccess, true)))
	require.NoError(t, w.Append(record("b", models.ScanStatusSuccess, false)))
	require.NoError(t, w.Append(record("c", models.ScanStatusFailed, false)))
	require.NoError(t, w.Append(record("d", models.ScanStatusNotFound, false)))

	sum := w.Summary()
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Success)
	assert.Equal(t, 1, sum.Match)
	assert.Equal(t, 1, sum.Mismatch)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.NotFound)

	res, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 4, res.RecordCount)
	assert.FileExists(t, res.FilePath)

	wantPath := filepath.Join(dir, time.Now().Format("2006-01-02"), "oliveyoung", "job-1.jsonl")
	assert.Equal(t, wantPath, res.FilePath)

	// Finalize is idempotent.
	again, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, res.RecordCount, again.RecordCount)

	assert.Error(t, w.Append(record("e", models.ScanStatusSuccess, true)))

	records, err := ReadRecords(res.FilePath)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "a", records[0].ProductSetID)
	assert.Equal(t, models.ScanStatusNotFound, records[3].Status)
}

func TestResultWriterPrefix(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "monitor", "job-2", common.GetLogger(), WithPrefix("banners"))
	require.NoError(t, w.Initialize())
	assert.Equal(t, "banners-job-2.jsonl", filepath.Base(w.Path()))
	w.Cleanup()
}

func TestResultWriterAppendLazilyOpens(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "ably", "job-3", common.GetLogger())

	require.NoError(t, w.Append(record("a", models.ScanStatusSuccess, true)))
	assert.NotEmpty(t, w.Path())

	res, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordCount)
}

func TestResultWriterAppendRacingFinalize(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "oliveyoung", "job-race", common.GetLogger())

	// Appends race Finalize without ever calling Initialize, so the lazy
	// open path runs while the writer may already be closed. Every Append
	// either lands before Finalize or errors; none may write afterwards.
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			_ = w.Append(record(strconv.Itoa(id), models.ScanStatusSuccess, true))
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		_, _ = w.Finalize()
	}()
	close(start)
	wg.Wait()

	assert.Error(t, w.Append(record("late", models.ScanStatusSuccess, true)))

	res, err := w.Finalize()
	require.NoError(t, err)
	if res.FilePath != "" {
		records, readErr := ReadRecords(res.FilePath)
		require.NoError(t, readErr)
		assert.Len(t, records, res.RecordCount)
	} else {
		assert.Equal(t, 0, res.RecordCount)
	}
}

func TestResultWriterCleanupRemovesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "hwahae", "job-4", common.GetLogger())
	require.NoError(t, w.Initialize())
	path := w.Path()
	require.FileExists(t, path)

	w.Cleanup()
	assert.NoFileExists(t, path)
}

func TestResultWriterCleanupKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "hwahae", "job-5", common.GetLogger())
	require.NoError(t, w.Initialize())
	require.NoError(t, w.Append(record("a", models.ScanStatusSuccess, true)))

	w.Cleanup()
	assert.FileExists(t, w.Path())
}

func TestReadRecordsSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.jsonl")
	content := `{"product_set_id":"a","status":"success","match":true}
{"product_set_id":"b","status":
{"product_set_id":"c","status":"failed","match":false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ProductSetID)
	assert.Equal(t, "c", records[1].ProductSetID)
}

func TestReadRecordsMissingFile(t *testing.T) {
	_, err := ReadRecords(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}
