package pipeline

import (
	"sync"

	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/writer"
)

// Canonical shared-state keys. Each key has a single writing node: Fetch
// owns original_products and result_writer, Save owns save_result.
const (
	KeyOriginalProducts = "original_products"
	KeyResultWriter     = "result_writer"
	KeySaveResult       = "save_result"
)

// SharedState is the per-job state bag passed between nodes. The three
// canonical keys get typed accessors; everything else goes through the
// generic overflow map. Lifetime equals one pipeline invocation.
type SharedState struct {
	mu sync.RWMutex

	originalProducts []models.ProductSet
	resultWriter     *writer.ResultWriter
	saveResult       *writer.FinalizeResult

	extra map[string]interface{}
}

// NewSharedState creates an empty state bag.
func NewSharedState() *SharedState {
	return &SharedState{extra: make(map[string]interface{})}
}

// SetOriginalProducts stores the catalog rows fetched for this job.
func (s *SharedState) SetOriginalProducts(products []models.ProductSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.originalProducts = products
}

// OriginalProducts returns the catalog rows fetched for this job.
func (s *SharedState) OriginalProducts() []models.ProductSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.originalProducts
}

// ProductByID looks up a fetched row by product_set_id.
func (s *SharedState) ProductByID(productSetID string) *models.ProductSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.originalProducts {
		if s.originalProducts[i].ProductSetID == productSetID {
			return &s.originalProducts[i]
		}
	}
	return nil
}

// SetResultWriter publishes the job's streaming writer.
func (s *SharedState) SetResultWriter(w *writer.ResultWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resultWriter = w
}

// ResultWriter returns the job's streaming writer, or nil before Fetch.
func (s *SharedState) ResultWriter() *writer.ResultWriter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultWriter
}

// SetSaveResult publishes the finalized artifact summary.
func (s *SharedState) SetSaveResult(r *writer.FinalizeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveResult = r
}

// SaveResult returns the finalized artifact summary, or nil before Save.
func (s *SharedState) SaveResult() *writer.FinalizeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveResult
}

// Set stores an overflow value.
func (s *SharedState) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[key] = value
}

// Get reads an overflow value.
func (s *SharedState) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.extra[key]
	return v, ok
}
