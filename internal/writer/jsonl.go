package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/models"
)

// ResultWriter streams one job's comparison records to an append-only JSONL
// file at <outputDir>/<YYYY-MM-DD>/<platform>/<jobID>.jsonl. The writer owns
// the file exclusively from Initialize to Finalize; Append is serialized
// internally and safe for concurrent batches.
type ResultWriter struct {
	outputDir string
	platform  string
	jobID     string
	prefix    string
	logger    arbor.ILogger

	mu        sync.Mutex
	file      *os.File
	path      string
	summary   models.ResultSummary
	finalized bool
}

// FinalizeResult is the authoritative outcome of one writer lifetime.
type FinalizeResult struct {
	FilePath    string               `json:"file_path"`
	RecordCount int                  `json:"record_count"`
	Summary     models.ResultSummary `json:"summary"`
}

// Option configures a ResultWriter.
type Option func(*ResultWriter)

// WithPrefix prepends a type prefix to the file name, e.g. "monitor" for
// monitor pipelines.
func WithPrefix(prefix string) Option {
	return func(w *ResultWriter) { w.prefix = prefix }
}

// NewResultWriter creates a writer for one job. The file is not opened until
// Initialize.
func NewResultWriter(outputDir, platform, jobID string, logger arbor.ILogger, opts ...Option) *ResultWriter {
	w := &ResultWriter{
		outputDir: outputDir,
		platform:  platform,
		jobID:     jobID,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Initialize creates the date/platform/job directory tree and opens the
// JSONL file for append.
func (w *ResultWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return fmt.Errorf("writer finalized")
	}
	if w.file != nil {
		return nil
	}

	dir := filepath.Join(w.outputDir, time.Now().Format("2006-01-02"), w.platform)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}

	name := w.jobID + ".jsonl"
	if w.prefix != "" {
		name = w.prefix + "-" + name
	}
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}

	w.file = file
	w.path = path
	w.logger.Debug().Str("path", path).Msg("Result writer initialized")
	return nil
}

// Append writes one record as a single JSON line and updates the running
// counters. Lazily opens the file when Initialize was not called first.
func (w *ResultWriter) Append(record *models.ComparisonRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finalized {
		return fmt.Errorf("append after finalize")
	}
	if w.file == nil {
		w.mu.Unlock()
		err := w.Initialize()
		w.mu.Lock()
		if err != nil {
			return err
		}
		// Finalize or Cleanup may have won the race while the lock was
		// released; Initialize refuses then, but the closed handle must
		// also be caught here.
		if w.finalized || w.file == nil {
			return fmt.Errorf("append after finalize")
		}
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	w.summary.Total++
	switch record.Status {
	case models.ScanStatusSuccess:
		w.summary.Success++
		if record.Match {
			w.summary.Match++
		} else {
			w.summary.Mismatch++
		}
	case models.ScanStatusNotFound:
		w.summary.NotFound++
	default:
		w.summary.Failed++
	}
	return nil
}

// Path returns the JSONL file path, or "" before the first open.
func (w *ResultWriter) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Summary returns a copy of the running counters.
func (w *ResultWriter) Summary() models.ResultSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

// Finalize flushes and closes the file. The returned path and count are
// authoritative. Finalize is idempotent.
func (w *ResultWriter) Finalize() (*FinalizeResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.finalized && w.file != nil {
		if err := w.file.Sync(); err != nil {
			w.logger.Warn().Err(err).Str("path", w.path).Msg("Result file sync failed")
		}
		if err := w.file.Close(); err != nil {
			return nil, fmt.Errorf("close result file: %w", err)
		}
		w.file = nil
	}
	w.finalized = true

	return &FinalizeResult{
		FilePath:    w.path,
		RecordCount: w.summary.Total,
		Summary:     w.summary,
	}, nil
}

// Cleanup closes the file and best-effort removes it when no record was
// written. Never returns an error.
func (w *ResultWriter) Cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if w.summary.Total == 0 && w.path != "" {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			w.logger.Warn().Err(err).Str("path", w.path).Msg("Failed to remove empty result file")
		}
		w.path = ""
	}
	w.finalized = true
}
