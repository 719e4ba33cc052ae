package models

import "time"

// ScanStatus classifies one per-product validation record.
type ScanStatus string

const (
	ScanStatusSuccess  ScanStatus = "success"
	ScanStatusFailed   ScanStatus = "failed"
	ScanStatusNotFound ScanStatus = "not_found"
)

// FieldComparison carries the per-field equality flags between the DB row
// and the freshly scanned data. All flags are false when the fetch is nil.
type FieldComparison struct {
	ProductName     bool `json:"product_name"`
	Thumbnail       bool `json:"thumbnail"`
	OriginalPrice   bool `json:"original_price"`
	DiscountedPrice bool `json:"discounted_price"`
	SaleStatus      bool `json:"sale_status"`
}

// AllMatch reports whether every compared field was equal.
func (c FieldComparison) AllMatch() bool {
	return c.ProductName && c.Thumbnail && c.OriginalPrice && c.DiscountedPrice && c.SaleStatus
}

// ComparisonRecord is one line of the JSONL artifact: the joined
// DB/scan/comparison view of a single product.
//
// Invariants: status != success implies Match == false; Fetch == nil implies
// every comparison flag is false.
type ComparisonRecord struct {
	ProductSetID string          `json:"product_set_id"`
	ProductID    string          `json:"product_id"`
	URL          string          `json:"url"`
	Platform     string          `json:"platform"`
	DB           *ProductSet     `json:"db"`
	Fetch        *ScannedData    `json:"fetch"`
	Comparison   FieldComparison `json:"comparison"`
	Match        bool            `json:"match"`
	Status       ScanStatus      `json:"status"`
	Error        string          `json:"error,omitempty"`
	ValidatedAt  time.Time       `json:"validated_at"`
}

// ResultSummary aggregates one job's JSONL records.
type ResultSummary struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Failed   int `json:"failed"`
	NotFound int `json:"not_found"`
	Match    int `json:"match"`
	Mismatch int `json:"mismatch"`
}

// MatchRate returns matched records over total, in percent.
func (s ResultSummary) MatchRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Match) / float64(s.Total) * 100
}

// FailureRate returns failed+not_found over total, in percent.
func (s ResultSummary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed+s.NotFound) / float64(s.Total) * 100
}
