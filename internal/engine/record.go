package engine

import (
	"strings"
	"time"

	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/scanner"
)

// CompareFields computes the per-field equality flags between a DB row and
// scanned data. Text fields compare with trimmed equality; prices compare as
// integers, softened by an optional tolerance expressed as a percentage of
// the DB value.
func CompareFields(db *models.ProductSet, fetch *models.ScannedData, tolerancePct float64) models.FieldComparison {
	if db == nil || fetch == nil {
		return models.FieldComparison{}
	}
	return models.FieldComparison{
		ProductName:     strings.TrimSpace(db.ProductName) == strings.TrimSpace(fetch.ProductName),
		Thumbnail:       strings.TrimSpace(db.Thumbnail) == strings.TrimSpace(fetch.Thumbnail),
		OriginalPrice:   priceEqual(db.OriginalPrice, fetch.OriginalPrice, tolerancePct),
		DiscountedPrice: priceEqual(db.DiscountedPrice, fetch.DiscountedPrice, tolerancePct),
		SaleStatus:      db.SaleStatus == fetch.SaleStatus,
	}
}

func priceEqual(dbPrice, fetchPrice int, tolerancePct float64) bool {
	if dbPrice == fetchPrice {
		return true
	}
	if tolerancePct <= 0 || dbPrice == 0 {
		return false
	}
	diff := dbPrice - fetchPrice
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= float64(dbPrice)*tolerancePct/100
}

// BuildRecord joins one scan outcome with its DB row into a JSONL record,
// honoring the record invariants: non-success implies match=false, nil fetch
// implies all-false comparison.
func BuildRecord(db *models.ProductSet, url, platform string, fetch *models.ScannedData, scanErr error, tolerancePct float64) *models.ComparisonRecord {
	record := &models.ComparisonRecord{
		ProductSetID: db.ProductSetID,
		ProductID:    db.ProductID,
		URL:          url,
		Platform:     platform,
		DB:           db,
		ValidatedAt:  time.Now(),
	}

	switch {
	case scanErr == nil && fetch != nil:
		record.Fetch = fetch
		record.Status = models.ScanStatusSuccess
		record.Comparison = CompareFields(db, fetch, tolerancePct)
		record.Match = record.Comparison.AllMatch()
	case scanner.IsNotFound(scanErr):
		record.Status = models.ScanStatusNotFound
	default:
		record.Status = models.ScanStatusFailed
		if scanErr != nil {
			record.Error = scanErr.Error()
		} else {
			record.Error = "no data extracted"
		}
	}
	return record
}
