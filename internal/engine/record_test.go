package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/scanner"
)

func dbRow() *models.ProductSet {
	return &models.ProductSet{
		ProductSetID:    "psid-1",
		ProductID:       "A000123",
		LinkURL:         "https://www.oliveyoung.co.kr/goods/A000123",
		ProductName:     "토너",
		Thumbnail:       "https://img.cdn.com/a.jpg",
		OriginalPrice:   10000,
		DiscountedPrice: 8000,
		SaleStatus:      models.SaleStatusOnSale,
	}
}

func matchingFetch() *models.ScannedData {
	return &models.ScannedData{
		ProductName:     "토너",
		Thumbnail:       "https://img.cdn.com/a.jpg",
		OriginalPrice:   10000,
		DiscountedPrice: 8000,
		SaleStatus:      models.SaleStatusOnSale,
	}
}

func TestCompareFields(t *testing.T) {
	db := dbRow()

	t.Run("all match with trimming", func(t *testing.T) {
		fetch := matchingFetch()
		fetch.ProductName = "  토너  "
		c := CompareFields(db, fetch, 0)
		assert.True(t, c.AllMatch())
	})

	t.Run("price drift", func(t *testing.T) {
		fetch := matchingFetch()
		fetch.DiscountedPrice = 7500
		c := CompareFields(db, fetch, 0)
		assert.False(t, c.DiscountedPrice)
		assert.True(t, c.OriginalPrice)
		assert.False(t, c.AllMatch())
	})

	t.Run("tolerance softens price equality", func(t *testing.T) {
		fetch := matchingFetch()
		fetch.DiscountedPrice = 7800 // 2.5% off the DB value
		assert.False(t, CompareFields(db, fetch, 0).DiscountedPrice)
		assert.False(t, CompareFields(db, fetch, 2).DiscountedPrice)
		assert.True(t, CompareFields(db, fetch, 3).DiscountedPrice)
	})

	t.Run("nil fetch compares all false", func(t *testing.T) {
		c := CompareFields(db, nil, 0)
		assert.Equal(t, models.FieldComparison{}, c)
	})
}

func TestBuildRecord(t *testing.T) {
	db := dbRow()

	t.Run("success and match", func(t *testing.T) {
		rec := BuildRecord(db, db.LinkURL, "oliveyoung", matchingFetch(), nil, 0)
		assert.Equal(t, models.ScanStatusSuccess, rec.Status)
		assert.True(t, rec.Match)
		assert.Equal(t, "psid-1", rec.ProductSetID)
		assert.NotNil(t, rec.Fetch)
		assert.Empty(t, rec.Error)
	})

	t.Run("success with mismatch", func(t *testing.T) {
		fetch := matchingFetch()
		fetch.DiscountedPrice = 7500
		rec := BuildRecord(db, db.LinkURL, "oliveyoung", fetch, nil, 0)
		assert.Equal(t, models.ScanStatusSuccess, rec.Status)
		assert.False(t, rec.Match)
		assert.False(t, rec.Comparison.DiscountedPrice)
	})

	t.Run("not found", func(t *testing.T) {
		rec := BuildRecord(db, db.LinkURL, "oliveyoung", nil, scanner.ErrProductNotFound, 0)
		assert.Equal(t, models.ScanStatusNotFound, rec.Status)
		assert.False(t, rec.Match)
		assert.Nil(t, rec.Fetch)
		assert.Equal(t, models.FieldComparison{}, rec.Comparison)
	})

	t.Run("failed carries error text", func(t *testing.T) {
		rec := BuildRecord(db, db.LinkURL, "oliveyoung", nil, scanner.NewCloudflareError(errors.New("403")), 0)
		assert.Equal(t, models.ScanStatusFailed, rec.Status)
		assert.False(t, rec.Match)
		assert.Contains(t, rec.Error, "cloudflare")
	})

	t.Run("nil data without error is failed", func(t *testing.T) {
		rec := BuildRecord(db, db.LinkURL, "oliveyoung", nil, nil, 0)
		assert.Equal(t, models.ScanStatusFailed, rec.Status)
		assert.NotEmpty(t, rec.Error)
	})
}
