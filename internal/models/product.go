package models

// SaleStatus is the canonical availability state of a product. Platform
// specific tokens ("품절", "일시품절", "SOLDOUT", ...) are mapped onto this
// set by the scanner layer.
type SaleStatus string

const (
	SaleStatusOnSale    SaleStatus = "on_sale"
	SaleStatusSoldOut   SaleStatus = "sold_out"
	SaleStatusOffSale   SaleStatus = "off_sale"
	SaleStatusPreOrder  SaleStatus = "pre_order"
	SaleStatusBackorder SaleStatus = "backorder"
)

// CanonicalSaleStatuses is the closed set of valid sale statuses.
var CanonicalSaleStatuses = map[SaleStatus]bool{
	SaleStatusOnSale:    true,
	SaleStatusSoldOut:   true,
	SaleStatusOffSale:   true,
	SaleStatusPreOrder:  true,
	SaleStatusBackorder: true,
}

// ProductSet is one catalog record from the product database. Read-only to
// the engine except through the Update node.
type ProductSet struct {
	ProductSetID    string     `json:"product_set_id"`
	ProductID       string     `json:"product_id"`
	BrandID         string     `json:"brand_id"`
	LinkURL         string     `json:"link_url"`
	ProductName     string     `json:"product_name"`
	Thumbnail       string     `json:"thumbnail"`
	OriginalPrice   int        `json:"original_price"`
	DiscountedPrice int        `json:"discounted_price"`
	SaleStatus      SaleStatus `json:"sale_status"`
	AutoCrawled     bool       `json:"auto_crawled"`
}

// ScannedData is the normalized result of scraping one product page.
// Nil when the platform reports the product missing.
type ScannedData struct {
	ProductName     string     `json:"product_name"`
	Thumbnail       string     `json:"thumbnail"`
	OriginalPrice   int        `json:"original_price"`
	DiscountedPrice int        `json:"discounted_price"`
	SaleStatus      SaleStatus `json:"sale_status"`
}
