package scanner

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/prodwatch/veriscan/internal/models"
)

// defaultStatusTokens maps tokens common across Korean e-commerce sites to
// the canonical sale statuses. Platform configs extend this via status_map.
var defaultStatusTokens = map[string]models.SaleStatus{
	"판매중":      models.SaleStatusOnSale,
	"품절":       models.SaleStatusSoldOut,
	"일시품절":     models.SaleStatusSoldOut,
	"재입고 예정":   models.SaleStatusSoldOut,
	"판매중지":     models.SaleStatusOffSale,
	"판매종료":     models.SaleStatusOffSale,
	"예약판매":     models.SaleStatusPreOrder,
	"예약 구매":    models.SaleStatusPreOrder,
	"백오더":      models.SaleStatusBackorder,
	"soldout":  models.SaleStatusSoldOut,
	"sold_out": models.SaleStatusSoldOut,
	"sold out": models.SaleStatusSoldOut,
	"onsale":   models.SaleStatusOnSale,
	"on_sale":  models.SaleStatusOnSale,
	"preorder": models.SaleStatusPreOrder,
}

// notFoundTokens are page texts that mean the product is gone, not an error.
var notFoundTokens = []string{
	"삭제된 상품",
	"상품 정보 없음",
	"판매하지 않는 상품",
	"존재하지 않는 상품",
}

// ParsePrice extracts a non-negative integer price from site text like
// "12,900원" or "₩12,900". Returns 0 when no digits are present.
func ParsePrice(text string) int {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MapSaleStatus resolves a platform status token onto the canonical set.
// The platform's own status_map wins over the built-in table; unknown
// non-empty tokens default to on_sale since detail pages rarely label the
// normal state.
func MapSaleStatus(token string, statusMap map[string]string) models.SaleStatus {
	trimmed := strings.TrimSpace(token)
	lowered := strings.ToLower(trimmed)

	if statusMap != nil {
		if mapped, ok := statusMap[trimmed]; ok {
			if s := models.SaleStatus(mapped); models.CanonicalSaleStatuses[s] {
				return s
			}
		}
		if mapped, ok := statusMap[lowered]; ok {
			if s := models.SaleStatus(mapped); models.CanonicalSaleStatuses[s] {
				return s
			}
		}
	}

	if s, ok := defaultStatusTokens[trimmed]; ok {
		return s
	}
	if s, ok := defaultStatusTokens[lowered]; ok {
		return s
	}
	if s := models.SaleStatus(lowered); models.CanonicalSaleStatuses[s] {
		return s
	}
	return models.SaleStatusOnSale
}

// ContainsNotFoundToken reports whether page text carries any of the
// "product missing" markers.
func ContainsNotFoundToken(text string) bool {
	for _, token := range notFoundTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// AbsoluteURL resolves href against base. Returns "" for unparseable input
// so thumbnails are always absolute URLs or empty.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}

// Normalize applies the scanner-layer guarantees to raw extracted values:
// prices non-negative, discounted <= original, single known price mirrored
// into both fields, thumbnail absolute or empty.
func Normalize(data *models.ScannedData, pageURL string) *models.ScannedData {
	if data == nil {
		return nil
	}
	if data.OriginalPrice < 0 {
		data.OriginalPrice = 0
	}
	if data.DiscountedPrice < 0 {
		data.DiscountedPrice = 0
	}
	// A site reporting a single price means both fields equal it.
	if data.OriginalPrice == 0 && data.DiscountedPrice > 0 {
		data.OriginalPrice = data.DiscountedPrice
	}
	if data.DiscountedPrice == 0 && data.OriginalPrice > 0 {
		data.DiscountedPrice = data.OriginalPrice
	}
	if data.OriginalPrice > 0 && data.DiscountedPrice > data.OriginalPrice {
		data.OriginalPrice, data.DiscountedPrice = data.DiscountedPrice, data.OriginalPrice
	}
	data.Thumbnail = AbsoluteURL(pageURL, data.Thumbnail)
	data.ProductName = strings.TrimSpace(data.ProductName)
	return data
}
