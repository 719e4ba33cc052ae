package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodwatch/veriscan/internal/models"
)

func TestParseGenericHTML(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="수분 크림 50ml">
		<meta property="og:image" content="//img.cdn.com/cream.jpg">
	</head><body>
		<div class="price-area"><span class="sale-price">12,900원</span></div>
	</body></html>`

	data, err := ParseGenericHTML(html, "https://shop.example.com/goods/1", nil)
	require.NoError(t, err)
	assert.Equal(t, "수분 크림 50ml", data.ProductName)
	assert.Equal(t, "https://img.cdn.com/cream.jpg", data.Thumbnail)
	assert.Equal(t, 12900, data.DiscountedPrice)
	assert.Equal(t, 12900, data.OriginalPrice)
	assert.Equal(t, models.SaleStatusOnSale, data.SaleStatus)
}

func TestParseGenericHTMLSoldOut(t *testing.T) {
	html := `<html><body>
		<h1>한정판 세트</h1>
		<div class="price">9,000원</div>
		<button class="btn-soldout">품절</button>
	</body></html>`

	data, err := ParseGenericHTML(html, "https://shop.example.com/goods/2", nil)
	require.NoError(t, err)
	assert.Equal(t, "한정판 세트", data.ProductName)
	assert.Equal(t, models.SaleStatusSoldOut, data.SaleStatus)
}

func TestParseGenericHTMLNotFoundToken(t *testing.T) {
	html := `<html><body><p>삭제된 상품입니다.</p></body></html>`

	_, err := ParseGenericHTML(html, "https://shop.example.com/goods/3", nil)
	assert.True(t, IsNotFound(err))
}

func TestParseGenericHTMLNothingExtracted(t *testing.T) {
	html := `<html><body><p>hello</p></body></html>`

	_, err := ParseGenericHTML(html, "https://shop.example.com/goods/4", nil)
	require.Error(t, err)
	assert.Equal(t, KindExtraction, Classify(err))
}
