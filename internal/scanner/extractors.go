package scanner

import (
	"encoding/json"
	"fmt"
)

// DOMExtractor is the selector set a browser scanner evaluates against a
// rendered product detail page.
type DOMExtractor struct {
	NameSelector          string `json:"name_selector"`
	PriceSelector         string `json:"price_selector"`
	OriginalPriceSelector string `json:"original_price_selector"`
	ThumbnailSelector     string `json:"thumbnail_selector"`
	StatusSelector        string `json:"status_selector"`
	SoldOutSelector       string `json:"soldout_selector"`
}

// rawExtraction is what the in-page script returns.
type rawExtraction struct {
	Name          string `json:"name"`
	Price         string `json:"price"`
	OriginalPrice string `json:"originalPrice"`
	Thumbnail     string `json:"thumbnail"`
	StatusText    string `json:"statusText"`
	SoldOut       bool   `json:"soldOut"`
	BodyText      string `json:"bodyText"`
}

// builtinExtractors are the production platform selector sets. A platform
// config can override these through the browser strategy's "extractor"
// options block.
var builtinExtractors = map[string]DOMExtractor{
	"oliveyoung": {
		NameSelector:          "p.prd_name, .prd-detail-name",
		PriceSelector:         "span.price-2 strong, .price .point",
		OriginalPriceSelector: "span.price-1 strike",
		ThumbnailSelector:     "#mainImg, .prd-img img",
		StatusSelector:        ".prd_btn_area .btnSoldout",
		SoldOutSelector:       ".btnSoldout, .soldout",
	},
	"ably": {
		NameSelector:          "p[class*='ProductName'], h1[class*='name']",
		PriceSelector:         "span[class*='SellingPrice'], p[class*='price']",
		OriginalPriceSelector: "span[class*='ConsumerPrice'], del",
		ThumbnailSelector:     "img[class*='ProductImage'], .swiper-slide img",
		SoldOutSelector:       "button[disabled][class*='Order'], div[class*='SoldOut']",
	},
	"hwahae": {
		NameSelector:          "h1[class*='product-name'], .goods_name",
		PriceSelector:         "span[class*='discount-price'], .price em",
		OriginalPriceSelector: "span[class*='origin-price'], .price del",
		ThumbnailSelector:     "div[class*='product-image'] img",
		SoldOutSelector:       "button[class*='soldout'], .label_soldout",
	},
	"musinsa": {
		NameSelector:          "span.product_title, h2.product-title",
		PriceSelector:         "span.txt_price_member, .product-price em",
		OriginalPriceSelector: "del.txt_price_origin",
		ThumbnailSelector:     ".product-img img, #detail_bigimg img",
		SoldOutSelector:       ".btn_soldout, .product-soldout",
	},
	"zigzag": {
		NameSelector:          "h1[class*='ProductName'], p[class*='name']",
		PriceSelector:         "span[class*='DiscountPrice'], strong[class*='price']",
		OriginalPriceSelector: "span[class*='OriginalPrice'], del",
		ThumbnailSelector:     "div[class*='ImageViewer'] img",
		SoldOutSelector:       "button[class*='sold_out'], div[class*='SoldOut']",
	},
}

// genericExtractor is the defensive fallback used when a platform has no
// dedicated selector set.
var genericExtractor = DOMExtractor{
	NameSelector:          "h1, [class*='product-name'], [class*='prd_name']",
	PriceSelector:         "[class*='sale-price'], [class*='discount'], [class*='price']",
	OriginalPriceSelector: "del, strike, [class*='origin']",
	ThumbnailSelector:     "meta[property='og:image'], [class*='product'] img",
	SoldOutSelector:       "[class*='soldout'], [class*='sold-out']",
}

// ExtractorFor returns the selector set for a platform, falling back to the
// generic set.
func ExtractorFor(platform string) DOMExtractor {
	if e, ok := builtinExtractors[platform]; ok {
		return e
	}
	return genericExtractor
}

// extractorFromOptions overlays strategy options onto the builtin extractor.
func extractorFromOptions(platform string, options map[string]interface{}) DOMExtractor {
	extractor := ExtractorFor(platform)
	raw, ok := options["extractor"]
	if !ok {
		return extractor
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return extractor
	}
	// Unmarshal over the builtin so partial overrides keep defaults.
	_ = json.Unmarshal(encoded, &extractor)
	return extractor
}

// ExtractionScript builds the in-page JS that pulls raw product fields.
// Evaluated as a single expression returning a JSON-compatible object.
func ExtractionScript(e DOMExtractor) string {
	return fmt.Sprintf(`(() => {
	const text = (sel) => {
		if (!sel) return '';
		const el = document.querySelector(sel);
		return el ? (el.textContent || '').trim() : '';
	};
	const attr = (sel, name) => {
		if (!sel) return '';
		const el = document.querySelector(sel);
		if (!el) return '';
		return el.getAttribute(name) || el.getAttribute('data-' + name) || '';
	};
	const thumbEl = document.querySelector(%q);
	let thumbnail = '';
	if (thumbEl) {
		thumbnail = thumbEl.tagName === 'META' ? (thumbEl.getAttribute('content') || '')
			: (thumbEl.getAttribute('src') || thumbEl.getAttribute('data-src') || '');
	}
	return {
		name: text(%q),
		price: text(%q),
		originalPrice: text(%q),
		thumbnail: thumbnail,
		statusText: text(%q),
		soldOut: %q !== '' && document.querySelector(%q) !== null,
		bodyText: (document.body ? document.body.innerText : '').slice(0, 2000),
	};
})()`,
		e.ThumbnailSelector,
		e.NameSelector,
		e.PriceSelector,
		e.OriginalPriceSelector,
		e.StatusSelector,
		e.SoldOutSelector, e.SoldOutSelector,
	)
}
