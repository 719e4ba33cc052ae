package scanner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyScanErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"sentinel not found", ErrProductNotFound, KindNotFound},
		{"cloudflare", NewCloudflareError(nil), KindCloudflare},
		{"network", NewNetworkError(errors.New("dial tcp")), KindNetwork},
		{"extraction", NewExtractionError("no selector matched", nil), KindExtraction},
		{"browser", NewBrowserError(errors.New("crashed")), KindBrowser},
		{"wrapped scan error", fmt.Errorf("scan: %w", NewCloudflareError(nil)), KindCloudflare},
		{"substring 404", errors.New("page returned 404"), KindNotFound},
		{"substring cloudflare", errors.New("Cloudflare challenge page"), KindCloudflare},
		{"substring chromium net", errors.New("net::ERR_CONNECTION_RESET"), KindNetwork},
		{"substring timeout", errors.New("navigation timeout exceeded"), KindNetwork},
		{"substring target closed", errors.New("target closed"), KindBrowser},
		{"unclassified", errors.New("something else"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrProductNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrProductNotFound)))
	assert.False(t, IsNotFound(NewCloudflareError(nil)))
	assert.False(t, IsNotFound(nil))
}

func TestScanErrorMessage(t *testing.T) {
	err := NewNetworkError(errors.New("connection refused"))
	assert.Equal(t, "network error: connection refused", err.Error())
	assert.ErrorIs(t, err, err.Err)
}
