package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/models"
)

const oliveyoungYAML = `
platform: oliveyoung
display_name: Olive Young
url_pattern:
  domain: oliveyoung.co.kr
  product_id_regex: "/goods/([A-Z0-9]+)"
  detail_url_template: "https://www.oliveyoung.co.kr/goods/{productId}"
strategies:
  - type: browser
workflow:
  rate_limit:
    wait_time_ms: 1000
  concurrency:
    default: 2
    max: 4
update_exclusions:
  skip_fields:
    - thumbnail
  reason: CDN URLs rotate daily
status_map:
  "품절": sold_out
`

const ablyYAML = `
platform: ably
url_pattern:
  domain: a-bly.com
  product_id_regex: "/goods/([0-9]+)"
strategies:
  - type: http
    options:
      endpoint_template: "https://api.a-bly.com/goods/{productId}"
`

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := writeConfigs(t, map[string]string{
		"oliveyoung.yaml": oliveyoungYAML,
		"ably.yml":        ablyYAML,
	})
	registry, err := LoadDir(dir, common.GetLogger())
	require.NoError(t, err)
	return registry
}

func TestLoadDir(t *testing.T) {
	registry := loadTestRegistry(t)
	assert.Equal(t, []string{"ably", "oliveyoung"}, registry.Platforms())

	cfg, err := registry.Load("oliveyoung")
	require.NoError(t, err)
	assert.Equal(t, "oliveyoung.co.kr", cfg.URLPattern.Domain)
	assert.Equal(t, []string{"thumbnail"}, cfg.UpdateExclusions.SkipFields)
	assert.Equal(t, "sold_out", cfg.StatusMap["품절"])
	assert.NotNil(t, cfg.URLPattern.CompiledRegex)
}

func TestLoadDirRejectsInvalidConfig(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		// no strategies
		"broken.yaml": "platform: broken\nurl_pattern:\n  domain: x.com\n  product_id_regex: a\n",
	})
	_, err := LoadDir(dir, common.GetLogger())
	assert.Error(t, err)
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir(), common.GetLogger())
	assert.Error(t, err)
}

func TestLoadUnknownPlatform(t *testing.T) {
	registry := loadTestRegistry(t)
	_, err := registry.Load("musinsa")
	require.Error(t, err)
	var missing *ErrConfigMissing
	assert.ErrorAs(t, err, &missing)
}

func TestDetectPlatform(t *testing.T) {
	registry := loadTestRegistry(t)

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.oliveyoung.co.kr/goods/A123", "oliveyoung"},
		{"https://oliveyoung.co.kr/goods/A123", "oliveyoung"},
		{"https://m.a-bly.com/goods/99", "ably"},
		{"https://example.com/goods/1", ""},
		{"not a url", ""},
		// Domain must match on label boundaries.
		{"https://evil-oliveyoung.co.kr.example.com/x", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, registry.DetectPlatform(tt.url), tt.url)
	}
}

func TestExtractProductID(t *testing.T) {
	registry := loadTestRegistry(t)

	id := registry.ExtractProductID("https://www.oliveyoung.co.kr/goods/A000123?utm_source=x", "oliveyoung")
	assert.Equal(t, "A000123", id)

	assert.Empty(t, registry.ExtractProductID("https://www.oliveyoung.co.kr/brand/list", "oliveyoung"))
	assert.Empty(t, registry.ExtractProductID("https://www.oliveyoung.co.kr/goods/A1", "musinsa"))
}

func TestBuildDetailURL(t *testing.T) {
	registry := loadTestRegistry(t)

	assert.Equal(t,
		"https://www.oliveyoung.co.kr/goods/A000123",
		registry.BuildDetailURL("A000123", "oliveyoung"))
	// ably has no template.
	assert.Empty(t, registry.BuildDetailURL("99", "ably"))
	assert.Empty(t, registry.BuildDetailURL("99", "musinsa"))
}

func TestUpdateExclusionsNeverNil(t *testing.T) {
	registry := loadTestRegistry(t)

	ex := registry.UpdateExclusions("ably")
	assert.NotNil(t, ex.SkipFields)
	assert.Empty(t, ex.SkipFields)

	ex = registry.UpdateExclusions("unknown")
	assert.NotNil(t, ex.SkipFields)
}

func TestEffectiveConcurrencyClamp(t *testing.T) {
	cfg := &models.PlatformConfig{}
	cfg.Workflow.Concurrency.Default = 2
	cfg.Workflow.Concurrency.Max = 4

	assert.Equal(t, 2, cfg.EffectiveConcurrency(0))
	assert.Equal(t, 3, cfg.EffectiveConcurrency(3))
	assert.Equal(t, 4, cfg.EffectiveConcurrency(9))

	empty := &models.PlatformConfig{}
	assert.Equal(t, 1, empty.EffectiveConcurrency(0))
	assert.Equal(t, 10, empty.EffectiveConcurrency(25))
}
