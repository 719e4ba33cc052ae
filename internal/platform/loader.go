package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/prodwatch/veriscan/internal/models"
)

var validate = validator.New()

// LoadDir reads every *.yaml / *.yml file in dir as one platform config and
// builds the registry. URL-pattern regexes are compiled here; a config that
// fails validation or compilation fails the whole load.
func LoadDir(dir string, logger arbor.ILogger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read platform config dir %s: %w", dir, err)
	}

	var configs []*models.PlatformConfig
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		cfg, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load platform config %s: %w", entry.Name(), err)
		}

		logger.Debug().
			Str("platform", cfg.Platform).
			Str("domain", cfg.URLPattern.Domain).
			Int("strategies", len(cfg.Strategies)).
			Msg("Loaded platform config")
		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no platform configs found in %s", dir)
	}

	registry, err := NewRegistry(configs)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("platforms", len(configs)).
		Str("dir", dir).
		Msg("Platform registry initialized")
	return registry, nil
}

// LoadFile reads a single platform YAML file into a validated, compiled config.
func LoadFile(path string) (*models.PlatformConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg models.PlatformConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	re, err := regexp.Compile(cfg.URLPattern.ProductIDRegex)
	if err != nil {
		return nil, fmt.Errorf("compile product_id_regex: %w", err)
	}
	cfg.URLPattern.CompiledRegex = re

	// An exclusion set may be empty but not null.
	if cfg.UpdateExclusions.SkipFields == nil {
		cfg.UpdateExclusions.SkipFields = []string{}
	}
	if cfg.StatusMap == nil {
		cfg.StatusMap = map[string]string{}
	}

	return &cfg, nil
}
