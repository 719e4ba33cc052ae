package nodes

import (
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/common"
	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/platform"
	"github.com/prodwatch/veriscan/internal/scanner"
)

// Deps bundles everything the built-in nodes need. cmd wires one instance
// and registers all nodes through RegisterAll.
type Deps struct {
	Products  interfaces.ProductRepository
	History   interfaces.HistoryRepository
	Banners   interfaces.BannerRepository
	Notifier  interfaces.Notifier
	Alerter   interfaces.Notifier
	Scanners  *scanner.Registry
	Platforms *platform.Registry
	Sessions  engine.SessionFactory
	Config    *common.Config
	Logger    arbor.ILogger
}

// RegisterAll registers every built-in node type on the registry.
func RegisterAll(r *pipeline.NodeRegistry, d Deps) {
	coordinator := engine.NewCoordinator(d.Sessions, d.Logger)
	single := engine.NewSingleScanner(d.Sessions, d.Logger)

	r.Register(NewFetchNode(d.Products, d.Config.Results.Dir, d.Config.Validation.MaxFetchLimit))
	r.Register(NewScanNode(coordinator, d.Scanners, d.Config.Validation.MaxConsecutiveFailures))
	r.Register(NewValidateNode())
	r.Register(NewCompareNode())
	r.Register(NewSaveNode())
	r.Register(NewUpdateNode(d.Products, d.History))
	r.Register(NewNotifyNode(d.Notifier, d.Config.Notify.FailureOnly))
	r.Register(NewExtractURLNode(d.Platforms, d.Scanners, single, d.Config.Results.Dir))
	r.Register(NewExtractMultiNode(d.Platforms, d.Scanners, single, d.Config.Results.Dir))
	r.Register(NewMonitorNode(d.Banners, d.Platforms, d.Scanners, single, d.Alerter, d.Config.Results.Dir))
}

func inputString(input map[string]interface{}, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok
}

func inputInt(input map[string]interface{}, key string) (int, bool) {
	switch v := input[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func inputBool(input map[string]interface{}, key string) bool {
	v, ok := input[key].(bool)
	return ok && v
}

func inputStrings(input map[string]interface{}, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// scannerFor resolves the registered scanner for a platform, falling back to
// the generic extractor when none is registered.
func scannerFor(reg *scanner.Registry, cfg *models.PlatformConfig) scanner.Scanner {
	if sc := reg.Get(cfg.Platform); sc != nil {
		return sc
	}
	return scanner.NewFallbackScanner(cfg)
}
