package nodes

import (
	"context"

	"github.com/prodwatch/veriscan/internal/pipeline"
)

// CompareNode aggregates the per-record comparisons already streamed by Scan
// into the job-level counts downstream nodes report on. The per-field joins
// happen at scan time; this node only rolls them up.
type CompareNode struct {
	pipeline.NoRollback
}

var _ pipeline.Node = (*CompareNode)(nil)

func NewCompareNode() *CompareNode { return &CompareNode{} }

func (n *CompareNode) Type() string { return "compare" }

func (n *CompareNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	return pipeline.ValidInput()
}

func (n *CompareNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	w := nc.State.ResultWriter()
	if w == nil {
		return pipeline.Fail(pipeline.CodeCompareError, "result writer not initialized")
	}

	s := w.Summary()
	nc.Logger.Info().
		Str("platform", nc.Platform).
		Int("total", s.Total).
		Int("match", s.Match).
		Int("mismatch", s.Mismatch).
		Int("failed", s.Failed).
		Int("not_found", s.NotFound).
		Msg("Comparison summary")

	return pipeline.OK(map[string]interface{}{
		"total":      s.Total,
		"success":    s.Success,
		"failed":     s.Failed,
		"not_found":  s.NotFound,
		"match":      s.Match,
		"mismatch":   s.Mismatch,
		"match_rate": s.MatchRate(),
	})
}
