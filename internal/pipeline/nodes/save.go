package nodes

import (
	"context"
	"fmt"

	"github.com/prodwatch/veriscan/internal/pipeline"
)

// SaveNode finalizes the streaming writer and publishes save_result. The
// JSONL itself is already durable record by record; Save closes the file and
// makes the path and counts authoritative. Re-running against an already
// finalized job is a no-op.
type SaveNode struct {
	pipeline.NoRollback
}

var _ pipeline.Node = (*SaveNode)(nil)

func NewSaveNode() *SaveNode { return &SaveNode{} }

func (n *SaveNode) Type() string { return "save" }

func (n *SaveNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	return pipeline.ValidInput()
}

func (n *SaveNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	if res := nc.State.SaveResult(); res != nil {
		return pipeline.OK(map[string]interface{}{
			"file_path":    res.FilePath,
			"record_count": res.RecordCount,
		})
	}

	w := nc.State.ResultWriter()
	if w == nil {
		return pipeline.Fail(pipeline.CodeSaveError, "result writer not initialized")
	}

	res, err := w.Finalize()
	if err != nil {
		return pipeline.Fail(pipeline.CodeSaveError, fmt.Sprintf("finalize results: %v", err))
	}
	nc.State.SetSaveResult(res)

	nc.Logger.Info().
		Str("platform", nc.Platform).
		Str("file_path", res.FilePath).
		Int("records", res.RecordCount).
		Msg("Results saved")

	return pipeline.OK(map[string]interface{}{
		"file_path":    res.FilePath,
		"record_count": res.RecordCount,
	})
}
