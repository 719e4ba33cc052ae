package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
)

// NotifyNode posts the job report to the chat transport. Delivery is best
// effort: a transport failure is logged, reported as notified=false, and
// never fails the job.
type NotifyNode struct {
	pipeline.NoRollback
	notifier           interfaces.Notifier
	defaultFailureOnly bool
}

var _ pipeline.Node = (*NotifyNode)(nil)

func NewNotifyNode(notifier interfaces.Notifier, defaultFailureOnly bool) *NotifyNode {
	return &NotifyNode{notifier: notifier, defaultFailureOnly: defaultFailureOnly}
}

func (n *NotifyNode) Type() string { return "notify" }

func (n *NotifyNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	return pipeline.ValidInput()
}

func (n *NotifyNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	var summary models.ResultSummary
	var filePath string
	if save := nc.State.SaveResult(); save != nil {
		summary = save.Summary
		filePath = save.FilePath
	} else if w := nc.State.ResultWriter(); w != nil {
		summary = w.Summary()
		filePath = w.Path()
	}

	failureOnly := n.defaultFailureOnly || nc.ConfigBool("failure_only")
	healthy := summary.Failed == 0 && summary.NotFound == 0 && summary.Mismatch == 0
	if failureOnly && healthy {
		return pipeline.OK(map[string]interface{}{"notified": false, "skipped": true})
	}

	if n.notifier == nil {
		return pipeline.OK(map[string]interface{}{"notified": false})
	}

	notification := interfaces.Notification{
		Title:    "Product Validation Report",
		Emoji:    severityEmoji(summary),
		Platform: nc.Platform,
		JobID:    nc.JobID,
		Fields: []interfaces.NotificationField{
			{Title: "Total", Value: fmt.Sprintf("%d", summary.Total)},
			{Title: "Success", Value: fmt.Sprintf("%d", summary.Success)},
			{Title: "Failed", Value: fmt.Sprintf("%d", summary.Failed)},
			{Title: "Not Found", Value: fmt.Sprintf("%d", summary.NotFound)},
			{Title: "Mismatch", Value: fmt.Sprintf("%d", summary.Mismatch)},
			{Title: "Match Rate", Value: fmt.Sprintf("%.1f%%", summary.MatchRate())},
		},
		FilePath:  filePath,
		Timestamp: time.Now(),
	}

	if err := n.notifier.Send(ctx, notification); err != nil {
		nc.Logger.Warn().Err(err).
			Str("platform", nc.Platform).
			Msg("Notification delivery failed")
		return pipeline.OK(map[string]interface{}{"notified": false})
	}

	return pipeline.OK(map[string]interface{}{"notified": true})
}

// severityEmoji picks the report marker: perfect, critical failure share,
// mismatches present, or merely degraded.
func severityEmoji(s models.ResultSummary) string {
	switch {
	case s.Total == 0:
		return "📊"
	case s.Failed == 0 && s.NotFound == 0 && s.Mismatch == 0:
		return "✅"
	case s.FailureRate() > 10:
		return "🚨"
	case s.Mismatch > 0:
		return "⚠️"
	default:
		return "📊"
	}
}
