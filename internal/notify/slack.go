package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
)

// SlackNotifier posts report and alert messages to an incoming webhook.
// Delivery gets one short retry; beyond that the error is returned and the
// caller decides (pipeline nodes treat it as non-fatal).
type SlackNotifier struct {
	webhookURL string
	timeout    time.Duration
	logger     arbor.ILogger
}

var _ interfaces.Notifier = (*SlackNotifier)(nil)

// NewSlackNotifier builds a webhook notifier. timeout bounds one POST;
// zero means 10s.
func NewSlackNotifier(webhookURL string, timeout time.Duration, logger arbor.ILogger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{webhookURL: webhookURL, timeout: timeout, logger: logger}
}

// Send posts the notification, retrying once on transport failure.
func (n *SlackNotifier) Send(ctx context.Context, notification interfaces.Notification) error {
	if n.webhookURL == "" {
		return fmt.Errorf("webhook url not configured")
	}

	msg := n.buildMessage(notification)

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 1), ctx)
	err := backoff.Retry(func() error {
		postCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return slack.PostWebhookContext(postCtx, n.webhookURL, msg)
	}, policy)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}

	n.logger.Debug().Str("title", notification.Title).Msg("Notification sent")
	return nil
}

func (n *SlackNotifier) buildMessage(notification interfaces.Notification) *slack.WebhookMessage {
	fields := make([]slack.AttachmentField, 0, len(notification.Fields)+1)
	for _, f := range notification.Fields {
		fields = append(fields, slack.AttachmentField{
			Title: f.Title,
			Value: f.Value,
			Short: true,
		})
	}
	if notification.FilePath != "" {
		fields = append(fields, slack.AttachmentField{
			Title: "Results",
			Value: notification.FilePath,
		})
	}

	title := notification.Title
	if notification.Emoji != "" {
		title = notification.Emoji + " " + title
	}

	attachment := slack.Attachment{
		Title:  title,
		Fields: fields,
		Footer: fmt.Sprintf("platform: %s | job: %s", notification.Platform, notification.JobID),
		Ts:     json.Number(fmt.Sprintf("%d", notification.Timestamp.Unix())),
	}

	return &slack.WebhookMessage{
		Attachments: []slack.Attachment{attachment},
	}
}
