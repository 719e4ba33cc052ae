package interfaces

import (
	"context"
	"time"
)

// NotificationField is one key/value pair rendered in a chat message.
type NotificationField struct {
	Title string
	Value string
}

// Notification is the transport-agnostic alert the pipeline decides to send.
type Notification struct {
	Title     string
	Emoji     string
	Platform  string
	JobID     string
	Fields    []NotificationField
	FilePath  string
	Timestamp time.Time
}

// Notifier posts a notification to the outbound chat transport.
// Delivery is best effort; callers must treat failures as non-fatal.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
