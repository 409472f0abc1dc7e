package notify

import (
	"context"
	"log"
)

// LogNotifier writes notifications to the process log. It is the
// default when no webhook endpoint is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notification) error {
	log.Printf("notify: reminder %s due for %s (dest=%s priority=%s): %s",
		n.ReminderID, n.OwnerID, n.DestinationID, n.Priority, n.Title)
	return nil
}

var _ Notifier = LogNotifier{}
