// Package notify fans alerts out to every configured channel (Discord,
// Telegram). A failing channel never blocks delivery to the others.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/crossarb/internal/logger"
)

// Field is one labelled value of a Message. When URL is set the value is
// rendered as a link.
type Field struct {
	Name   string
	Value  string
	URL    string
	Inline bool
}

// Message is a channel-neutral notification.
type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
	Timestamp   time.Time
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one message.
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches messages to one or more Senders.
type Notifier struct {
	senders []Sender
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders ...Sender) *Notifier {
	return &Notifier{senders: senders}
}

// Len returns the number of registered senders.
func (n *Notifier) Len() int {
	return len(n.senders)
}

// Notify sends msg to every sender. Errors from individual senders are
// collected and returned as a combined error.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			logger.Error("Notification via %s failed: %v", s.Name(), err)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		logger.Debug("Notification sent via %s: %s", s.Name(), msg.Title)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
