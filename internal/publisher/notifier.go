// Package publisher announces finished crawls to downstream consumers.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

// EventCrawlCompleted is the event name attached to completion messages.
const EventCrawlCompleted = "crawl.completed"

// Publisher sends one payload for an event and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// Notification is the message body: the run summary plus where the dataset
// was written.
type Notification struct {
	Event       string          `json:"event"`
	Summary     crawler.Summary `json:"summary"`
	Output      string          `json:"output,omitempty"`
	PublishedAt time.Time       `json:"published_at"`
}

// Notifier is a crawler.DatasetSink that publishes the summary only. The
// records themselves stay in the dataset file.
type Notifier struct {
	publisher Publisher
	output    string
	clock     crawler.Clock
}

// NewNotifier wraps publisher. output names the dataset location included in
// the message.
func NewNotifier(publisher Publisher, output string, clock crawler.Clock) (*Notifier, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	return &Notifier{publisher: publisher, output: output, clock: clock}, nil
}

// Name identifies the sink in logs.
func (n *Notifier) Name() string {
	return "pubsub"
}

// Save publishes a completion notification.
func (n *Notifier) Save(ctx context.Context, dataset crawler.Dataset) error {
	msg := Notification{
		Event:       EventCrawlCompleted,
		Summary:     dataset.Summary,
		Output:      n.output,
		PublishedAt: n.clock.Now().UTC(),
	}
	if _, err := n.publisher.Publish(ctx, EventCrawlCompleted, msg); err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	return nil
}
