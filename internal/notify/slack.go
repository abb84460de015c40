// internal/notify/slack.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// SlackChannel posts events to a Slack incoming webhook. The breaker stops
// dialing a webhook that keeps failing so circulation latency is not spent on
// a dead endpoint.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewSlackChannel creates a channel for the given webhook URL.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "slack-webhook",
			Timeout: 30 * time.Second,
		}),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Deliver(ctx context.Context, event Event) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, event)
	})
	return err
}

func (c *SlackChannel) post(ctx context.Context, event Event) error {
	payload := map[string]string{"text": formatText(event)}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func formatText(event Event) string {
	switch event.Kind {
	case KindCheckedOut:
		text := fmt.Sprintf("Member %s checked out %d item(s)", event.MemberIdentifier, len(event.ItemIdentifiers))
		if event.DueDate != nil {
			text += fmt.Sprintf(", due %s", event.DueDate.Format("2006-01-02"))
		}
		return text
	case KindCheckedIn:
		return fmt.Sprintf("Item %v returned", event.ItemIdentifiers)
	case KindReservationAvailable:
		return fmt.Sprintf("Reserved item %v is now available for member %s", event.ItemIdentifiers, event.MemberIdentifier)
	case KindReserved:
		return fmt.Sprintf("Member %s reserved item %v", event.MemberIdentifier, event.ItemIdentifiers)
	}
	return fmt.Sprintf("Circulation event %s for member %s", event.Kind, event.MemberIdentifier)
}
