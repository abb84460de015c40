// internal/notify/notify.go
package notify

import (
	"context"
	"log"
	"time"
)

// Kind names the circulation event a notification reports.
type Kind string

const (
	KindReserved             Kind = "reserved"
	KindCheckedOut           Kind = "checked_out"
	KindCheckedIn            Kind = "checked_in"
	KindReservationAvailable Kind = "reservation_available"
)

// Event is what gets sent after a successful circulation transition.
type Event struct {
	Kind             Kind
	MemberIdentifier string
	ItemIdentifiers  []string
	DueDate          *time.Time
	OccurredAt       time.Time
}

// Sink receives circulation events. Sends are fire-and-forget from the
// caller's point of view: a failing sink must never roll back circulation.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// Channel delivers a single event somewhere concrete (log line, webhook).
type Channel interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Dispatcher fans an event out to every channel. A channel failure is logged
// and does not stop delivery to the others; Send itself never fails.
type Dispatcher struct {
	channels []Channel
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

func (d *Dispatcher) Send(ctx context.Context, event Event) error {
	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, event); err != nil {
			log.Printf("notify: %s channel failed for %s event: %v", ch.Name(), event.Kind, err)
		}
	}
	return nil
}

// LogChannel writes events to the process log. It is the default channel so
// a bare deployment still records circulation activity.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Deliver(ctx context.Context, event Event) error {
	log.Printf("notify: %s member=%s items=%v", event.Kind, event.MemberIdentifier, event.ItemIdentifiers)
	return nil
}
