// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libris/internal/calendar"
	"libris/internal/loans"
	"libris/internal/notify"
)

// Clock supplies the current time so tests can pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Dependencies wires the orchestrator's collaborators. Sink and Clock are
// optional; everything else is required.
type Dependencies struct {
	Members      MemberStore
	Items        ItemStore
	Checkouts    CheckoutStore
	Reservations ReservationStore
	Resolver     *loans.Resolver
	Calendar     calendar.Service
	Tx           Transactor
	Sink         notify.Sink
	Clock        Clock
}

type service struct {
	members      MemberStore
	items        ItemStore
	checkouts    CheckoutStore
	reservations ReservationStore
	resolver     *loans.Resolver
	calendar     calendar.Service
	tx           Transactor
	sink         notify.Sink
	clock        Clock
	tracer       trace.Tracer
}

// NewService creates the circulation orchestrator.
func NewService(deps Dependencies) Service {
	clock := deps.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &service{
		members:      deps.Members,
		items:        deps.Items,
		checkouts:    deps.Checkouts,
		reservations: deps.Reservations,
		resolver:     deps.Resolver,
		calendar:     deps.Calendar,
		tx:           deps.Tx,
		sink:         deps.Sink,
		clock:        clock,
		tracer:       otel.Tracer("libris/circulation"),
	}
}

func (s *service) Reserve(ctx context.Context, memberIdentifier, itemIdentifier string, expiry *int64) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.reserve",
		trace.WithAttributes(
			attribute.String("member.identifier", memberIdentifier),
			attribute.String("item.identifier", itemIdentifier),
		),
	)
	defer span.End()

	var reservation *Reservation

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.findMember(ctx, memberIdentifier)
		if err != nil {
			return err
		}
		item, err := s.findItem(ctx, itemIdentifier)
		if err != nil {
			return err
		}

		reservation = &Reservation{
			ID:         uuid.New(),
			ItemID:     item.ID,
			MemberID:   member.ID,
			ReservedAt: s.clock.Now().Unix(),
			ExpiryDate: expiry,
			Status:     ReservationWaiting,
		}

		if next, ok := ApplyItemTransition(item.Status, TransitionReserve); ok {
			item.Status = next
			if err := s.items.Save(ctx, item); err != nil {
				return fmt.Errorf("save item: %w", err)
			}
		}

		if err := s.reservations.Save(ctx, reservation); err != nil {
			return fmt.Errorf("save reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Kind:             notify.KindReserved,
		MemberIdentifier: memberIdentifier,
		ItemIdentifiers:  []string{itemIdentifier},
		OccurredAt:       s.clock.Now(),
	})
	return reservation, nil
}

func (s *service) Checkout(ctx context.Context, memberIdentifier string, itemIdentifiers []string) ([]*Checkout, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.checkout",
		trace.WithAttributes(
			attribute.String("member.identifier", memberIdentifier),
			attribute.Int("item.count", len(itemIdentifiers)),
		),
	)
	defer span.End()

	var results []*Checkout
	var firstDue *time.Time

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.findMember(ctx, memberIdentifier)
		if err != nil {
			return err
		}
		if !member.IsActive() {
			return fmt.Errorf("%w: %s is %s", ErrMemberInactive, member.Identifier, member.Status)
		}

		now := s.clock.Now()

		for _, itemIdentifier := range itemIdentifiers {
			item, err := s.findItem(ctx, itemIdentifier)
			if err != nil {
				return err
			}
			if item.Restricted {
				return fmt.Errorf("%w: %s", ErrItemRestricted, item.Identifier)
			}

			res, err := s.resolver.Resolve(ctx, item.Type1, member.Group1)
			if err != nil {
				return err
			}

			if err := s.enforceLimits(ctx, member, item, res); err != nil {
				return err
			}

			source := res.DueSource()
			dueDate, err := s.calendar.DueDate(ctx, now, source.LoanPeriod, source.AdjustDueOnClosedDay)
			if err != nil {
				return fmt.Errorf("calculate due date for %s: %w", item.Identifier, err)
			}

			reservation, err := s.reservations.FindWaiting(ctx, item.ID, member.ID)
			if err != nil {
				return fmt.Errorf("find waiting reservation: %w", err)
			}
			if reservation != nil {
				if next, ok := ApplyReservationTransition(reservation.Status, ReservationComplete); ok {
					reservation.Status = next
					if err := s.reservations.Save(ctx, reservation); err != nil {
						return fmt.Errorf("save reservation: %w", err)
					}
				}
			}

			if next, ok := ApplyItemTransition(item.Status, TransitionCheckOut); ok {
				item.Status = next
				if err := s.items.Save(ctx, item); err != nil {
					return fmt.Errorf("save item: %w", err)
				}
			}

			checkout := &Checkout{
				ID:           uuid.New(),
				ItemID:       item.ID,
				MemberID:     member.ID,
				CheckedOutAt: now,
				DueDate:      dueDate,
				Status:       CheckoutStatusCheckedOut,
			}
			if err := s.checkouts.Save(ctx, checkout); err != nil {
				return fmt.Errorf("save checkout: %w", err)
			}

			if firstDue == nil {
				firstDue = dueDate
			}
			results = append(results, checkout)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Kind:             notify.KindCheckedOut,
		MemberIdentifier: memberIdentifier,
		ItemIdentifiers:  itemIdentifiers,
		DueDate:          firstDue,
		OccurredAt:       s.clock.Now(),
	})
	return results, nil
}

// enforceLimits applies the layered count checks: the blanket condition caps
// the member's total active checkouts, the specific condition caps the count
// within the item's own loan group. Both apply when both exist.
func (s *service) enforceLimits(ctx context.Context, member *Member, item *Item, res loans.Resolution) error {
	if res.Blanket != nil {
		total, err := s.checkouts.CountActiveByMember(ctx, member.ID)
		if err != nil {
			return fmt.Errorf("count active checkouts: %w", err)
		}
		if total+1 > res.Blanket.LoanLimit {
			return fmt.Errorf("%w: member %s has %d active checkouts, blanket limit is %d",
				ErrLoanLimitExceeded, member.Identifier, total, res.Blanket.LoanLimit)
		}
	}

	if res.Specific != nil {
		count, err := s.checkouts.CountActiveByMemberAndGroup(ctx, member.ID, res.GroupID())
		if err != nil {
			return fmt.Errorf("count active checkouts by group: %w", err)
		}
		if count+1 > res.Specific.LoanLimit {
			return fmt.Errorf("%w: member %s has %d active checkouts in %s's loan group, limit is %d",
				ErrLoanLimitExceeded, member.Identifier, count, item.Identifier, res.Specific.LoanLimit)
		}
	}
	return nil
}

func (s *service) CheckIn(ctx context.Context, itemIdentifier string) (*Checkout, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.check_in",
		trace.WithAttributes(attribute.String("item.identifier", itemIdentifier)),
	)
	defer span.End()

	var checkout *Checkout
	var freedReservation bool

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.findItem(ctx, itemIdentifier)
		if err != nil {
			return err
		}

		checkout, err = s.checkouts.FindActiveByItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("find active checkout: %w", err)
		}
		if checkout == nil {
			checkout, err = s.checkouts.FindLatestByItem(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("find latest checkout: %w", err)
			}
		}

		if checkout != nil && checkout.CheckedInAt == nil {
			now := s.clock.Now()
			checkout.CheckedInAt = &now
			checkout.Status = CheckoutStatusReturned
			if err := s.checkouts.Save(ctx, checkout); err != nil {
				return fmt.Errorf("save checkout: %w", err)
			}
		}

		itemDirty := false
		if next, ok := ApplyItemTransition(item.Status, TransitionCheckIn); ok {
			item.Status = next
			itemDirty = true
		}

		reservation, err := s.reservations.FindOldestWaiting(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("find oldest waiting reservation: %w", err)
		}
		if reservation != nil {
			if next, ok := ApplyReservationTransition(reservation.Status, ReservationMakeAvailable); ok {
				reservation.Status = next
				if err := s.reservations.Save(ctx, reservation); err != nil {
					return fmt.Errorf("save reservation: %w", err)
				}
				freedReservation = true
			}
			if next, ok := ApplyItemTransition(item.Status, TransitionReserve); ok {
				item.Status = next
				itemDirty = true
			}
		}

		if itemDirty {
			if err := s.items.Save(ctx, item); err != nil {
				return fmt.Errorf("save item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Kind:            notify.KindCheckedIn,
		ItemIdentifiers: []string{itemIdentifier},
		OccurredAt:      s.clock.Now(),
	})
	if freedReservation {
		s.notify(ctx, notify.Event{
			Kind:            notify.KindReservationAvailable,
			ItemIdentifiers: []string{itemIdentifier},
			OccurredAt:      s.clock.Now(),
		})
	}
	return checkout, nil
}

func (s *service) findMember(ctx context.Context, identifier string) (*Member, error) {
	member, err := s.members.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, identifier)
	}
	return member, nil
}

func (s *service) findItem(ctx context.Context, identifier string) (*Item, error) {
	item, err := s.items.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("find item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, identifier)
	}
	return item, nil
}

// notify is fire-and-forget: sink failures are logged, never surfaced.
func (s *service) notify(ctx context.Context, event notify.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Send(ctx, event); err != nil {
		log.Printf("circulation: notification for %s event failed: %v", event.Kind, err)
	}
}
