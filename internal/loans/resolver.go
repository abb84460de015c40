// internal/loans/resolver.go
package loans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrConditionNotFound means no condition could be resolved and no static
// defaults were configured. This is a setup problem, not a business rule
// violation, and is fatal to the operation that asked.
var ErrConditionNotFound = errors.New("loan condition not found for loan group, member group and defaults")

// Config carries the resolver's static configuration: the label of the
// sentinel "applies to all items" group and the optional fallback bundle.
type Config struct {
	AllGroupName string
	Defaults     *Defaults // nil means no static fallback
}

// Resolution is the outcome of a lookup. Specific and Blanket are both
// returned when both exist: limit enforcement is layered over the two, while
// the due-date parameters come from the specific condition when present.
type Resolution struct {
	Group    *Group // the item's own loan group, nil when unmapped
	Specific *Condition
	Blanket  *Condition
}

// GroupID returns the specific loan group's id, or nil.
func (r Resolution) GroupID() *int64 {
	if r.Group == nil {
		return nil
	}
	id := r.Group.ID
	return &id
}

// DueSource returns the condition that drives the due-date calculation:
// the specific condition wins, the blanket one is the fallback.
func (r Resolution) DueSource() *Condition {
	if r.Specific != nil {
		return r.Specific
	}
	return r.Blanket
}

// Resolver maps an (item classification, member group) pair to the applicable
// loan conditions. Read-only and safe for concurrent use.
type Resolver struct {
	groups     GroupStore
	conditions ConditionStore
	cfg        Config
	tracer     trace.Tracer
}

// NewResolver creates a resolver over the given stores.
func NewResolver(groups GroupStore, conditions ConditionStore, cfg Config) *Resolver {
	return &Resolver{
		groups:     groups,
		conditions: conditions,
		cfg:        cfg,
		tracer:     otel.Tracer("libris/loans"),
	}
}

// Resolve walks the fallback chain: the classification's own loan group and
// its condition, then the sentinel all-items group's condition, then the
// configured static defaults. The synthesized default takes the specific
// slot so the caller applies it like a specific condition.
func (r *Resolver) Resolve(ctx context.Context, classification, memberGroup string) (Resolution, error) {
	ctx, span := r.tracer.Start(ctx, "loans.resolve",
		trace.WithAttributes(
			attribute.String("classification", classification),
			attribute.String("member.group", memberGroup),
		),
	)
	defer span.End()

	var res Resolution

	if strings.TrimSpace(classification) != "" {
		group, err := r.groups.ForClassification(ctx, classification)
		if err != nil {
			return Resolution{}, fmt.Errorf("find loan group for classification %q: %w", classification, err)
		}
		res.Group = group
	}

	specific, err := r.conditions.Find(ctx, res.Group, memberGroup)
	if err != nil {
		return Resolution{}, fmt.Errorf("find specific loan condition: %w", err)
	}
	res.Specific = specific

	allGroup, err := r.groups.FindByName(ctx, r.cfg.AllGroupName)
	if err != nil {
		return Resolution{}, fmt.Errorf("find all-items loan group: %w", err)
	}
	if allGroup != nil {
		blanket, err := r.conditions.Find(ctx, allGroup, memberGroup)
		if err != nil {
			return Resolution{}, fmt.Errorf("find blanket loan condition: %w", err)
		}
		res.Blanket = blanket
	}

	if res.Specific == nil && res.Blanket == nil {
		if r.cfg.Defaults == nil {
			return Resolution{}, fmt.Errorf("%w: member group %q", ErrConditionNotFound, memberGroup)
		}
		d := r.cfg.Defaults
		res.Specific = &Condition{
			GroupID:              res.GroupID(),
			MemberGroup:          memberGroup,
			LoanLimit:            d.LoanLimit,
			LoanPeriod:           d.LoanPeriod,
			RenewLimit:           d.RenewLimit,
			ReservationLimit:     d.ReservationLimit,
			AdjustDueOnClosedDay: d.AdjustDueOnClosedDay,
		}
	}

	return res, nil
}
