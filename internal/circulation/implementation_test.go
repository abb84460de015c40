// internal/circulation/implementation_test.go
package circulation

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/calendar"
	"libris/internal/loans"
	"libris/internal/notify"
)

// memStore backs every circulation store interface with maps and slices. Its
// transactor snapshots the state before each call and restores it on error,
// so the atomicity assertions exercise real rollback behavior.
type memStore struct {
	members       map[string]*Member
	items         map[string]*Item
	checkouts     []*Checkout
	reservations  []*Reservation
	groupByItemID map[int64]*int64
}

func newMemStore() *memStore {
	return &memStore{
		members:       make(map[string]*Member),
		items:         make(map[string]*Item),
		groupByItemID: make(map[int64]*int64),
	}
}

func (m *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range m.members {
		mv := *v
		c.members[k] = &mv
	}
	for k, v := range m.items {
		iv := *v
		c.items[k] = &iv
	}
	for _, co := range m.checkouts {
		cv := *co
		c.checkouts = append(c.checkouts, &cv)
	}
	for _, r := range m.reservations {
		rv := *r
		c.reservations = append(c.reservations, &rv)
	}
	for k, v := range m.groupByItemID {
		c.groupByItemID[k] = v
	}
	return c
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.clone()
	if err := fn(ctx); err != nil {
		*m = *snap
		return err
	}
	return nil
}

func (m *memStore) FindByIdentifier(ctx context.Context, identifier string) (*Member, error) {
	return m.members[identifier], nil
}

type itemStoreView struct{ *memStore }

func (v itemStoreView) FindByIdentifier(ctx context.Context, identifier string) (*Item, error) {
	return v.items[identifier], nil
}

func (v itemStoreView) Save(ctx context.Context, item *Item) error {
	v.items[item.Identifier] = item
	return nil
}

func (m *memStore) CountActiveByMember(ctx context.Context, memberID int64) (int, error) {
	n := 0
	for _, c := range m.checkouts {
		if c.MemberID == memberID && c.Status == CheckoutStatusCheckedOut {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountActiveByMemberAndGroup(ctx context.Context, memberID int64, loanGroupID *int64) (int, error) {
	n := 0
	for _, c := range m.checkouts {
		if c.MemberID != memberID || c.Status != CheckoutStatusCheckedOut {
			continue
		}
		group := m.groupByItemID[c.ItemID]
		if loanGroupID == nil && group == nil {
			n++
		} else if loanGroupID != nil && group != nil && *loanGroupID == *group {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindActiveByItem(ctx context.Context, itemID int64) (*Checkout, error) {
	for _, c := range m.checkouts {
		if c.ItemID == itemID && c.Status == CheckoutStatusCheckedOut {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindLatestByItem(ctx context.Context, itemID int64) (*Checkout, error) {
	var latest *Checkout
	for _, c := range m.checkouts {
		if c.ItemID != itemID {
			continue
		}
		if latest == nil || c.CheckedOutAt.After(latest.CheckedOutAt) {
			latest = c
		}
	}
	return latest, nil
}

func (m *memStore) Save(ctx context.Context, checkout *Checkout) error {
	for i, c := range m.checkouts {
		if c.ID == checkout.ID {
			m.checkouts[i] = checkout
			return nil
		}
	}
	m.checkouts = append(m.checkouts, checkout)
	return nil
}

type reservationStoreView struct{ *memStore }

func (v reservationStoreView) FindWaiting(ctx context.Context, itemID, memberID int64) (*Reservation, error) {
	for _, r := range v.reservations {
		if r.ItemID == itemID && r.MemberID == memberID && r.Status == ReservationWaiting {
			return r, nil
		}
	}
	return nil, nil
}

func (v reservationStoreView) FindOldestWaiting(ctx context.Context, itemID int64) (*Reservation, error) {
	var waiting []*Reservation
	for _, r := range v.reservations {
		if r.ItemID == itemID && r.Status == ReservationWaiting {
			waiting = append(waiting, r)
		}
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].ReservedAt < waiting[j].ReservedAt })
	return waiting[0], nil
}

func (v reservationStoreView) Save(ctx context.Context, reservation *Reservation) error {
	for i, r := range v.reservations {
		if r.ID == reservation.ID {
			v.reservations[i] = reservation
			return nil
		}
	}
	v.reservations = append(v.reservations, reservation)
	return nil
}

// loan-group and condition fakes for the resolver.

type groupStoreStub struct {
	byClassification map[string]*loans.Group
	byName           map[string]*loans.Group
}

func (s *groupStoreStub) ForClassification(ctx context.Context, classification string) (*loans.Group, error) {
	return s.byClassification[classification], nil
}

func (s *groupStoreStub) FindByName(ctx context.Context, name string) (*loans.Group, error) {
	return s.byName[name], nil
}

type conditionStoreStub struct {
	conditions []*loans.Condition
}

func (s *conditionStoreStub) Find(ctx context.Context, group *loans.Group, memberGroup string) (*loans.Condition, error) {
	for _, c := range s.conditions {
		if c.MemberGroup != memberGroup {
			continue
		}
		if group == nil && c.GroupID == nil {
			return c, nil
		}
		if group != nil && c.GroupID != nil && *c.GroupID == group.ID {
			return c, nil
		}
	}
	return nil, nil
}

type eventStoreStub struct{ events []calendar.Event }

func (s *eventStoreStub) RelevantTo(ctx context.Context, date time.Time) ([]calendar.Event, error) {
	return s.events, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingSink struct {
	events []notify.Event
	err    error
}

func (s *recordingSink) Send(ctx context.Context, event notify.Event) error {
	s.events = append(s.events, event)
	return s.err
}

// fixture bundles a fully wired service over in-memory collaborators.
type fixture struct {
	store  *memStore
	groups *groupStoreStub
	conds  *conditionStoreStub
	events *eventStoreStub
	sink   *recordingSink
	now    time.Time
	svc    Service
}

func newFixture(t *testing.T, defaults *loans.Defaults) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemStore(),
		groups: &groupStoreStub{byClassification: map[string]*loans.Group{}, byName: map[string]*loans.Group{}},
		conds:  &conditionStoreStub{},
		events: &eventStoreStub{},
		sink:   &recordingSink{},
		now:    time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC), // a Monday
	}
	resolver := loans.NewResolver(f.groups, f.conds, loans.Config{AllGroupName: "all members", Defaults: defaults})
	f.svc = NewService(Dependencies{
		Members:      f.store,
		Items:        itemStoreView{f.store},
		Checkouts:    f.store,
		Reservations: reservationStoreView{f.store},
		Resolver:     resolver,
		Calendar:     calendar.NewService(f.events),
		Tx:           f.store,
		Sink:         f.sink,
		Clock:        fixedClock{now: f.now},
	})
	return f
}

func (f *fixture) addMember(id int64, identifier string, status ActivityStatus) *Member {
	m := &Member{ID: id, Identifier: identifier, FullName: identifier, Group1: "standard", Status: status}
	f.store.members[identifier] = m
	return m
}

func (f *fixture) addItem(id int64, identifier, type1 string, state ItemState) *Item {
	i := &Item{ID: id, Identifier: identifier, Type1: type1, Status: state}
	f.store.items[identifier] = i
	return i
}

func (f *fixture) addBlanketCondition(limit, period int) {
	all := &loans.Group{ID: 99, Name: "all members"}
	f.groups.byName["all members"] = all
	gid := all.ID
	f.conds.conditions = append(f.conds.conditions, &loans.Condition{
		GroupID: &gid, MemberGroup: "standard", LoanLimit: limit, LoanPeriod: period,
	})
}

func (f *fixture) addSpecificCondition(groupID int64, classification string, limit, period int, backward bool) {
	g := &loans.Group{ID: groupID, Name: classification}
	f.groups.byClassification[classification] = g
	gid := groupID
	f.conds.conditions = append(f.conds.conditions, &loans.Condition{
		GroupID: &gid, MemberGroup: "standard", LoanLimit: limit, LoanPeriod: period,
		AdjustDueOnClosedDay: backward,
	})
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("single item against blanket condition", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		f.addBlanketCondition(3, 14)

		checkouts, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		require.Len(t, checkouts, 1)

		co := checkouts[0]
		assert.Equal(t, CheckoutStatusCheckedOut, co.Status)
		require.NotNil(t, co.DueDate)
		assert.Equal(t, f.now.AddDate(0, 0, 14), *co.DueDate)
		assert.Nil(t, co.CheckedInAt)
		assert.Equal(t, ItemCheckedOut, f.store.items["I1"].Status)
		require.Len(t, f.sink.events, 1)
		assert.Equal(t, notify.KindCheckedOut, f.sink.events[0].Kind)
	})

	t.Run("due date adjusted forward past closed days", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		f.addBlanketCondition(3, 14)
		// f.now+14d is Monday 2026-02-16; close it and the following Tuesday.
		end := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
		f.events.events = []calendar.Event{{
			UID:     "uid-closure",
			DtStart: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
			DtEnd:   &end,
			AllDay:  true,
			Closed:  true,
		}}

		checkouts, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		require.NotNil(t, checkouts[0].DueDate)
		assert.Equal(t, 18, checkouts[0].DueDate.Day())
	})

	t.Run("specific condition adjusts backward", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		f.addBlanketCondition(5, 21)
		f.addSpecificCondition(7, "fiction", 2, 14, true)
		f.store.groupByItemID[10] = groupRef(7)
		end := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
		f.events.events = []calendar.Event{{
			UID:     "uid-closure",
			DtStart: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
			DtEnd:   &end,
			AllDay:  true,
			Closed:  true,
		}}

		checkouts, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		require.NotNil(t, checkouts[0].DueDate)
		// Specific period wins (14 days) and its flag moves the date backward.
		assert.Equal(t, 15, checkouts[0].DueDate.Day())
	})

	t.Run("unlimited period leaves due date empty", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		f.addBlanketCondition(3, calendar.UnlimitedPeriod)

		checkouts, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		assert.Nil(t, checkouts[0].DueDate)
	})

	t.Run("blanket limit rejects the fourth checkout", func(t *testing.T) {
		f := newFixture(t, nil)
		m := f.addMember(1, "M1", StatusActive)
		f.addBlanketCondition(3, 14)
		for i := int64(0); i < 3; i++ {
			item := f.addItem(20+i, string(rune('A'+i)), "fiction", ItemAvailable)
			_, err := f.svc.Checkout(ctx, "M1", []string{item.Identifier})
			require.NoError(t, err)
		}
		total, _ := f.store.CountActiveByMember(ctx, m.ID)
		require.Equal(t, 3, total)
		f.addItem(30, "I4", "fiction", ItemAvailable)

		_, err := f.svc.Checkout(ctx, "M1", []string{"I4"})
		assert.ErrorIs(t, err, ErrLoanLimitExceeded)
	})

	t.Run("specific limit enforced alongside blanket", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addBlanketCondition(10, 14)
		f.addSpecificCondition(7, "dvd", 1, 7, false)
		first := f.addItem(10, "D1", "dvd", ItemAvailable)
		second := f.addItem(11, "D2", "dvd", ItemAvailable)
		f.store.groupByItemID[first.ID] = groupRef(7)
		f.store.groupByItemID[second.ID] = groupRef(7)

		_, err := f.svc.Checkout(ctx, "M1", []string{"D1"})
		require.NoError(t, err)
		_, err = f.svc.Checkout(ctx, "M1", []string{"D2"})
		assert.ErrorIs(t, err, ErrLoanLimitExceeded)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addBlanketCondition(5, 14)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		restricted := f.addItem(11, "I2", "fiction", ItemAvailable)
		restricted.Restricted = true

		_, err := f.svc.Checkout(ctx, "M1", []string{"I1", "I2"})
		assert.ErrorIs(t, err, ErrItemRestricted)
		assert.Empty(t, f.store.checkouts, "first item must not be persisted")
		assert.Equal(t, ItemAvailable, f.store.items["I1"].Status)
		assert.Empty(t, f.sink.events)
	})

	t.Run("checkout completes the member's waiting reservation", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemReserved)
		f.addBlanketCondition(3, 14)
		_, err := f.svc.Reserve(ctx, "M1", "I1", nil)
		require.NoError(t, err)

		_, err = f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		require.Len(t, f.store.reservations, 1)
		assert.Equal(t, ReservationCompleted, f.store.reservations[0].Status)
	})

	t.Run("precondition failures", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addMember(2, "M2", StatusInactive)
		f.addMember(3, "M3", StatusExpired)
		f.addBlanketCondition(3, 14)
		item := f.addItem(10, "I1", "fiction", ItemAvailable)

		_, err := f.svc.Checkout(ctx, "ghost", []string{"I1"})
		assert.ErrorIs(t, err, ErrMemberNotFound)

		_, err = f.svc.Checkout(ctx, "M2", []string{"I1"})
		assert.ErrorIs(t, err, ErrMemberInactive)

		_, err = f.svc.Checkout(ctx, "M3", []string{"I1"})
		assert.ErrorIs(t, err, ErrMemberInactive)

		_, err = f.svc.Checkout(ctx, "M1", []string{"missing"})
		assert.ErrorIs(t, err, ErrItemNotFound)

		item.Restricted = true
		_, err = f.svc.Checkout(ctx, "M1", []string{"I1"})
		assert.ErrorIs(t, err, ErrItemRestricted)
	})

	t.Run("no condition anywhere fails the checkout", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)

		_, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		assert.ErrorIs(t, err, loans.ErrConditionNotFound)
	})

	t.Run("static defaults rescue a bare configuration", func(t *testing.T) {
		f := newFixture(t, &loans.Defaults{LoanLimit: 2, LoanPeriod: 7})
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)

		checkouts, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		require.NotNil(t, checkouts[0].DueDate)
		assert.Equal(t, f.now.AddDate(0, 0, 7), *checkouts[0].DueDate)
	})

	t.Run("sink failure does not fail the checkout", func(t *testing.T) {
		f := newFixture(t, nil)
		f.sink.err = errors.New("webhook down")
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		f.addBlanketCondition(3, 14)

		checkouts, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
		assert.Len(t, checkouts, 1)
	})
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a waiting reservation and flips the item", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)

		expiry := f.now.AddDate(0, 0, 30).Unix()
		reservation, err := f.svc.Reserve(ctx, "M1", "I1", &expiry)
		require.NoError(t, err)
		assert.Equal(t, ReservationWaiting, reservation.Status)
		assert.Equal(t, f.now.Unix(), reservation.ReservedAt)
		require.NotNil(t, reservation.ExpiryDate)
		assert.Equal(t, expiry, *reservation.ExpiryDate)
		assert.Equal(t, ItemReserved, f.store.items["I1"].Status)
	})

	t.Run("reserve on a checked-out item keeps its state", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemCheckedOut)

		reservation, err := f.svc.Reserve(ctx, "M1", "I1", nil)
		require.NoError(t, err)
		assert.Equal(t, ReservationWaiting, reservation.Status)
		assert.Equal(t, ItemCheckedOut, f.store.items["I1"].Status)
	})

	t.Run("unknown member or item fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addMember(1, "M1", StatusActive)

		_, err := f.svc.Reserve(ctx, "ghost", "I1", nil)
		assert.ErrorIs(t, err, ErrMemberNotFound)

		_, err = f.svc.Reserve(ctx, "M1", "ghost", nil)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()

	checkoutOne := func(t *testing.T, f *fixture) {
		t.Helper()
		f.addMember(1, "M1", StatusActive)
		f.addItem(10, "I1", "fiction", ItemAvailable)
		f.addBlanketCondition(3, 14)
		_, err := f.svc.Checkout(ctx, "M1", []string{"I1"})
		require.NoError(t, err)
	}

	t.Run("stamps the active checkout returned", func(t *testing.T) {
		f := newFixture(t, nil)
		checkoutOne(t, f)

		checkout, err := f.svc.CheckIn(ctx, "I1")
		require.NoError(t, err)
		require.NotNil(t, checkout)
		assert.Equal(t, CheckoutStatusReturned, checkout.Status)
		require.NotNil(t, checkout.CheckedInAt)
		assert.Equal(t, f.now, *checkout.CheckedInAt)
		assert.Equal(t, ItemAvailable, f.store.items["I1"].Status)
	})

	t.Run("waiting reservation becomes available and re-reserves the item", func(t *testing.T) {
		f := newFixture(t, nil)
		checkoutOne(t, f)
		f.addMember(2, "M2", StatusActive)
		_, err := f.svc.Reserve(ctx, "M2", "I1", nil)
		require.NoError(t, err)

		_, err = f.svc.CheckIn(ctx, "I1")
		require.NoError(t, err)
		require.Len(t, f.store.reservations, 1)
		assert.Equal(t, ReservationAvailable, f.store.reservations[0].Status)
		assert.Equal(t, ItemReserved, f.store.items["I1"].Status)

		kinds := make([]notify.Kind, 0, len(f.sink.events))
		for _, ev := range f.sink.events {
			kinds = append(kinds, ev.Kind)
		}
		assert.Contains(t, kinds, notify.KindReservationAvailable)
	})

	t.Run("already returned item is a no-op success", func(t *testing.T) {
		f := newFixture(t, nil)
		checkoutOne(t, f)
		first, err := f.svc.CheckIn(ctx, "I1")
		require.NoError(t, err)
		require.NotNil(t, first)
		stamped := *first.CheckedInAt

		again, err := f.svc.CheckIn(ctx, "I1")
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, CheckoutStatusReturned, again.Status)
		assert.Equal(t, stamped, *again.CheckedInAt)
	})

	t.Run("item never checked out returns nil", func(t *testing.T) {
		f := newFixture(t, nil)
		f.addItem(10, "I1", "fiction", ItemAvailable)

		checkout, err := f.svc.CheckIn(ctx, "I1")
		require.NoError(t, err)
		assert.Nil(t, checkout)
	})

	t.Run("unknown item fails", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.CheckIn(ctx, "ghost")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
}

func groupRef(id int64) *int64 { return &id }
