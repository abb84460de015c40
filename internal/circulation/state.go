// internal/circulation/state.go
package circulation

// ItemState is an item's lifecycle place. Received and Returned exist as
// states an imported record may carry; the transition table below routes
// `receive` and `check_in` straight to Available.
type ItemState string

const (
	ItemNew           ItemState = "New"
	ItemSelected      ItemState = "Selected"
	ItemAwaitingOrder ItemState = "AwaitingOrder"
	ItemOrdered       ItemState = "Ordered"
	ItemReceived      ItemState = "Received"
	ItemAvailable     ItemState = "Available"
	ItemReserved      ItemState = "Reserved"
	ItemCheckedOut    ItemState = "CheckedOut"
	ItemReturned      ItemState = "Returned"
)

// Transition is a named edge in the item lifecycle.
type Transition string

const (
	TransitionSelection Transition = "selection"
	TransitionOrder     Transition = "order"
	TransitionReceive   Transition = "receive"
	TransitionReserve   Transition = "reserve"
	TransitionCheckOut  Transition = "check_out"
	TransitionCheckIn   Transition = "check_in"
)

var itemTransitions = map[Transition]map[ItemState]ItemState{
	TransitionSelection: {
		ItemNew: ItemSelected,
	},
	TransitionOrder: {
		ItemSelected:      ItemOrdered,
		ItemAwaitingOrder: ItemOrdered,
	},
	TransitionReceive: {
		ItemOrdered: ItemAvailable,
	},
	TransitionReserve: {
		ItemAvailable: ItemReserved,
	},
	TransitionCheckOut: {
		ItemAvailable: ItemCheckedOut,
		ItemReserved:  ItemCheckedOut,
	},
	TransitionCheckIn: {
		ItemCheckedOut: ItemAvailable,
	},
}

// ApplyItemTransition returns the state after applying the transition and
// whether the guard allowed it. A failed guard is not an error: the caller
// applies the transition only when allowed and otherwise leaves the item
// untouched.
func ApplyItemTransition(current ItemState, t Transition) (ItemState, bool) {
	next, ok := itemTransitions[t][current]
	if !ok {
		return current, false
	}
	return next, true
}

// ReservationState is a reservation's lifecycle place.
type ReservationState string

const (
	ReservationWaiting   ReservationState = "waiting"
	ReservationAvailable ReservationState = "available"
	ReservationCompleted ReservationState = "completed"
)

// ReservationTransition is a named edge in the reservation lifecycle.
type ReservationTransition string

const (
	// ReservationMakeAvailable signals the member their item came back.
	ReservationMakeAvailable ReservationTransition = "make_available"
	// ReservationComplete closes the reservation; a checkout may complete a
	// waiting reservation directly without the available step.
	ReservationComplete ReservationTransition = "complete"
)

var reservationTransitions = map[ReservationTransition]map[ReservationState]ReservationState{
	ReservationMakeAvailable: {
		ReservationWaiting: ReservationAvailable,
	},
	ReservationComplete: {
		ReservationWaiting:   ReservationCompleted,
		ReservationAvailable: ReservationCompleted,
	},
}

// ApplyReservationTransition mirrors ApplyItemTransition for reservations.
func ApplyReservationTransition(current ReservationState, t ReservationTransition) (ReservationState, bool) {
	next, ok := reservationTransitions[t][current]
	if !ok {
		return current, false
	}
	return next, true
}
