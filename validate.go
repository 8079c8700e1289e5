package lob

import "time"

// idIndex is the read-only view of known order IDs used by the duplicate
// check. Both resting and terminal orders count: an ID is claimed for the
// lifetime of the book.
type idIndex interface {
	Contains(id string) bool
}

// Validate checks an order against the admission rules. The rules run in a
// fixed sequence and the first failure wins, so an invalid order always
// reports the same single result. The order is never mutated.
//
// now is the book's current logical clock and ids is the book's registry
// view; passing a zero time or a nil index skips the corresponding rule,
// which is what the internal consistency checks rely on.
func Validate(order *Order, now time.Time, ids idIndex) ValidationResult {
	if !order.Price.IsPositive() {
		return ValidationInvalidPrice
	}
	if order.Quantity <= 0 {
		return ValidationInvalidQuantity
	}
	if order.Remaining < 0 || order.Remaining > order.Quantity {
		return ValidationOverfilled
	}
	if order.Side != Bid && order.Side != Ask {
		return ValidationInvalidSide
	}
	if order.State == StateCancelled && order.Remaining != order.Quantity {
		return ValidationInvalidState
	}
	if !now.IsZero() && order.SubmittedAt.After(now) {
		return ValidationTimestampInFuture
	}
	if ids != nil && ids.Contains(order.ID) {
		return ValidationDuplicateID
	}
	return ValidationOK
}
