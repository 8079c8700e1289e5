package lob

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// fill is one slice of quantity taken from a resting order during matching.
type fill struct {
	order    *Order
	quantity int64
}

// priceLevel is the FIFO of resting orders at one exact price on one side.
// Orders hang off an intrusive doubly-linked list so append, unlink and
// front access are all O(1). total and count are maintained incrementally.
type priceLevel struct {
	price decimal.Decimal
	head  *Order
	tail  *Order
	total int64
	count int64
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price}
}

// append adds an order to the tail, preserving arrival order.
func (l *priceLevel) append(order *Order) {
	order.prev = l.tail
	order.next = nil
	if l.tail != nil {
		l.tail.next = order
	}
	l.tail = order
	if l.head == nil {
		l.head = order
	}
	l.total += order.Remaining
	l.count++
}

// peekFront returns the earliest-arrived order without removing it.
func (l *priceLevel) peekFront() *Order {
	return l.head
}

// unlink removes an order from the level. The order must be a member; the
// caller owns the decision of what state it transitions to.
func (l *priceLevel) unlink(order *Order) {
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}
	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}
	order.next = nil
	order.prev = nil

	l.total -= order.Remaining
	l.count--
}

// consume takes quantity from the front of the level in arrival order,
// transitioning each drained order to FILLED and unlinking it, and the last
// partially consumed order to PARTIALLY_FILLED. It returns one fill per
// order touched. Consuming more than the level holds is a matching bug and
// panics rather than fabricating liquidity.
func (l *priceLevel) consume(quantity int64) []fill {
	if quantity <= 0 || quantity > l.total {
		panic(fmt.Sprintf("lob: consume %d from level %s holding %d", quantity, l.price, l.total))
	}

	fills := make([]fill, 0, 2)
	for quantity > 0 {
		front := l.head
		take := front.Remaining
		if take > quantity {
			take = quantity
		}

		if take == front.Remaining {
			l.unlink(front)
			front.Remaining = 0
			front.State = StateFilled
		} else {
			front.Remaining -= take
			front.State = StatePartiallyFilled
			l.total -= take
		}

		fills = append(fills, fill{order: front, quantity: take})
		quantity -= take
	}

	return fills
}

// reduce shrinks the remaining quantity of a member order in place, keeping
// its position in the queue.
func (l *priceLevel) reduce(order *Order, newRemaining int64) {
	l.total -= order.Remaining - newRemaining
	order.Remaining = newRemaining
}

func (l *priceLevel) isEmpty() bool {
	return l.count == 0
}
