package lob

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOpen   EventType = "open"
	EventMatch  EventType = "match"
	EventCancel EventType = "cancel"
	EventAmend  EventType = "amend"
	EventReject EventType = "reject"
)

// BookEvent is one entry in the append-only book-delta stream. Sequence is
// strictly increasing per book, which downstream consumers use for ordering,
// deduplication and gap detection when rebuilding state.
// Open, Match, Cancel and Amend affect book state; Reject does not.
type BookEvent struct {
	Sequence     uint64           `json:"seq"`
	Type         EventType        `json:"type"`
	Ticker       string           `json:"ticker"`
	Side         Side             `json:"side"`
	Price        decimal.Decimal  `json:"price"`
	Quantity     int64            `json:"quantity"`
	OldPrice     decimal.Decimal  `json:"old_price,omitempty"`
	OldQuantity  int64            `json:"old_quantity,omitempty"`
	OrderID      string           `json:"order_id"`
	Client       string           `json:"client,omitempty"`
	TradeID      string           `json:"trade_id,omitempty"`       // only set for Match
	MakerOrderID string           `json:"maker_order_id,omitempty"` // only set for Match
	MakerClient  string           `json:"maker_client,omitempty"`   // only set for Match
	Reject       ValidationResult `json:"reject_reason,omitempty"`  // only set for Reject
	CreatedAt    time.Time        `json:"created_at"`
}

var bookEventPool = sync.Pool{
	New: func() any {
		return new(BookEvent)
	},
}

func acquireBookEvent() *BookEvent {
	return bookEventPool.Get().(*BookEvent)
}

func releaseBookEvent(ev *BookEvent) {
	// Reset to zero values. The zero decimal is a valid 0.
	*ev = BookEvent{}
	bookEventPool.Put(ev)
}

func newOpenEvent(seq uint64, ticker string, order *Order, at time.Time) *BookEvent {
	ev := acquireBookEvent()
	ev.Sequence = seq
	ev.Type = EventOpen
	ev.Ticker = ticker
	ev.Side = order.Side
	ev.Price = order.Price
	ev.Quantity = order.Remaining
	ev.OrderID = order.ID
	ev.Client = order.Client
	ev.CreatedAt = at
	return ev
}

func newMatchEvent(seq uint64, ticker string, taker, maker *Order, trade *Trade, at time.Time) *BookEvent {
	ev := acquireBookEvent()
	ev.Sequence = seq
	ev.Type = EventMatch
	ev.Ticker = ticker
	ev.Side = taker.Side
	ev.Price = trade.Price
	ev.Quantity = trade.Quantity
	ev.OrderID = taker.ID
	ev.Client = taker.Client
	ev.TradeID = trade.ID
	ev.MakerOrderID = maker.ID
	ev.MakerClient = maker.Client
	ev.CreatedAt = at
	return ev
}

func newCancelEvent(seq uint64, ticker string, order *Order, at time.Time) *BookEvent {
	ev := acquireBookEvent()
	ev.Sequence = seq
	ev.Type = EventCancel
	ev.Ticker = ticker
	ev.Side = order.Side
	ev.Price = order.Price
	ev.Quantity = order.Remaining
	ev.OrderID = order.ID
	ev.Client = order.Client
	ev.CreatedAt = at
	return ev
}

func newAmendEvent(seq uint64, ticker string, order *Order, oldPrice decimal.Decimal, oldQuantity int64, at time.Time) *BookEvent {
	ev := acquireBookEvent()
	ev.Sequence = seq
	ev.Type = EventAmend
	ev.Ticker = ticker
	ev.Side = order.Side
	ev.Price = order.Price
	ev.Quantity = order.Remaining
	ev.OldPrice = oldPrice
	ev.OldQuantity = oldQuantity
	ev.OrderID = order.ID
	ev.Client = order.Client
	ev.CreatedAt = at
	return ev
}

func newRejectEvent(seq uint64, ticker string, order *Order, reason ValidationResult, at time.Time) *BookEvent {
	ev := acquireBookEvent()
	ev.Sequence = seq
	ev.Type = EventReject
	ev.Ticker = ticker
	ev.Side = order.Side
	ev.Price = order.Price
	ev.Quantity = order.Remaining
	ev.OrderID = order.ID
	ev.Client = order.Client
	ev.Reject = reason
	ev.CreatedAt = at
	return ev
}
