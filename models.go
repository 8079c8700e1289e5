package lob

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side int8

const (
	Bid Side = 1
	Ask Side = 2
)

// String returns the wire name of the side. Unknown values stringify to
// "unknown" and never pass validation.
func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

type State int8

const (
	StateNew State = iota
	StatePartiallyFilled
	StateFilled
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePartiallyFilled:
		return "partially_filled"
	case StateFilled:
		return "filled"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave this state.
func (s State) Terminal() bool {
	return s == StateFilled || s == StateCancelled
}

type TimeInForce string

const (
	GTC      TimeInForce = "gtc"       // rest until filled or cancelled
	IOC      TimeInForce = "ioc"       // match what is marketable, discard the rest
	FOK      TimeInForce = "fok"       // fill completely or touch nothing
	PostOnly TimeInForce = "post_only" // rest only, never take
)

// ValidationResult is the single-error outcome of order validation.
// String-typed so it round-trips losslessly through any binding layer.
type ValidationResult string

const (
	ValidationOK                ValidationResult = "valid"
	ValidationInvalidPrice      ValidationResult = "invalid_price"
	ValidationInvalidQuantity   ValidationResult = "invalid_quantity"
	ValidationOverfilled        ValidationResult = "overfilled"
	ValidationInvalidSide       ValidationResult = "invalid_side"
	ValidationInvalidState      ValidationResult = "invalid_state"
	ValidationTimestampInFuture ValidationResult = "timestamp_in_future"
	ValidationDuplicateID       ValidationResult = "duplicate_id"

	// Time-in-force outcomes. The order itself is well formed; the book
	// refused it without mutation.
	ValidationWouldCross  ValidationResult = "would_cross_spread"
	ValidationCannotFill  ValidationResult = "insufficient_liquidity"
	ValidationNoLiquidity ValidationResult = "no_liquidity"
)

// CancelResult is the outcome of a cancellation attempt.
type CancelResult string

const (
	CancelSuccess         CancelResult = "success"
	CancelNotFound        CancelResult = "not_found"
	CancelAlreadyTerminal CancelResult = "already_terminal"
)

// Order is one resting or in-flight intent to trade. The identity fields are
// set by the submitter and never change; Remaining and State are owned by
// the book once the order is accepted.
type Order struct {
	ID          string          `json:"id"`
	Ticker      string          `json:"ticker"`
	Side        Side            `json:"side"`
	Client      string          `json:"client"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`  // original quantity
	Remaining   int64           `json:"remaining"` // unfilled quantity
	State       State           `json:"state"`
	TIF         TimeInForce     `json:"tif,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`

	// Intrusive FIFO links within a price level (never serialized).
	next *Order
	prev *Order
}

// Trade is an immutable execution record. Price is always the resting
// order's price.
type Trade struct {
	ID          string          `json:"id"`
	Ticker      string          `json:"ticker"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	TakerSide   Side            `json:"taker_side"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// SubmissionResult is returned synchronously from Book.Submit. Trades is
// empty when nothing matched; RestingOrderID is set only when a remainder
// was placed on the book.
type SubmissionResult struct {
	Validation     ValidationResult `json:"validation"`
	Trades         []*Trade         `json:"trades,omitempty"`
	RestingOrderID string           `json:"resting_order_id,omitempty"`
}

// AmendRequest changes the price and/or remaining quantity of a resting
// order. NewQuantity is the desired remaining quantity.
type AmendRequest struct {
	OrderID     string          `json:"order_id"`
	NewPrice    decimal.Decimal `json:"new_price"`
	NewQuantity int64           `json:"new_quantity"`
}

// AmendResult reports an amendment outcome. Trades is non-empty when a
// priority-losing amend re-entered the book and matched.
type AmendResult struct {
	Result         CancelResult `json:"result"`
	Trades         []*Trade     `json:"trades,omitempty"`
	RestingOrderID string       `json:"resting_order_id,omitempty"`
}

// DepthItem is one aggregated price level in a depth snapshot.
type DepthItem struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Orders   int64           `json:"orders"`
}

// BookStats contains sizing statistics for one book.
type BookStats struct {
	BidLevelCount int64
	BidOrderCount int64
	AskLevelCount int64
	AskOrderCount int64
}
