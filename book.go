package lob

import (
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// Book is the matching core for a single instrument. It is a single-writer
// structure: Submit, Cancel and Amend must be serialized by the caller. The
// OrderBook wrapper provides that serialization via a dedicated goroutine;
// use Book directly only when the call site already guarantees a total order
// of operations (tests, replay, a caller-owned event loop).
//
// No method blocks on I/O. Expected outcomes (rejections, not-found) are
// reported as result values; a broken structural invariant panics, because
// continuing to match against a corrupted book risks fabricating or losing
// trades.
type Book struct {
	ticker  string
	bids    *ladder
	asks    *ladder
	reg     *registry
	seq     uint64
	now     func() time.Time
	pub     PublishLog
	metrics *Metrics
}

type BookOption func(*Book)

// WithClock replaces the book's clock. The clock is the reference for the
// timestamp-in-future validation rule and stamps orders submitted without a
// timestamp.
func WithClock(now func() time.Time) BookOption {
	return func(b *Book) {
		b.now = now
	}
}

// WithPublisher sets the sink for the book-delta event stream. Defaults to
// discarding events.
func WithPublisher(pub PublishLog) BookOption {
	return func(b *Book) {
		b.pub = pub
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) BookOption {
	return func(b *Book) {
		b.metrics = m
	}
}

// NewBook creates an empty book for one instrument.
func NewBook(ticker string, opts ...BookOption) *Book {
	reg := newRegistry()
	b := &Book{
		ticker: ticker,
		bids:   newBidLadder(reg),
		asks:   newAskLadder(reg),
		reg:    reg,
		now:    time.Now,
		pub:    NewDiscardPublishLog(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ticker returns the instrument symbol this book serves.
func (b *Book) Ticker() string {
	return b.ticker
}

// Sequence returns the sequence number of the last published event.
func (b *Book) Sequence() uint64 {
	return b.seq
}

// Submit validates the order and runs price-time-priority matching against
// the opposing ladder. Validation is all-or-nothing: a non-valid result
// means no trade happened and the book was not touched. Any unmatched
// remainder of a GTC order rests on the order's own ladder; IOC remainders
// are discarded and FOK orders fill completely or not at all.
//
// A zero Remaining on a NEW order is initialized to Quantity, and a zero
// SubmittedAt is stamped with the book's clock at acceptance.
func (b *Book) Submit(order *Order) *SubmissionResult {
	now := b.now()
	if order.TIF == "" {
		order.TIF = GTC
	}
	if order.Remaining == 0 && order.State == StateNew {
		order.Remaining = order.Quantity
	}

	if v := Validate(order, now, b.reg); v != ValidationOK {
		b.reject(order, v, now)
		return &SubmissionResult{Validation: v}
	}
	if order.SubmittedAt.IsZero() {
		order.SubmittedAt = now
	}

	own, opp := b.sides(order.Side)

	switch order.TIF {
	case PostOnly:
		if best := opp.bestLevel(); best != nil && marketable(order.Side, order.Price, best.price) {
			b.reject(order, ValidationWouldCross, now)
			return &SubmissionResult{Validation: ValidationWouldCross}
		}
	case FOK:
		if opp.marketableQuantity(order.Side, order.Price) < order.Remaining {
			b.reject(order, ValidationCannotFill, now)
			return &SubmissionResult{Validation: ValidationCannotFill}
		}
	}

	res := &SubmissionResult{Validation: ValidationOK}
	res.Trades = b.match(order, opp, now)

	switch {
	case order.Remaining == 0:
		order.State = StateFilled
		b.reg.markTerminal(order)
	case order.TIF == IOC:
		if len(res.Trades) == 0 {
			b.publish(newRejectEvent(b.nextSeq(), b.ticker, order, ValidationNoLiquidity, now))
			res.Validation = ValidationNoLiquidity
			break
		}
		// The remainder of a partially filled IOC never rests.
		order.State = StateCancelled
		b.reg.markTerminal(order)
	default:
		own.insert(order)
		b.publish(newOpenEvent(b.nextSeq(), b.ticker, order, now))
		res.RestingOrderID = order.ID
	}

	b.checkUncrossed()
	b.observeSubmit(res)
	return res
}

// match consumes marketable liquidity from the opposing ladder, best level
// first and FIFO within a level, producing one trade per resting order
// touched. Trades always execute at the resting order's price.
func (b *Book) match(taker *Order, opp *ladder, now time.Time) []*Trade {
	var trades []*Trade

	for taker.Remaining > 0 {
		best := opp.bestLevel()
		if best == nil || !marketable(taker.Side, taker.Price, best.price) {
			break
		}

		take := taker.Remaining
		if best.total < take {
			take = best.total
		}
		price := best.price

		for _, f := range opp.consumeBest(take) {
			trade := b.newTrade(taker, f.order, price, f.quantity, now)
			trades = append(trades, trade)
			taker.Remaining -= f.quantity
			b.publish(newMatchEvent(b.nextSeq(), b.ticker, taker, f.order, trade, now))
		}
	}

	if len(trades) > 0 && taker.Remaining > 0 {
		taker.State = StatePartiallyFilled
	}
	return trades
}

// Cancel removes a resting order from the book. Orders already FILLED or
// CANCELLED report already_terminal; unknown IDs report not_found. Neither
// failure mutates anything, and recorded trades are never affected.
func (b *Book) Cancel(orderID string) CancelResult {
	if orderID == "" {
		return CancelNotFound
	}
	if _, ok := b.reg.getTerminal(orderID); ok {
		return CancelAlreadyTerminal
	}
	entry, ok := b.reg.get(orderID)
	if !ok {
		return CancelNotFound
	}

	order := entry.order
	b.ladderFor(entry.side).remove(order)
	order.State = StateCancelled
	b.reg.markTerminal(order)
	b.publish(newCancelEvent(b.nextSeq(), b.ticker, order, b.now()))
	if b.metrics != nil {
		b.metrics.observeCancel(b.ticker)
	}
	return CancelSuccess
}

// Amend changes the price and/or remaining quantity of a resting order.
// A price change or a quantity increase is cancel-then-resubmit: the order
// re-enters with a fresh timestamp, loses time priority and may match
// immediately. A quantity decrease at the same price is applied in place
// and keeps priority.
func (b *Book) Amend(req *AmendRequest) (*AmendResult, error) {
	if req == nil || req.OrderID == "" || !req.NewPrice.IsPositive() || req.NewQuantity <= 0 {
		return nil, ErrInvalidParam
	}
	if _, ok := b.reg.getTerminal(req.OrderID); ok {
		return &AmendResult{Result: CancelAlreadyTerminal}, nil
	}
	entry, ok := b.reg.get(req.OrderID)
	if !ok {
		return &AmendResult{Result: CancelNotFound}, nil
	}

	order := entry.order
	now := b.now()
	oldPrice := order.Price
	oldRemaining := order.Remaining

	if req.NewPrice.Equal(oldPrice) && req.NewQuantity <= oldRemaining {
		// Priority kept: shrink in place.
		if req.NewQuantity < oldRemaining {
			b.ladderFor(entry.side).reduce(order, req.NewQuantity)
		}
		b.publish(newAmendEvent(b.nextSeq(), b.ticker, order, oldPrice, oldRemaining, now))
		return &AmendResult{Result: CancelSuccess, RestingOrderID: order.ID}, nil
	}

	// Priority lost: pull the order and re-enter it fresh.
	b.ladderFor(entry.side).remove(order)
	order.Price = req.NewPrice
	order.Quantity = req.NewQuantity
	order.Remaining = req.NewQuantity
	order.State = StateNew
	order.SubmittedAt = now
	b.publish(newAmendEvent(b.nextSeq(), b.ticker, order, oldPrice, oldRemaining, now))

	own, opp := b.sides(order.Side)
	if order.TIF == PostOnly {
		if best := opp.bestLevel(); best != nil && marketable(order.Side, order.Price, best.price) {
			// A post-only order amended into the spread is dropped, not
			// allowed to take.
			order.State = StateCancelled
			b.reg.markTerminal(order)
			b.publish(newRejectEvent(b.nextSeq(), b.ticker, order, ValidationWouldCross, now))
			return &AmendResult{Result: CancelSuccess}, nil
		}
	}
	res := &AmendResult{Result: CancelSuccess}
	res.Trades = b.match(order, opp, now)

	if order.Remaining == 0 {
		order.State = StateFilled
		b.reg.markTerminal(order)
	} else {
		own.insert(order)
		b.publish(newOpenEvent(b.nextSeq(), b.ticker, order, now))
		res.RestingOrderID = order.ID
	}

	b.checkUncrossed()
	return res, nil
}

// BestBid returns the highest resting bid price, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	if lvl := b.bids.bestLevel(); lvl != nil {
		return lvl.price, true
	}
	return decimal.Decimal{}, false
}

// BestAsk returns the lowest resting ask price, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	if lvl := b.asks.bestLevel(); lvl != nil {
		return lvl.price, true
	}
	return decimal.Decimal{}, false
}

// Depth returns up to levels aggregated price levels for one side, best
// price first.
func (b *Book) Depth(side Side, levels int) []DepthItem {
	if levels <= 0 {
		return nil
	}
	return b.ladderFor(side).depth(levels)
}

// OrderStatus returns a read-only copy of an order, resting or terminal.
func (b *Book) OrderStatus(orderID string) (Order, bool) {
	if entry, ok := b.reg.get(orderID); ok {
		cpy := *entry.order
		cpy.next = nil
		cpy.prev = nil
		return cpy, true
	}
	if order, ok := b.reg.getTerminal(orderID); ok {
		cpy := *order
		cpy.next = nil
		cpy.prev = nil
		return cpy, true
	}
	return Order{}, false
}

// Stats returns sizing statistics for the book.
func (b *Book) Stats() BookStats {
	return BookStats{
		BidLevelCount: b.bids.levelCount(),
		BidOrderCount: b.bids.orderCount(),
		AskLevelCount: b.asks.levelCount(),
		AskOrderCount: b.asks.orderCount(),
	}
}

func (b *Book) sides(s Side) (own, opp *ladder) {
	if s == Bid {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

func (b *Book) ladderFor(s Side) *ladder {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

func (b *Book) nextSeq() uint64 {
	b.seq++
	return b.seq
}

func (b *Book) newTrade(taker, maker *Order, price decimal.Decimal, quantity int64, at time.Time) *Trade {
	trade := &Trade{
		ID:         xid.New().String(),
		Ticker:     b.ticker,
		Price:      price,
		Quantity:   quantity,
		TakerSide:  taker.Side,
		ExecutedAt: at,
	}
	if taker.Side == Bid {
		trade.BuyOrderID = taker.ID
		trade.SellOrderID = maker.ID
	} else {
		trade.BuyOrderID = maker.ID
		trade.SellOrderID = taker.ID
	}
	return trade
}

func (b *Book) publish(ev *BookEvent) {
	b.pub.Publish(ev)
	releaseBookEvent(ev)
}

func (b *Book) reject(order *Order, reason ValidationResult, now time.Time) {
	b.publish(newRejectEvent(b.nextSeq(), b.ticker, order, reason, now))
	if b.metrics != nil {
		b.metrics.observeSubmit(b.ticker, reason, 0)
	}
}

// checkUncrossed panics if a crossed book survived a mutation. A cross may
// exist transiently inside the matching loop, never in the state a caller
// observes.
func (b *Book) checkUncrossed() {
	bid := b.bids.bestLevel()
	ask := b.asks.bestLevel()
	if bid != nil && ask != nil && bid.price.GreaterThanOrEqual(ask.price) {
		panic(fmt.Sprintf("lob: crossed book on %s: bid %s >= ask %s", b.ticker, bid.price, ask.price))
	}
}

func (b *Book) observeSubmit(res *SubmissionResult) {
	if b.metrics == nil {
		return
	}
	var volume int64
	for _, t := range res.Trades {
		volume += t.Quantity
	}
	b.metrics.observeSubmit(b.ticker, res.Validation, len(res.Trades))
	if volume > 0 {
		b.metrics.observeVolume(b.ticker, volume)
	}
	b.metrics.observeDepth(b.ticker, b.Stats())
}
