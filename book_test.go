package lob

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitOrder(id string, side Side, price, qty int64) *Order {
	return &Order{
		ID:       id,
		Ticker:   "ACME",
		Side:     side,
		Client:   "client-" + id,
		Price:    decimal.NewFromInt(price),
		Quantity: qty,
	}
}

func newTestBook(opts ...BookOption) *Book {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	defaults := []BookOption{WithClock(func() time.Time { return base })}
	return NewBook("ACME", append(defaults, opts...)...)
}

func TestSubmitRejectsInvalidOrders(t *testing.T) {
	book := newTestBook()

	res := book.Submit(limitOrder("bad", Bid, 0, 10))
	assert.Equal(t, ValidationInvalidPrice, res.Validation)
	assert.Empty(t, res.Trades)
	assert.Empty(t, res.RestingOrderID)

	// The rejected order never entered the book.
	stats := book.Stats()
	assert.Equal(t, int64(0), stats.BidOrderCount)

	// Same invalid fields, same result.
	res = book.Submit(limitOrder("bad", Bid, 0, 10))
	assert.Equal(t, ValidationInvalidPrice, res.Validation)
}

func TestSubmitRejectsDuplicateID(t *testing.T) {
	book := newTestBook()

	res := book.Submit(limitOrder("dup", Bid, 100, 10))
	require.Equal(t, ValidationOK, res.Validation)

	res = book.Submit(limitOrder("dup", Ask, 200, 5))
	assert.Equal(t, ValidationDuplicateID, res.Validation)

	// IDs stay claimed after the order terminates.
	require.Equal(t, CancelSuccess, book.Cancel("dup"))
	res = book.Submit(limitOrder("dup", Bid, 100, 10))
	assert.Equal(t, ValidationDuplicateID, res.Validation)
}

func TestSubmitRejectsFutureTimestamp(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	book := NewBook("ACME", WithClock(func() time.Time { return base }))

	order := limitOrder("late", Bid, 100, 10)
	order.SubmittedAt = base.Add(time.Minute)
	res := book.Submit(order)
	assert.Equal(t, ValidationTimestampInFuture, res.Validation)
}

func TestScenarioFullFillAtSamePrice(t *testing.T) {
	book := newTestBook()

	res := book.Submit(limitOrder("bid-1", Bid, 100, 10))
	require.Equal(t, ValidationOK, res.Validation)
	require.Equal(t, "bid-1", res.RestingOrderID)

	res = book.Submit(limitOrder("ask-1", Ask, 100, 10))
	require.Equal(t, ValidationOK, res.Validation)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, "bid-1", trade.BuyOrderID)
	assert.Equal(t, "ask-1", trade.SellOrderID)
	assert.Equal(t, "100", trade.Price.String())
	assert.Equal(t, int64(10), trade.Quantity)
	assert.Equal(t, Ask, trade.TakerSide)
	assert.NotEmpty(t, trade.ID)
	assert.Empty(t, res.RestingOrderID)

	maker, ok := book.OrderStatus("bid-1")
	require.True(t, ok)
	assert.Equal(t, StateFilled, maker.State)
	assert.Equal(t, int64(0), maker.Remaining)

	taker, ok := book.OrderStatus("ask-1")
	require.True(t, ok)
	assert.Equal(t, StateFilled, taker.State)

	stats := book.Stats()
	assert.Equal(t, int64(0), stats.BidOrderCount)
	assert.Equal(t, int64(0), stats.AskOrderCount)
}

func TestScenarioPartialFillRemainderRests(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("bid-1", Bid, 100, 5))
	res := book.Submit(limitOrder("ask-1", Ask, 99, 10))

	require.Len(t, res.Trades, 1)
	// Trade executes at the resting order's price, not the taker's limit.
	assert.Equal(t, "100", res.Trades[0].Price.String())
	assert.Equal(t, int64(5), res.Trades[0].Quantity)
	assert.Equal(t, "ask-1", res.RestingOrderID)

	taker, ok := book.OrderStatus("ask-1")
	require.True(t, ok)
	assert.Equal(t, StatePartiallyFilled, taker.State)
	assert.Equal(t, int64(5), taker.Remaining)

	ask, hasAsk := book.BestAsk()
	require.True(t, hasAsk)
	assert.Equal(t, "99", ask.String())

	_, hasBid := book.BestBid()
	assert.False(t, hasBid)
}

func TestScenarioNotMarketable(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("ask-1", Ask, 101, 10))
	res := book.Submit(limitOrder("bid-1", Bid, 100, 10))

	assert.Empty(t, res.Trades)
	assert.Equal(t, "bid-1", res.RestingOrderID)

	bid, hasBid := book.BestBid()
	require.True(t, hasBid)
	assert.Equal(t, "100", bid.String())
	ask, hasAsk := book.BestAsk()
	require.True(t, hasAsk)
	assert.Equal(t, "101", ask.String())
}

func TestScenarioCancelledOrderDoesNotMatch(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("bid-1", Bid, 100, 10))
	require.Equal(t, CancelSuccess, book.Cancel("bid-1"))

	res := book.Submit(limitOrder("ask-1", Ask, 100, 10))
	assert.Empty(t, res.Trades)
	assert.Equal(t, "ask-1", res.RestingOrderID)

	cancelled, ok := book.OrderStatus("bid-1")
	require.True(t, ok)
	assert.Equal(t, StateCancelled, cancelled.State)
	assert.Equal(t, int64(10), cancelled.Remaining)
}

func TestPriceTimePriority(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("early", Bid, 100, 5))
	book.Submit(limitOrder("late", Bid, 100, 5))
	book.Submit(limitOrder("better", Bid, 101, 5))

	res := book.Submit(limitOrder("sweep", Ask, 100, 12))
	require.Len(t, res.Trades, 3)

	// Better price first, then arrival order within the 100 level.
	assert.Equal(t, "better", res.Trades[0].BuyOrderID)
	assert.Equal(t, "101", res.Trades[0].Price.String())
	assert.Equal(t, "early", res.Trades[1].BuyOrderID)
	assert.Equal(t, "late", res.Trades[2].BuyOrderID)
	assert.Equal(t, int64(2), res.Trades[2].Quantity)

	late, _ := book.OrderStatus("late")
	assert.Equal(t, StatePartiallyFilled, late.State)
	assert.Equal(t, int64(3), late.Remaining)
}

func TestQuantityConservation(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("a", Ask, 100, 3))
	book.Submit(limitOrder("b", Ask, 101, 4))
	book.Submit(limitOrder("c", Ask, 102, 5))

	order := limitOrder("big", Bid, 101, 10)
	res := book.Submit(order)

	var filled int64
	for _, trade := range res.Trades {
		filled += trade.Quantity
	}
	resting, ok := book.OrderStatus("big")
	require.True(t, ok)
	assert.Equal(t, int64(10), filled+resting.Remaining)
	assert.Equal(t, int64(7), filled)
	assert.Equal(t, int64(3), resting.Remaining)
}

func TestNoTradeWorseThanRestingLimit(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("a", Ask, 100, 3))
	book.Submit(limitOrder("b", Ask, 105, 3))

	res := book.Submit(limitOrder("cross", Bid, 110, 6))
	require.Len(t, res.Trades, 2)
	for _, trade := range res.Trades {
		assert.True(t, trade.Price.LessThanOrEqual(decimal.NewFromInt(110)))
	}
	assert.Equal(t, "100", res.Trades[0].Price.String())
	assert.Equal(t, "105", res.Trades[1].Price.String())
}

func TestCancelSemantics(t *testing.T) {
	book := newTestBook()

	assert.Equal(t, CancelNotFound, book.Cancel("ghost"))
	assert.Equal(t, CancelNotFound, book.Cancel(""))

	book.Submit(limitOrder("bid-1", Bid, 100, 10))
	assert.Equal(t, CancelSuccess, book.Cancel("bid-1"))
	assert.Equal(t, CancelAlreadyTerminal, book.Cancel("bid-1"))

	// Filled orders are terminal too.
	book.Submit(limitOrder("bid-2", Bid, 100, 10))
	book.Submit(limitOrder("ask-2", Ask, 100, 10))
	assert.Equal(t, CancelAlreadyTerminal, book.Cancel("bid-2"))
	assert.Equal(t, CancelAlreadyTerminal, book.Cancel("ask-2"))
}

func TestCancelPartiallyFilledDiscardsRemainder(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("bid-1", Bid, 100, 10))
	res := book.Submit(limitOrder("ask-1", Ask, 100, 4))
	require.Len(t, res.Trades, 1)

	assert.Equal(t, CancelSuccess, book.Cancel("bid-1"))
	order, ok := book.OrderStatus("bid-1")
	require.True(t, ok)
	assert.Equal(t, StateCancelled, order.State)
	assert.Equal(t, int64(6), order.Remaining)

	// The fill that already happened is untouched; the book is empty.
	stats := book.Stats()
	assert.Equal(t, int64(0), stats.BidOrderCount)
}

func TestDepthSnapshot(t *testing.T) {
	book := newTestBook()

	book.Submit(limitOrder("b1", Bid, 100, 5))
	book.Submit(limitOrder("b2", Bid, 100, 3))
	book.Submit(limitOrder("b3", Bid, 99, 7))
	book.Submit(limitOrder("a1", Ask, 101, 2))

	depth := book.Depth(Bid, 5)
	require.Len(t, depth, 2)
	assert.Equal(t, "100", depth[0].Price.String())
	assert.Equal(t, int64(8), depth[0].Quantity)
	assert.Equal(t, "99", depth[1].Price.String())

	depth = book.Depth(Ask, 5)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(2), depth[0].Quantity)

	assert.Nil(t, book.Depth(Bid, 0))
}

func TestOrderStatusUnknown(t *testing.T) {
	book := newTestBook()
	_, ok := book.OrderStatus("nope")
	assert.False(t, ok)
}

func TestImmediateOrCancel(t *testing.T) {
	t.Run("no liquidity", func(t *testing.T) {
		book := newTestBook()
		order := limitOrder("ioc", Bid, 100, 10)
		order.TIF = IOC
		res := book.Submit(order)
		assert.Equal(t, ValidationNoLiquidity, res.Validation)
		assert.Empty(t, res.Trades)
		assert.Equal(t, int64(0), book.Stats().BidOrderCount)
	})

	t.Run("partial fill discards remainder", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("ask-1", Ask, 100, 4))

		order := limitOrder("ioc", Bid, 100, 10)
		order.TIF = IOC
		res := book.Submit(order)
		require.Equal(t, ValidationOK, res.Validation)
		require.Len(t, res.Trades, 1)
		assert.Equal(t, int64(4), res.Trades[0].Quantity)
		assert.Empty(t, res.RestingOrderID)
		assert.Equal(t, int64(0), book.Stats().BidOrderCount)

		status, ok := book.OrderStatus("ioc")
		require.True(t, ok)
		assert.Equal(t, StateCancelled, status.State)
		assert.Equal(t, int64(6), status.Remaining)
	})
}

func TestFillOrKill(t *testing.T) {
	t.Run("insufficient liquidity leaves book untouched", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("ask-1", Ask, 100, 4))
		book.Submit(limitOrder("ask-2", Ask, 105, 4))

		order := limitOrder("fok", Bid, 100, 10)
		order.TIF = FOK
		res := book.Submit(order)
		assert.Equal(t, ValidationCannotFill, res.Validation)
		assert.Empty(t, res.Trades)

		// Nothing consumed.
		depth := book.Depth(Ask, 5)
		require.Len(t, depth, 2)
		assert.Equal(t, int64(4), depth[0].Quantity)
	})

	t.Run("fills across levels", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("ask-1", Ask, 100, 4))
		book.Submit(limitOrder("ask-2", Ask, 101, 8))

		order := limitOrder("fok", Bid, 101, 10)
		order.TIF = FOK
		res := book.Submit(order)
		require.Equal(t, ValidationOK, res.Validation)
		require.Len(t, res.Trades, 2)

		status, ok := book.OrderStatus("fok")
		require.True(t, ok)
		assert.Equal(t, StateFilled, status.State)

		depth := book.Depth(Ask, 5)
		require.Len(t, depth, 1)
		assert.Equal(t, int64(2), depth[0].Quantity)
	})
}

func TestPostOnly(t *testing.T) {
	t.Run("rests when not crossing", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("ask-1", Ask, 101, 5))

		order := limitOrder("po", Bid, 100, 5)
		order.TIF = PostOnly
		res := book.Submit(order)
		assert.Equal(t, ValidationOK, res.Validation)
		assert.Equal(t, "po", res.RestingOrderID)
	})

	t.Run("rejected when it would cross", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("ask-1", Ask, 100, 5))

		order := limitOrder("po", Bid, 100, 5)
		order.TIF = PostOnly
		res := book.Submit(order)
		assert.Equal(t, ValidationWouldCross, res.Validation)
		assert.Empty(t, res.Trades)
		assert.Equal(t, int64(0), book.Stats().BidOrderCount)
		assert.Equal(t, int64(1), book.Stats().AskOrderCount)
	})
}

func TestAmend(t *testing.T) {
	t.Run("invalid params", func(t *testing.T) {
		book := newTestBook()
		_, err := book.Amend(nil)
		assert.ErrorIs(t, err, ErrInvalidParam)
		_, err = book.Amend(&AmendRequest{OrderID: "x", NewPrice: decimal.Zero, NewQuantity: 1})
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("unknown and terminal orders", func(t *testing.T) {
		book := newTestBook()
		res, err := book.Amend(&AmendRequest{OrderID: "ghost", NewPrice: decimal.NewFromInt(10), NewQuantity: 1})
		require.NoError(t, err)
		assert.Equal(t, CancelNotFound, res.Result)

		book.Submit(limitOrder("done", Bid, 100, 5))
		book.Cancel("done")
		res, err = book.Amend(&AmendRequest{OrderID: "done", NewPrice: decimal.NewFromInt(10), NewQuantity: 1})
		require.NoError(t, err)
		assert.Equal(t, CancelAlreadyTerminal, res.Result)
	})

	t.Run("quantity decrease keeps priority", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("first", Bid, 100, 10))
		book.Submit(limitOrder("second", Bid, 100, 10))

		res, err := book.Amend(&AmendRequest{OrderID: "first", NewPrice: decimal.NewFromInt(100), NewQuantity: 4})
		require.NoError(t, err)
		assert.Equal(t, CancelSuccess, res.Result)

		match := book.Submit(limitOrder("taker", Ask, 100, 4))
		require.Len(t, match.Trades, 1)
		assert.Equal(t, "first", match.Trades[0].BuyOrderID)
	})

	t.Run("quantity increase loses priority", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("first", Bid, 100, 10))
		book.Submit(limitOrder("second", Bid, 100, 10))

		res, err := book.Amend(&AmendRequest{OrderID: "first", NewPrice: decimal.NewFromInt(100), NewQuantity: 20})
		require.NoError(t, err)
		assert.Equal(t, CancelSuccess, res.Result)
		assert.Equal(t, "first", res.RestingOrderID)

		match := book.Submit(limitOrder("taker", Ask, 100, 10))
		require.Len(t, match.Trades, 1)
		assert.Equal(t, "second", match.Trades[0].BuyOrderID)
	})

	t.Run("price change can match immediately", func(t *testing.T) {
		book := newTestBook()
		book.Submit(limitOrder("ask-1", Ask, 105, 5))
		book.Submit(limitOrder("bid-1", Bid, 100, 5))

		res, err := book.Amend(&AmendRequest{OrderID: "bid-1", NewPrice: decimal.NewFromInt(105), NewQuantity: 5})
		require.NoError(t, err)
		assert.Equal(t, CancelSuccess, res.Result)
		require.Len(t, res.Trades, 1)
		assert.Equal(t, "105", res.Trades[0].Price.String())
		assert.Empty(t, res.RestingOrderID)

		status, ok := book.OrderStatus("bid-1")
		require.True(t, ok)
		assert.Equal(t, StateFilled, status.State)
	})
}

func TestEventStream(t *testing.T) {
	log := NewMemoryPublishLog()
	book := newTestBook(WithPublisher(log))

	book.Submit(limitOrder("bid-1", Bid, 100, 10))   // open
	book.Submit(limitOrder("ask-1", Ask, 100, 4))    // match
	book.Cancel("bid-1")                             // cancel
	book.Submit(limitOrder("bad", Bid, 0, 1))        // reject

	events := log.Events()
	require.Len(t, events, 4)
	assert.Equal(t, EventOpen, events[0].Type)
	assert.Equal(t, EventMatch, events[1].Type)
	assert.Equal(t, EventCancel, events[2].Type)
	assert.Equal(t, EventReject, events[3].Type)

	// Sequence is strictly increasing with no gaps.
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Sequence)
	}

	match := events[1]
	assert.Equal(t, "ask-1", match.OrderID)
	assert.Equal(t, "bid-1", match.MakerOrderID)
	assert.Equal(t, int64(4), match.Quantity)
	assert.NotEmpty(t, match.TradeID)

	// The cancel event carries the unfilled remainder.
	assert.Equal(t, int64(6), events[2].Quantity)

	reject := events[3]
	assert.Equal(t, ValidationInvalidPrice, reject.Reject)
}

func TestSnapshotRestorePreservesPriority(t *testing.T) {
	book := newTestBook()
	book.Submit(limitOrder("early", Bid, 100, 5))
	book.Submit(limitOrder("late", Bid, 100, 5))
	book.Submit(limitOrder("deep", Bid, 99, 5))
	book.Submit(limitOrder("ask-1", Ask, 110, 3))

	snap := book.Snapshot()
	require.Len(t, snap.Bids, 3)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, "early", snap.Bids[0].ID)
	assert.Equal(t, "late", snap.Bids[1].ID)
	assert.Equal(t, "deep", snap.Bids[2].ID)

	restored := newTestBook()
	restored.Restore(snap)
	assert.Equal(t, snap.Sequence, restored.Sequence())

	res := restored.Submit(limitOrder("taker", Ask, 100, 5))
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "early", res.Trades[0].BuyOrderID)
}

func TestBookNeverReturnsCrossed(t *testing.T) {
	book := newTestBook()
	book.Submit(limitOrder("b1", Bid, 100, 5))
	book.Submit(limitOrder("a1", Ask, 101, 5))
	book.Submit(limitOrder("b2", Bid, 101, 5)) // matches a1 completely

	bid, hasBid := book.BestBid()
	_, hasAsk := book.BestAsk()
	require.True(t, hasBid)
	assert.False(t, hasAsk)
	assert.Equal(t, "100", bid.String())
}
