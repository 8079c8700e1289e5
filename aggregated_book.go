package lob

import (
	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a price-level view of one book, rebuilt purely
// from the BookEvent stream. It is meant for downstream consumers (market
// data, risk) that receive events over a queue and need depth without the
// full order detail. Sequence numbers are checked so a dropped event is
// detected instead of silently corrupting the view.
type AggregatedBook struct {
	seq  uint64
	bids *treemap.TreeMap[decimal.Decimal, int64]
	asks *treemap.TreeMap[decimal.Decimal, int64]
}

// NewAggregatedBook creates an empty view positioned before the first event.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		bids: treemap.NewWithKeyCompare[decimal.Decimal, int64](func(a, b decimal.Decimal) bool {
			return b.LessThan(a)
		}),
		asks: treemap.NewWithKeyCompare[decimal.Decimal, int64](func(a, b decimal.Decimal) bool {
			return a.LessThan(b)
		}),
	}
}

// Sequence returns the last applied sequence number.
func (ab *AggregatedBook) Sequence() uint64 {
	return ab.seq
}

// Reset clears the view and positions it just after seq, for resuming from
// a snapshot.
func (ab *AggregatedBook) Reset(seq uint64) {
	ab.seq = seq
	ab.bids.Clear()
	ab.asks.Clear()
}

// LoadSnapshot initializes the view from a book snapshot.
func (ab *AggregatedBook) LoadSnapshot(snap *BookSnapshot) {
	ab.Reset(snap.Sequence)
	for i := range snap.Bids {
		ab.add(Bid, snap.Bids[i].Price, snap.Bids[i].Remaining)
	}
	for i := range snap.Asks {
		ab.add(Ask, snap.Asks[i].Price, snap.Asks[i].Remaining)
	}
}

// Apply replays one event. Events must arrive in sequence order;
// ErrSequenceGap means the caller has to resynchronize from a snapshot.
// Rejects change no depth but still advance the sequence.
func (ab *AggregatedBook) Apply(ev *BookEvent) error {
	if ev.Sequence != ab.seq+1 {
		return ErrSequenceGap
	}
	ab.seq = ev.Sequence

	switch ev.Type {
	case EventOpen:
		ab.add(ev.Side, ev.Price, ev.Quantity)
	case EventCancel:
		ab.add(ev.Side, ev.Price, -ev.Quantity)
	case EventMatch:
		// The event side is the taker's; a match drains the maker side.
		ab.add(ev.Side.Opposite(), ev.Price, -ev.Quantity)
	case EventAmend:
		if !ev.OldPrice.Equal(ev.Price) || ev.Quantity > ev.OldQuantity {
			// Priority lost: the order left the book at its old level.
			// Follow-up open/match events account for its new life.
			ab.add(ev.Side, ev.OldPrice, -ev.OldQuantity)
		} else {
			// In-place decrease at the same price.
			ab.add(ev.Side, ev.Price, ev.Quantity-ev.OldQuantity)
		}
	case EventReject:
		// Rejected orders never entered the book.
	}
	return nil
}

// Quantity returns the aggregated resting quantity at a price level.
func (ab *AggregatedBook) Quantity(side Side, price decimal.Decimal) int64 {
	qty, _ := ab.tree(side).Get(price)
	return qty
}

// BestBid returns the highest bid level, if any.
func (ab *AggregatedBook) BestBid() (decimal.Decimal, bool) {
	return ab.best(ab.bids)
}

// BestAsk returns the lowest ask level, if any.
func (ab *AggregatedBook) BestAsk() (decimal.Decimal, bool) {
	return ab.best(ab.asks)
}

// Depth returns up to levels price levels for one side, best price first.
func (ab *AggregatedBook) Depth(side Side, levels int) []DepthItem {
	result := make([]DepthItem, 0, levels)
	for it := ab.tree(side).Iterator(); it.Valid() && len(result) < levels; it.Next() {
		result = append(result, DepthItem{Price: it.Key(), Quantity: it.Value()})
	}
	return result
}

func (ab *AggregatedBook) best(tree *treemap.TreeMap[decimal.Decimal, int64]) (decimal.Decimal, bool) {
	it := tree.Iterator()
	if !it.Valid() {
		return decimal.Decimal{}, false
	}
	return it.Key(), true
}

func (ab *AggregatedBook) tree(side Side) *treemap.TreeMap[decimal.Decimal, int64] {
	if side == Bid {
		return ab.bids
	}
	return ab.asks
}

func (ab *AggregatedBook) add(side Side, price decimal.Decimal, diff int64) {
	tree := ab.tree(side)
	qty, _ := tree.Get(price)
	qty += diff
	if qty <= 0 {
		tree.Del(price)
		return
	}
	tree.Set(price, qty)
}
