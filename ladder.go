package lob

import (
	"fmt"

	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// ladder is one side of the book: a price-ordered sequence of price levels.
// A single implementation serves both sides; the sort direction comes from
// the skiplist comparator it is built with (bids descending, asks
// ascending), so the matching code never branches on side for ordering.
//
// levels indexes skiplist elements by the canonical price string, giving
// O(1) level lookup on insert and cancel. Registration of orders goes
// through the shared per-book registry.
type ladder struct {
	side        Side
	depthList   *skiplist.SkipList
	levels      map[string]*skiplist.Element
	reg         *registry
	totalOrders int64
}

// newBidLadder creates the bid side, best (highest) price first.
func newBidLadder(reg *registry) *ladder {
	return &ladder{
		side: Bid,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		levels: make(map[string]*skiplist.Element),
		reg:    reg,
	}
}

// newAskLadder creates the ask side, best (lowest) price first.
func newAskLadder(reg *registry) *ladder {
	return &ladder{
		side: Ask,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		levels: make(map[string]*skiplist.Element),
		reg:    reg,
	}
}

// bestLevel returns the level at the most favorable price for this side, or
// nil if the side is empty.
func (ld *ladder) bestLevel() *priceLevel {
	el := ld.depthList.Front()
	if el == nil {
		return nil
	}
	lvl, _ := el.Value.(*priceLevel)
	return lvl
}

// insert locates or creates the price level for the order, appends it at the
// tail and registers it.
func (ld *ladder) insert(order *Order) {
	key := order.Price.String()
	el, ok := ld.levels[key]
	if !ok {
		lvl := newPriceLevel(order.Price)
		el = ld.depthList.Set(order.Price, lvl)
		ld.levels[key] = el
	}

	lvl, _ := el.Value.(*priceLevel)
	lvl.append(order)
	ld.reg.add(order)
	ld.totalOrders++
}

// remove unlinks a resting order from its level, prunes the level if it
// drained, and forgets the registry entry. The caller decides the order's
// next state.
func (ld *ladder) remove(order *Order) {
	key := order.Price.String()
	el, ok := ld.levels[key]
	if !ok {
		panic(fmt.Sprintf("lob: remove order %s from missing level %s", order.ID, key))
	}

	lvl, _ := el.Value.(*priceLevel)
	lvl.unlink(order)
	ld.reg.forget(order.ID)
	ld.totalOrders--

	if lvl.isEmpty() {
		ld.depthList.RemoveElement(el)
		delete(ld.levels, key)
	}
}

// consumeBest takes quantity from the best level in arrival order. Drained
// makers are retired to the terminal set and the level is pruned once empty.
func (ld *ladder) consumeBest(quantity int64) []fill {
	el := ld.depthList.Front()
	if el == nil {
		panic("lob: consume from empty ladder")
	}
	lvl, _ := el.Value.(*priceLevel)

	fills := lvl.consume(quantity)
	for _, f := range fills {
		if f.order.State == StateFilled {
			ld.reg.markTerminal(f.order)
			ld.totalOrders--
		}
	}

	if lvl.isEmpty() {
		ld.depthList.RemoveElement(el)
		delete(ld.levels, lvl.price.String())
	}

	return fills
}

// reduce shrinks a resting order's remaining quantity in place, preserving
// its time priority.
func (ld *ladder) reduce(order *Order, newRemaining int64) {
	el, ok := ld.levels[order.Price.String()]
	if !ok {
		return
	}
	lvl, _ := el.Value.(*priceLevel)
	lvl.reduce(order, newRemaining)
}

// marketableQuantity sums resting quantity at levels marketable against the
// given limit price, stopping early at the first non-marketable level. Used
// by the fill-or-kill pre-scan.
func (ld *ladder) marketableQuantity(takerSide Side, limit decimal.Decimal) int64 {
	var sum int64
	for el := ld.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		if !marketable(takerSide, limit, lvl.price) {
			break
		}
		sum += lvl.total
	}
	return sum
}

// depth returns up to limit aggregated levels, best price first.
func (ld *ladder) depth(limit int) []DepthItem {
	result := make([]DepthItem, 0, limit)
	for el := ld.depthList.Front(); el != nil && len(result) < limit; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		result = append(result, DepthItem{
			Price:    lvl.price,
			Quantity: lvl.total,
			Orders:   lvl.count,
		})
	}
	return result
}

// snapshotOrders copies every resting order, walking levels best-first and
// each level in arrival order, so a restore replays them back with identical
// priority.
func (ld *ladder) snapshotOrders() []Order {
	snapshots := make([]Order, 0, ld.totalOrders)
	for el := ld.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		for order := lvl.head; order != nil; order = order.next {
			cpy := *order
			cpy.next = nil
			cpy.prev = nil
			snapshots = append(snapshots, cpy)
		}
	}
	return snapshots
}

func (ld *ladder) orderCount() int64 {
	return ld.totalOrders
}

func (ld *ladder) levelCount() int64 {
	return int64(ld.depthList.Len())
}

// checkSorted walks the ladder and panics if the price ordering invariant is
// broken. Debug aid for tests and the post-mutation self check.
func (ld *ladder) checkSorted() {
	var prev *priceLevel
	for el := ld.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*priceLevel)
		if prev != nil {
			if ld.side == Bid && prev.price.LessThanOrEqual(lvl.price) {
				panic(fmt.Sprintf("lob: bid ladder out of order: %s before %s", prev.price, lvl.price))
			}
			if ld.side == Ask && prev.price.GreaterThanOrEqual(lvl.price) {
				panic(fmt.Sprintf("lob: ask ladder out of order: %s before %s", prev.price, lvl.price))
			}
		}
		prev = lvl
	}
}

// marketable reports whether a taker at the given limit crosses a resting
// level price.
func marketable(takerSide Side, limit, levelPrice decimal.Decimal) bool {
	if takerSide == Bid {
		return limit.GreaterThanOrEqual(levelPrice)
	}
	return limit.LessThanOrEqual(levelPrice)
}
