package lob

import "time"

// BookSnapshot is a point-in-time copy of every resting order, best price
// first and FIFO within each level, so Restore rebuilds the book with
// identical price-time priority. Terminal order projections are not part of
// a snapshot; durability of book state is a host concern.
type BookSnapshot struct {
	Ticker   string    `json:"ticker"`
	Sequence uint64    `json:"sequence"`
	Bids     []Order   `json:"bids"`
	Asks     []Order   `json:"asks"`
	TakenAt  time.Time `json:"taken_at"`
}

// Snapshot captures the current book state. Callers of Book directly must
// hold the single-writer serialization while snapshotting; the OrderBook
// wrapper does this on the book loop.
func (b *Book) Snapshot() *BookSnapshot {
	return &BookSnapshot{
		Ticker:   b.ticker,
		Sequence: b.seq,
		Bids:     b.bids.snapshotOrders(),
		Asks:     b.asks.snapshotOrders(),
		TakenAt:  b.now(),
	}
}

// Restore resets the book and reloads it from a snapshot, bypassing
// matching. Orders are reinserted in snapshot order, which preserves their
// original priority.
func (b *Book) Restore(snap *BookSnapshot) {
	b.reg = newRegistry()
	b.bids = newBidLadder(b.reg)
	b.asks = newAskLadder(b.reg)
	b.seq = snap.Sequence

	for i := range snap.Bids {
		order := snap.Bids[i]
		b.bids.insert(&order)
	}
	for i := range snap.Asks {
		order := snap.Asks[i]
		b.asks.insert(&order)
	}
}
