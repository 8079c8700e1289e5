package lob

// registry maps an order ID to its current location. It is instance-scoped:
// one registry per book, shared by both ladders. Resting entries are the
// live book; terminal entries are retained so that cancels can distinguish
// "never seen" from "already done" and status queries can project finished
// orders. An ID, once used, is claimed for the lifetime of the book.
type registry struct {
	resting  map[string]*registryEntry
	terminal map[string]*Order
}

type registryEntry struct {
	order *Order
	side  Side
}

func newRegistry() *registry {
	return &registry{
		resting:  make(map[string]*registryEntry),
		terminal: make(map[string]*Order),
	}
}

// Contains reports whether the ID has ever been accepted by this book.
func (r *registry) Contains(id string) bool {
	if _, ok := r.resting[id]; ok {
		return true
	}
	_, ok := r.terminal[id]
	return ok
}

func (r *registry) get(id string) (*registryEntry, bool) {
	e, ok := r.resting[id]
	return e, ok
}

func (r *registry) getTerminal(id string) (*Order, bool) {
	o, ok := r.terminal[id]
	return o, ok
}

func (r *registry) add(order *Order) {
	r.resting[order.ID] = &registryEntry{order: order, side: order.Side}
}

// markTerminal moves an order out of the resting set. The order's state must
// already be FILLED or CANCELLED.
func (r *registry) markTerminal(order *Order) {
	delete(r.resting, order.ID)
	r.terminal[order.ID] = order
}

// forget drops a resting entry without retiring the ID. Used by amend when
// an order is pulled and immediately re-entered.
func (r *registry) forget(id string) {
	delete(r.resting, id)
}

func (r *registry) restingCount() int {
	return len(r.resting)
}
