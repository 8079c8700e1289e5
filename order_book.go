package lob

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type commandType int

const (
	cmdSubmit commandType = iota
	cmdCancel
	cmdAmend
	cmdDepth
	cmdStats
	cmdStatus
	cmdQuote
	cmdSnapshot
)

// command is the unified envelope sent to the book goroutine. A single
// channel keeps processing deterministic: commands are applied in exactly
// the order they were enqueued.
type command struct {
	typ     commandType
	payload any
	resp    chan any // optional: for synchronous request-response
}

type depthRequest struct {
	side   Side
	levels int
}

// Quote is a best-bid/best-ask snapshot.
type Quote struct {
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	HasBid bool
	HasAsk bool
}

// OrderBook wraps a Book with the single-writer loop the matching contract
// requires. All mutations and queries funnel through one command channel
// consumed by one goroutine, so price-time priority is never corrupted by
// concurrent callers. Start must be running before any command is served.
type OrderBook struct {
	book             *Book
	cmdChan          chan command
	done             chan struct{}
	shutdownComplete chan struct{}
	isShutdown       atomic.Bool
}

// NewOrderBook creates an order book actor for one instrument.
func NewOrderBook(ticker string, opts ...BookOption) *OrderBook {
	return &OrderBook{
		book:             NewBook(ticker, opts...),
		cmdChan:          make(chan command, 32768),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
	}
}

// Ticker returns the instrument symbol this book serves.
func (ob *OrderBook) Ticker() string {
	return ob.book.Ticker()
}

// Submit enqueues an order asynchronously. The outcome is observable on the
// book's event stream; use SubmitWait to receive the SubmissionResult.
// Returns ErrShutdown once shutdown has begun.
func (ob *OrderBook) Submit(ctx context.Context, order *Order) error {
	if order == nil || order.ID == "" {
		return ErrInvalidParam
	}
	return ob.enqueue(ctx, command{typ: cmdSubmit, payload: order})
}

// SubmitWait enqueues an order and blocks for its SubmissionResult.
func (ob *OrderBook) SubmitWait(ctx context.Context, order *Order) (*SubmissionResult, error) {
	if order == nil || order.ID == "" {
		return nil, ErrInvalidParam
	}
	resp, err := ob.roundTrip(ctx, command{typ: cmdSubmit, payload: order})
	if err != nil {
		return nil, err
	}
	result, _ := resp.(*SubmissionResult)
	return result, nil
}

// Cancel enqueues a cancellation asynchronously.
func (ob *OrderBook) Cancel(ctx context.Context, orderID string) error {
	if orderID == "" {
		return ErrInvalidParam
	}
	return ob.enqueue(ctx, command{typ: cmdCancel, payload: orderID})
}

// CancelWait enqueues a cancellation and blocks for its CancelResult.
func (ob *OrderBook) CancelWait(ctx context.Context, orderID string) (CancelResult, error) {
	if orderID == "" {
		return "", ErrInvalidParam
	}
	resp, err := ob.roundTrip(ctx, command{typ: cmdCancel, payload: orderID})
	if err != nil {
		return "", err
	}
	result, _ := resp.(CancelResult)
	return result, nil
}

// Amend enqueues an amendment and blocks for its AmendResult.
func (ob *OrderBook) Amend(ctx context.Context, req *AmendRequest) (*AmendResult, error) {
	if req == nil || req.OrderID == "" || !req.NewPrice.IsPositive() || req.NewQuantity <= 0 {
		return nil, ErrInvalidParam
	}
	resp, err := ob.roundTrip(ctx, command{typ: cmdAmend, payload: req})
	if err != nil {
		return nil, err
	}
	switch v := resp.(type) {
	case *AmendResult:
		return v, nil
	case error:
		return nil, v
	}
	return nil, ErrInternal
}

// Depth returns up to levels aggregated price levels for one side.
func (ob *OrderBook) Depth(side Side, levels int) ([]DepthItem, error) {
	if levels <= 0 {
		return nil, ErrInvalidParam
	}
	resp, err := ob.query(command{typ: cmdDepth, payload: depthRequest{side: side, levels: levels}})
	if err != nil {
		return nil, err
	}
	items, _ := resp.([]DepthItem)
	return items, nil
}

// Quote returns the current best bid and ask.
func (ob *OrderBook) Quote() (Quote, error) {
	resp, err := ob.query(command{typ: cmdQuote})
	if err != nil {
		return Quote{}, err
	}
	q, _ := resp.(Quote)
	return q, nil
}

// Stats returns sizing statistics for the book.
func (ob *OrderBook) Stats() (BookStats, error) {
	resp, err := ob.query(command{typ: cmdStats})
	if err != nil {
		return BookStats{}, err
	}
	stats, _ := resp.(BookStats)
	return stats, nil
}

// OrderStatus returns a read-only copy of an order, resting or terminal.
// Returns ErrNotFound for an ID the book has never accepted.
func (ob *OrderBook) OrderStatus(orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, ErrInvalidParam
	}
	resp, err := ob.query(command{typ: cmdStatus, payload: orderID})
	if err != nil {
		return Order{}, err
	}
	order, ok := resp.(Order)
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

// TakeSnapshot captures the current state of the book.
func (ob *OrderBook) TakeSnapshot() (*BookSnapshot, error) {
	resp, err := ob.query(command{typ: cmdSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := resp.(*BookSnapshot)
	return snap, nil
}

// Start runs the book loop until Shutdown is called, then drains every
// pending command and returns.
func (ob *OrderBook) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-ob.done:
			return ob.drain()
		case cmd := <-ob.cmdChan:
			ob.apply(cmd)
		}
	}
}

// Shutdown stops intake and waits until pending commands are drained or the
// context expires.
func (ob *OrderBook) Shutdown(ctx context.Context) error {
	if ob.isShutdown.CompareAndSwap(false, true) {
		close(ob.done)
	}

	select {
	case <-ob.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain applies all remaining commands before returning. Mutating commands
// still execute so no accepted order is silently dropped; queries are
// answered from the final state.
func (ob *OrderBook) drain() error {
	defer close(ob.shutdownComplete)

	for {
		select {
		case cmd := <-ob.cmdChan:
			ob.apply(cmd)
		default:
			return nil
		}
	}
}

func (ob *OrderBook) apply(cmd command) {
	switch cmd.typ {
	case cmdSubmit:
		if order, ok := cmd.payload.(*Order); ok {
			ob.respond(cmd, ob.book.Submit(order))
		}
	case cmdCancel:
		if orderID, ok := cmd.payload.(string); ok {
			ob.respond(cmd, ob.book.Cancel(orderID))
		}
	case cmdAmend:
		if req, ok := cmd.payload.(*AmendRequest); ok {
			result, err := ob.book.Amend(req)
			if err != nil {
				ob.respond(cmd, err)
				return
			}
			ob.respond(cmd, result)
		}
	case cmdDepth:
		if req, ok := cmd.payload.(depthRequest); ok {
			ob.respond(cmd, ob.book.Depth(req.side, req.levels))
		}
	case cmdQuote:
		var q Quote
		q.Bid, q.HasBid = ob.book.BestBid()
		q.Ask, q.HasAsk = ob.book.BestAsk()
		ob.respond(cmd, q)
	case cmdStats:
		ob.respond(cmd, ob.book.Stats())
	case cmdStatus:
		if orderID, ok := cmd.payload.(string); ok {
			if order, found := ob.book.OrderStatus(orderID); found {
				ob.respond(cmd, order)
			} else {
				ob.respond(cmd, nil)
			}
		}
	case cmdSnapshot:
		ob.respond(cmd, ob.book.Snapshot())
	}
}

// respond sends a reply without blocking the book loop. If the requester
// already gave up, the reply is dropped.
func (ob *OrderBook) respond(cmd command, value any) {
	if cmd.resp == nil {
		return
	}
	select {
	case cmd.resp <- value:
	default:
	}
}

func (ob *OrderBook) enqueue(ctx context.Context, cmd command) error {
	if ob.isShutdown.Load() {
		return ErrShutdown
	}
	select {
	case ob.cmdChan <- cmd:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

func (ob *OrderBook) roundTrip(ctx context.Context, cmd command) (any, error) {
	cmd.resp = make(chan any, 1)
	if err := ob.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case resp := <-cmd.resp:
		return resp, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// query is roundTrip with the fixed timeout used by read-only callers.
func (ob *OrderBook) query(cmd command) (any, error) {
	if ob.isShutdown.Load() {
		return nil, ErrShutdown
	}

	cmd.resp = make(chan any, 1)
	select {
	case ob.cmdChan <- cmd:
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}

	select {
	case resp := <-cmd.resp:
		return resp, nil
	case <-time.After(time.Second):
		return nil, ErrTimeout
	}
}
