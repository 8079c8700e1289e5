package lob

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Engine manages one OrderBook per instrument. Books share nothing, so each
// runs its own writer goroutine and commands for different tickers proceed
// fully in parallel.
type Engine struct {
	isShutdown atomic.Bool
	books      sync.Map
	opts       []BookOption
}

// NewEngine creates an engine. The options are applied to every book it
// creates, which is how a shared publisher or metrics collector is wired.
func NewEngine(opts ...BookOption) *Engine {
	return &Engine{opts: opts}
}

// CreateBook creates and starts a book for the ticker. Creating a ticker
// that already exists returns the existing book.
func (e *Engine) CreateBook(ticker string) (*OrderBook, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}
	if ticker == "" {
		return nil, ErrInvalidParam
	}

	newBook := NewOrderBook(ticker, e.opts...)
	actual, loaded := e.books.LoadOrStore(ticker, newBook)
	if loaded {
		logger.Warn("book already exists", "ticker", ticker)
		book, _ := actual.(*OrderBook)
		return book, nil
	}

	go func() {
		_ = newBook.Start()
	}()
	return newBook, nil
}

// Book retrieves the order book for a ticker, or nil if it does not exist.
func (e *Engine) Book(ticker string) *OrderBook {
	book, found := e.books.Load(ticker)
	if !found {
		return nil
	}
	orderBook, _ := book.(*OrderBook)
	return orderBook
}

// Submit routes an order to the book for its ticker.
func (e *Engine) Submit(ctx context.Context, order *Order) error {
	if e.isShutdown.Load() {
		return ErrShutdown
	}
	if order == nil {
		return ErrInvalidParam
	}
	book := e.Book(order.Ticker)
	if book == nil {
		return ErrNotFound
	}
	return book.Submit(ctx, order)
}

// Cancel routes a cancellation to the book for the ticker.
func (e *Engine) Cancel(ctx context.Context, ticker, orderID string) error {
	if e.isShutdown.Load() {
		return ErrShutdown
	}
	book := e.Book(ticker)
	if book == nil {
		return ErrNotFound
	}
	return book.Cancel(ctx, orderID)
}

// Shutdown gracefully stops every book in parallel. It blocks until all
// books drain or the context is cancelled, and returns the joined errors.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.isShutdown.Store(true)

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	e.books.Range(func(key, value any) bool {
		book, _ := value.(*OrderBook)
		wg.Add(1)
		go func(b *OrderBook) {
			defer wg.Done()
			if err := b.Shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(book)
		return true
	})

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
