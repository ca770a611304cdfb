package pager

import (
	"context"
	"log/slog"
	"sync"

	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/models"
)

// State is the loader's position in its fetch cycle.
type State int

const (
	Idle State = iota
	Loading
	Exhausted
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Exhausted:
		return "exhausted"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// FetchFunc retrieves one page of a list resource.
type FetchFunc[T any, Q comparable] func(ctx context.Context, pageNumber, pageSize int, query Q) (models.Page[T], error)

// Option customises a Loader.
type Option func(*options)

type options struct {
	onChange func()
}

// OnChange registers a callback invoked after every state transition, outside
// the loader's lock.
func OnChange(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}

// Loader accumulates sequential pages of a list for one query at a time. At
// most one fetch is in flight; triggers while Loading are dropped.
type Loader[T any, Q comparable] struct {
	fetch    FetchFunc[T, Q]
	pageSize int
	onChange func()

	mu         sync.Mutex
	query      Q
	generation uint64
	state      State
	pageNumber int
	totalPages int
	items      []T
	err        error
	cancel     context.CancelFunc
}

// New builds a loader for fetch. pageSize values below one fall back to one.
func New[T any, Q comparable](fetch FetchFunc[T, Q], pageSize int, opts ...Option) *Loader[T, Q] {
	if fetch == nil {
		panic("pager: fetch must not be nil")
	}
	if pageSize < 1 {
		pageSize = 1
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[T, Q]{
		fetch:      fetch,
		pageSize:   pageSize,
		onChange:   o.onChange,
		pageNumber: 1,
	}
}

// RequestNext is the near-end-of-list signal. It fetches the next page
// synchronously and reports whether a fetch was issued.
func (l *Loader[T, Q]) RequestNext(ctx context.Context) bool {
	call, ok := l.begin(ctx)
	if !ok {
		return false
	}
	l.run(call)
	return true
}

// RequestNextAsync behaves like RequestNext but fetches on a new goroutine.
// The returned channel is closed once the response has been applied or
// discarded; it is nil when no fetch was issued.
func (l *Loader[T, Q]) RequestNextAsync(ctx context.Context) <-chan struct{} {
	call, ok := l.begin(ctx)
	if !ok {
		return nil
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.run(call)
	}()
	return done
}

// SetQuery discards accumulated items, rewinds to page one and fetches the
// first page for q. A fetch still in flight for the previous query has its
// context cancelled and its response ignored.
func (l *Loader[T, Q]) SetQuery(ctx context.Context, q Q) bool {
	l.rewind(func() { l.query = q })
	return l.RequestNext(ctx)
}

// Reset rewinds the loader for its current query without fetching.
func (l *Loader[T, Q]) Reset() {
	l.rewind(nil)
}

func (l *Loader[T, Q]) rewind(update func()) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.generation++
	if update != nil {
		update()
	}
	l.state = Idle
	l.pageNumber = 1
	l.totalPages = 0
	l.items = nil
	l.err = nil
	l.mu.Unlock()
	l.changed()
}

// Items returns a copy of the accumulated items in arrival order.
func (l *Loader[T, Q]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// State returns the current state.
func (l *Loader[T, Q]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// PageNumber returns the page the next fetch will request.
func (l *Loader[T, Q]) PageNumber() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pageNumber
}

// TotalPages returns the page count reported by the most recent response.
func (l *Loader[T, Q]) TotalPages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalPages
}

// Query returns the active query.
func (l *Loader[T, Q]) Query() Q {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query
}

// Err returns the failure that moved the loader to Errored.
func (l *Loader[T, Q]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

type call[Q comparable] struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	pageNumber int
	query      Q
}

func (l *Loader[T, Q]) begin(ctx context.Context) (call[Q], bool) {
	l.mu.Lock()
	if l.state != Idle {
		l.mu.Unlock()
		return call[Q]{}, false
	}
	l.state = Loading
	callCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	c := call[Q]{
		ctx:        callCtx,
		cancel:     cancel,
		generation: l.generation,
		pageNumber: l.pageNumber,
		query:      l.query,
	}
	l.mu.Unlock()
	l.changed()
	return c, true
}

func (l *Loader[T, Q]) run(c call[Q]) {
	defer c.cancel()
	page, err := l.fetch(c.ctx, c.pageNumber, l.pageSize, c.query)
	logger := logging.FromContext(c.ctx)

	l.mu.Lock()
	if c.generation != l.generation {
		l.mu.Unlock()
		logger.Debug("discarding stale page", slog.Int("page", c.pageNumber))
		return
	}
	l.cancel = nil

	if err != nil {
		l.state = Errored
		l.err = err
		l.mu.Unlock()
		logger.Warn("page fetch failed",
			slog.Int("page", c.pageNumber),
			slog.String("error", err.Error()),
		)
		l.changed()
		return
	}

	if len(page.Items) > 0 {
		l.items = append(l.items, page.Items...)
	}
	l.totalPages = page.TotalPages
	if l.pageNumber >= page.TotalPages {
		l.state = Exhausted
	} else {
		l.pageNumber++
		l.state = Idle
	}
	l.mu.Unlock()
	l.changed()
}

func (l *Loader[T, Q]) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}
