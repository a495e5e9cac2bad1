package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// DefaultKeepAlive is used for requests that do not set their own window.
const DefaultKeepAlive = 60 * time.Second

// ErrClosed is returned by Result on a closed subscription.
var ErrClosed = errors.New("subscription closed")

type entry struct {
	key       string
	call      Call
	tags      []Tag
	keepAlive time.Duration

	state       State
	data        json.RawMessage
	err         error
	invalidated bool // set when invalidated while Fetching

	subs       map[*Subscription]struct{}
	lastAccess time.Time
	evict      *time.Timer
	gen        uint64
}

func (e *entry) notify() {
	for sub := range e.subs {
		select {
		case sub.updates <- struct{}{}:
		default:
		}
	}
}

// Cache holds query results keyed by endpoint and params. It is safe for
// concurrent use.
type Cache struct {
	fetcher   Fetcher
	keepAlive time.Duration
	logger    *slog.Logger
	metrics   *Metrics

	group singleflight.Group
	bg    sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
	byTag   map[Tag]map[string]struct{}
	byType  map[string]map[string]struct{}
	closed  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithRegisterer registers the cache metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.metrics = NewMetrics(reg)
	}
}

// WithMetrics uses m instead of creating unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithDefaultKeepAlive sets the keep-alive for requests without their own.
func WithDefaultKeepAlive(d time.Duration) Option {
	return func(c *Cache) {
		c.keepAlive = d
	}
}

// New creates a Cache issuing calls through fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:   fetcher,
		keepAlive: DefaultKeepAlive,
		entries:   make(map[string]*entry),
		byTag:     make(map[Tag]map[string]struct{}),
		byType:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Subscription keeps an entry alive and receives a signal on Updates each
// time the entry changes state. Close it when the data is no longer needed.
type Subscription struct {
	cache   *Cache
	entry   *entry
	updates chan struct{}
	closed  bool
}

// Subscribe attaches to the entry for req, creating it if needed. No call is
// made until Result is called.
func (c *Cache) Subscribe(req Request) *Subscription {
	key := req.Key()
	sub := &Subscription{cache: c, updates: make(chan struct{}, 1)}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		keepAlive := req.KeepAlive
		if keepAlive <= 0 {
			keepAlive = c.keepAlive
		}
		e = &entry{
			key:       key,
			call:      req.call(),
			tags:      slices.Clone(req.Tags),
			keepAlive: keepAlive,
			state:     Idle,
			subs:      make(map[*Subscription]struct{}),
		}
		c.entries[key] = e
		c.indexLocked(e)
		c.metrics.Entries.Inc()
	}
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	e.gen++
	e.subs[sub] = struct{}{}
	e.lastAccess = time.Now()

	sub.entry = e
	return sub
}

// Result returns the entry's data, fetching it unless it is fulfilled and
// not stale. Concurrent callers for one key share a single call. If ctx ends
// first, ctx.Err() is returned and the call still completes for the others.
func (s *Subscription) Result(ctx context.Context) (json.RawMessage, error) {
	c := s.cache
	e := s.entry

	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e.lastAccess = time.Now()
	if e.state == Fulfilled {
		data := e.data
		c.mu.Unlock()
		c.metrics.Hits.Inc()
		c.logger.Debug("Cache hit", "key", e.key)
		return data, nil
	}
	c.mu.Unlock()

	c.metrics.Misses.Inc()
	key, call := e.key, e.call
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, call)
	})

	select {
	case <-ctx.Done():
		c.logger.Debug("Caller detached from in-flight query", "key", key, "error", ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

// Updates signals entry state changes. It is closed by Close.
func (s *Subscription) Updates() <-chan struct{} {
	return s.updates
}

// Peek returns the entry's current data and state without fetching.
func (s *Subscription) Peek() (json.RawMessage, State) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	return s.entry.data, s.entry.state
}

// Close detaches the subscription. When the last subscriber detaches the
// entry is evicted after its keep-alive window unless resubscribed.
func (s *Subscription) Close() {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)

	e := s.entry
	delete(e.subs, s)
	e.lastAccess = time.Now()
	if len(e.subs) > 0 || c.closed {
		return
	}

	e.gen++
	gen := e.gen
	e.evict = time.AfterFunc(e.keepAlive, func() {
		c.evictEntry(e, gen)
	})
}

// Query fetches req once: subscribe, wait for the result and detach.
func (c *Cache) Query(ctx context.Context, req Request) (json.RawMessage, error) {
	sub := c.Subscribe(req)
	defer sub.Close()
	return sub.Result(ctx)
}

// Mutate issues call, never shared with other calls. On success every entry
// carrying one of invalidates becomes stale. A failed mutation leaves all
// entries untouched.
func (c *Cache) Mutate(ctx context.Context, call Call, invalidates ...Tag) (json.RawMessage, error) {
	data, err := c.fetcher.Fetch(ctx, call)
	c.metrics.Calls.WithLabelValues("mutation", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	c.Invalidate(invalidates...)
	return data, nil
}

// Invalidate marks every fulfilled entry carrying one of tags stale and
// returns how many entries were affected. A bare type tag matches every
// entry tagged with that type; an ID tag matches only the same ID. Stale
// entries with subscribers are refetched at once; the rest wait for the next
// query or eviction.
func (c *Cache) Invalidate(tags ...Tag) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.matchLocked(tags) {
		e := c.entries[key]
		switch e.state {
		case Fulfilled:
			e.state = Stale
			n++
			if len(e.subs) > 0 {
				c.refetchLocked(e)
			}
			e.notify()
		case Fetching:
			e.invalidated = true
			n++
		}
	}

	if n > 0 {
		c.metrics.Invalidations.Add(float64(n))
		c.logger.Debug("Cache entries invalidated", "tags", tags, "count", n)
	}
	return n
}

// State reports the state of the entry for key.
func (c *Cache) State(key string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Idle, false
	}
	return e.state, true
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refetches started so far have finished.
func (c *Cache) Wait() {
	c.bg.Wait()
}

// Close stops eviction timers and background refetching and waits for
// in-progress refetches.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	for _, e := range c.entries {
		if e.evict != nil {
			e.evict.Stop()
			e.evict = nil
		}
	}
	c.mu.Unlock()

	c.bg.Wait()
}

// load serves a caller that saw the entry unfulfilled. A flight that
// finished between that check and joining the group has already filled the
// entry, so its data is returned without another call.
func (c *Cache) load(ctx context.Context, key string, call Call) (any, error) {
	c.mu.Lock()
	if e := c.entries[key]; e != nil && e.state == Fulfilled {
		data := e.data
		c.mu.Unlock()
		c.logger.Debug("Query already fulfilled by an earlier flight", "key", key)
		return data, nil
	}
	c.mu.Unlock()
	return c.fetch(ctx, key, call)
}

func (c *Cache) fetch(ctx context.Context, key string, call Call) (any, error) {
	c.mu.Lock()
	if e := c.entries[key]; e != nil {
		e.state = Fetching
		e.invalidated = false
		e.notify()
	}
	c.mu.Unlock()

	data, err := c.fetcher.Fetch(ctx, call)
	c.metrics.Calls.WithLabelValues("query", outcome(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil {
		// Evicted while in flight; the result still reaches the callers.
		return data, err
	}
	if err != nil {
		e.state = Rejected
		e.err = err
		e.notify()
		c.logger.Warn("Query failed", "key", key, "error", err)
		return nil, err
	}

	e.data = data
	e.err = nil
	e.state = Fulfilled
	if e.invalidated {
		e.state = Stale
		if len(e.subs) > 0 {
			c.refetchLocked(e)
		}
	}
	e.notify()
	return data, nil
}

// refetchLocked starts a background fetch for e. The current flight for the
// key, if any, is already resolving, so it is forgotten first to force a new
// call.
func (c *Cache) refetchLocked(e *entry) {
	if c.closed {
		return
	}
	c.group.Forget(e.key)

	key, call := e.key, e.call
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		<-c.group.DoChan(key, func() (any, error) {
			return c.fetch(context.Background(), key, call)
		})
	}()
}

func (c *Cache) evictEntry(e *entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries[e.key] != e || e.gen != gen || len(e.subs) > 0 {
		return
	}
	delete(c.entries, e.key)
	c.unindexLocked(e)
	c.metrics.Evictions.Inc()
	c.metrics.Entries.Dec()

	c.logger.Debug("Cache entry evicted",
		"key", e.key,
		"state", e.state.String(),
		"idle_ms", time.Since(e.lastAccess).Milliseconds(),
	)
}

func (c *Cache) indexLocked(e *entry) {
	for _, t := range e.tags {
		if c.byTag[t] == nil {
			c.byTag[t] = make(map[string]struct{})
		}
		c.byTag[t][e.key] = struct{}{}

		if c.byType[t.Type] == nil {
			c.byType[t.Type] = make(map[string]struct{})
		}
		c.byType[t.Type][e.key] = struct{}{}
	}
}

func (c *Cache) unindexLocked(e *entry) {
	for _, t := range e.tags {
		delete(c.byTag[t], e.key)
		if len(c.byTag[t]) == 0 {
			delete(c.byTag, t)
		}
		delete(c.byType[t.Type], e.key)
		if len(c.byType[t.Type]) == 0 {
			delete(c.byType, t.Type)
		}
	}
}

func (c *Cache) matchLocked(tags []Tag) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, t := range tags {
		src := c.byTag[t]
		if t.ID == "" {
			src = c.byType[t.Type]
		}
		for key := range src {
			keys[key] = struct{}{}
		}
	}
	return keys
}
