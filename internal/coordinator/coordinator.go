// Package coordinator implements the polling coordinators that keep
// last-known-good snapshots of backend state.
//
// Two independent instances run in the daemon: one for registered devices
// with their capabilities, one for the global capability set. Each owns
// exactly one snapshot, replaced atomically at the end of a successful
// tick. A failed tick keeps the previous snapshot (stale-but-available)
// and records the failure separately so availability-derived views can
// react without losing data.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/n1ckjansens/HA-Mikrotik/internal/infrastructure/logging"
)

// DefaultInterval is the wall-clock time between tick starts.
const DefaultInterval = 10 * time.Second

// FetchFunc produces a complete new snapshot or fails the tick.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// TickStats describes one completed tick, for telemetry sinks.
type TickStats struct {
	Coordinator string
	Success     bool
	Duration    time.Duration
	Err         error
}

// Status is a point-in-time view of the coordinator's health, independent
// of the snapshot itself.
type Status struct {
	LastSuccess bool      `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	TickCount   uint64    `json:"tick_count"`
}

// Coordinator runs a recurring fetch cycle and owns the resulting
// snapshot. Ticks never overlap: a forced refresh that arrives while a
// tick is in flight queues behind it, and a scheduled tick that would
// overlap is deferred.
//
// Snapshot values handed out by Snapshot() must be treated as read-only;
// only the coordinator's own tick logic replaces them, and it does so
// wholesale rather than mutating in place.
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	log      *logging.Logger
	observer func(TickStats)

	// tickMu serialises tick execution (scheduled and forced).
	tickMu sync.Mutex

	mu          sync.RWMutex
	data        T
	hasData     bool
	lastSuccess bool
	lastErr     error
	updatedAt   time.Time
	tickCount   uint64
	subscribers map[string]func()

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a coordinator for the given fetch function. It does not
// start polling; call FirstRefresh and then Start.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], log *logging.Logger) *Coordinator[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.Default()
	}
	return &Coordinator[T]{
		name:        name,
		interval:    interval,
		fetch:       fetch,
		log:         log.With("coordinator", name),
		subscribers: make(map[string]func()),
		done:        make(chan struct{}),
	}
}

// SetTickObserver registers a callback invoked after every tick with its
// outcome. Must be called before Start. Used for telemetry; a nil observer
// is valid.
func (c *Coordinator[T]) SetTickObserver(fn func(TickStats)) {
	c.observer = fn
}

// FirstRefresh runs one blocking tick before the polling loop starts.
// On failure the error wraps ErrNotReady so the caller can distinguish
// "backend not reachable yet, retry setup" from a permanent fault.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	if err := c.runTick(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotReady, c.name, err)
	}
	return nil
}

// Start launches the polling loop. The loop stops when ctx is cancelled
// or Stop is called.
func (c *Coordinator[T]) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
	c.log.Info("coordinator started", "interval", c.interval.String())
}

// Stop terminates the polling loop and waits for an in-flight tick to
// finish. Safe to call more than once.
func (c *Coordinator[T]) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

func (c *Coordinator[T]) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.runTick(ctx); err != nil {
				c.log.Warn("poll tick failed", "error", err)
			}
		}
	}
}

// ForceRefresh runs one out-of-band tick immediately, subject to the same
// non-overlap rule as scheduled ticks: if one is in flight, the refresh
// runs right after it completes. Used after a write-back so the snapshot
// reflects the new state without waiting out the interval.
func (c *Coordinator[T]) ForceRefresh(ctx context.Context) error {
	return c.runTick(ctx)
}

func (c *Coordinator[T]) runTick(ctx context.Context) error {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	start := time.Now()
	data, err := c.fetch(ctx)

	c.mu.Lock()
	c.tickCount++
	if err != nil {
		c.lastSuccess = false
		c.lastErr = err
	} else {
		c.data = data
		c.hasData = true
		c.lastSuccess = true
		c.lastErr = nil
		c.updatedAt = time.Now()
	}
	subscribers := make([]func(), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer(TickStats{
			Coordinator: c.name,
			Success:     err == nil,
			Duration:    time.Since(start),
			Err:         err,
		})
	}

	// Subscribers run synchronously on the tick goroutine and are notified
	// on failure too, so availability views can flip without new data.
	// Slow subscribers must hand off to their own goroutine.
	for _, fn := range subscribers {
		fn()
	}

	return err
}

// Snapshot returns the current snapshot and whether any tick has ever
// succeeded. After a failed tick this still returns the previous data.
func (c *Coordinator[T]) Snapshot() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.hasData
}

// Status reports tick health separately from the data.
func (c *Coordinator[T]) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := Status{
		LastSuccess: c.lastSuccess,
		UpdatedAt:   c.updatedAt,
		TickCount:   c.tickCount,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

// LastSuccess reports whether the most recent tick succeeded.
func (c *Coordinator[T]) LastSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// Subscribe registers a callback invoked synchronously after every tick.
// The returned token cancels the subscription via Unsubscribe.
func (c *Coordinator[T]) Subscribe(fn func()) string {
	token := uuid.NewString()
	c.mu.Lock()
	c.subscribers[token] = fn
	c.mu.Unlock()
	return token
}

// Unsubscribe removes a previously registered callback. Unknown tokens
// are ignored.
func (c *Coordinator[T]) Unsubscribe(token string) {
	c.mu.Lock()
	delete(c.subscribers, token)
	c.mu.Unlock()
}

// Name returns the coordinator's name as used in logs and telemetry.
func (c *Coordinator[T]) Name() string {
	return c.name
}
