// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package throttle provides per-identity token buckets used to defend the
authentication endpoints against brute force and abuse.

Two strategies share the same keyed table and the same [Bucket] contract:

  - [RefillingBucket]: a steadily regenerating pool (e.g. 100 requests, +1 per second).
  - [ExpiringBucket]: cumulative usage inside a fixed window that resets wholesale.

Architecture:

  - No globals: buckets are constructed once at startup and injected where needed.
  - Isolation: every key owns its own lock, so different identities never contend.
  - Volatile: state lives in process memory only and is reclaimed by [StartSweeper].
*/
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/giftlist/internal/platform/metrics"
)

// # Contracts

// Bucket is the throttle contract shared by both strategies.
type Bucket[K comparable] interface {
	// Check reports whether cost units are currently available for key without
	// changing any state.
	Check(key K, cost int) bool

	// Consume atomically takes cost units from key's allowance and reports
	// whether it succeeded.
	Consume(key K, cost int) bool

	// Reset forces key back to full capacity.
	Reset(key K)
}

// Sweeper is implemented by buckets that can drop idle entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

// # Options

type options struct {
	clock Clock
	name  string
}

// Option customises a bucket at construction time.
type Option func(*options)

// WithClock overrides the time source (defaults to [time.Now]).
func WithClock(clock Clock) Option {
	return func(opts *options) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

// WithName labels the bucket in rejection metrics.
func WithName(name string) Option {
	return func(opts *options) { opts.name = name }
}

func buildOptions(opts []Option) options {
	built := options{clock: time.Now, name: "unnamed"}
	for _, opt := range opts {
		opt(&built)
	}
	return built
}

// # Keyed Table

// slot holds the state of a single identity. The mutex serialises every
// read-modify-write on that identity.
type slot[S any] struct {
	mu      sync.Mutex
	state   S
	evicted bool
}

// table maps identities to slots. Lookup goes through sync.Map so that
// unrelated keys never wait on each other.
type table[K comparable, S any] struct {
	slots sync.Map
	fresh func(now time.Time) S
}

func newTable[K comparable, S any](fresh func(now time.Time) S) *table[K, S] {
	return &table[K, S]{fresh: fresh}
}

// update runs fn with exclusive access to key's state, creating the state on
// first sight.
func (tbl *table[K, S]) update(key K, now time.Time, fn func(state *S) bool) bool {
	for {
		value, found := tbl.slots.Load(key)
		if !found {
			value, _ = tbl.slots.LoadOrStore(key, &slot[S]{state: tbl.fresh(now)})
		}

		entry := value.(*slot[S])
		entry.mu.Lock()

		// Lost a race with Reset or Sweep; the slot is orphaned, retry on a new one.
		if entry.evicted {
			entry.mu.Unlock()
			continue
		}

		result := fn(&entry.state)
		entry.mu.Unlock()
		return result
	}
}

// read runs fn with the current state of key, or nil when the key is unknown.
// It never creates state.
func (tbl *table[K, S]) read(key K, fn func(state *S) bool) bool {
	value, found := tbl.slots.Load(key)
	if !found {
		return fn(nil)
	}

	entry := value.(*slot[S])
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.evicted {
		return fn(nil)
	}
	return fn(&entry.state)
}

// evict removes key. Concurrent holders of the old slot will retry.
func (tbl *table[K, S]) evict(key K) {
	value, found := tbl.slots.Load(key)
	if !found {
		return
	}

	entry := value.(*slot[S])
	entry.mu.Lock()
	entry.evicted = true
	tbl.slots.CompareAndDelete(key, entry)
	entry.mu.Unlock()
}

// sweep evicts every slot whose state satisfies idle.
func (tbl *table[K, S]) sweep(idle func(state *S) bool) int {
	removed := 0
	tbl.slots.Range(func(key, value any) bool {
		entry := value.(*slot[S])
		entry.mu.Lock()
		if !entry.evicted && idle(&entry.state) {
			entry.evicted = true
			tbl.slots.CompareAndDelete(key, entry)
			removed++
		}
		entry.mu.Unlock()
		return true
	})
	return removed
}

// # Background Reclamation

/*
StartSweeper periodically drops idle entries from the given buckets.

Description: Entries that carry no information (a full refilling bucket, an
expired window) are indistinguishable from absent ones, so removing them is
lossless. The goroutine stops when ctx is cancelled; the returned channel is
closed once it has exited.

Parameters:
  - ctx: context.Context (cancellation stops the sweeper)
  - interval: time.Duration
  - clock: Clock (nil means time.Now)
  - sweepers: ...Sweeper

Returns:
  - <-chan struct{}: closed after the goroutine exits
*/
func StartSweeper(ctx context.Context, interval time.Duration, clock Clock, sweepers ...Sweeper) <-chan struct{} {
	if clock == nil {
		clock = time.Now
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				now := clock()
				for _, sweeper := range sweepers {
					sweeper.Sweep(now)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}

// rejected records a refused consume.
func rejected(name string) bool {
	metrics.RecordThrottleRejection(name)
	return false
}
