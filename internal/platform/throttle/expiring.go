// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package throttle

import "time"

// window is the usage of one key within its current fixed window.
// A zero createdAt means no window is open.
type window struct {
	count     int
	createdAt time.Time
}

// ExpiringBucket counts cumulative usage inside a fixed window. Capacity does
// not regenerate gradually; the whole window resets once it is older than
// the expiry interval.
//
// Used for verification-email sends and reset/verification code checks.
type ExpiringBucket[K comparable] struct {
	max     int
	expiry  time.Duration
	clock   Clock
	name    string
	entries *table[K, window]
}

var _ Bucket[string] = (*ExpiringBucket[string])(nil)

// NewExpiringBucket creates a bucket allowing max units per expiry window.
func NewExpiringBucket[K comparable](max int, expiry time.Duration, opts ...Option) *ExpiringBucket[K] {
	built := buildOptions(opts)

	return &ExpiringBucket[K]{
		max:     max,
		expiry:  expiry,
		clock:   built.clock,
		name:    built.name,
		entries: newTable[K](func(time.Time) window { return window{} }),
	}
}

// Max returns the capacity fixed at construction.
func (bucket *ExpiringBucket[K]) Max() int { return bucket.max }

// expired reports whether w carries no live window at now.
func (bucket *ExpiringBucket[K]) expired(w *window, now time.Time) bool {
	return w == nil || w.createdAt.IsZero() || now.Sub(w.createdAt) > bucket.expiry
}

// Check reports whether cost more units fit in key's current window.
func (bucket *ExpiringBucket[K]) Check(key K, cost int) bool {
	if cost <= 0 {
		return true
	}

	now := bucket.clock()
	return bucket.entries.read(key, func(w *window) bool {
		if bucket.expired(w, now) {
			return cost <= bucket.max
		}
		return w.count+cost <= bucket.max
	})
}

// Consume records cost units for key. An absent or expired window is
// reopened at now; a full window refuses without changing state.
func (bucket *ExpiringBucket[K]) Consume(key K, cost int) bool {
	if cost <= 0 {
		return true
	}

	now := bucket.clock()
	allowed := bucket.entries.update(key, now, func(w *window) bool {
		if bucket.expired(w, now) {
			if cost > bucket.max {
				return false
			}
			w.count = cost
			w.createdAt = now
			return true
		}

		if w.count+cost > bucket.max {
			return false
		}
		w.count += cost
		return true
	})
	if !allowed {
		return rejected(bucket.name)
	}
	return true
}

// Reset discards key's window.
func (bucket *ExpiringBucket[K]) Reset(key K) {
	bucket.entries.evict(key)
}

// Sweep drops keys whose window has expired.
func (bucket *ExpiringBucket[K]) Sweep(now time.Time) int {
	return bucket.entries.sweep(func(w *window) bool {
		return bucket.expired(w, now)
	})
}
