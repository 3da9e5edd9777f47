// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package throttle

import (
	"time"

	"golang.org/x/time/rate"
)

// RefillingBucket is a steadily regenerating pool: every key starts with max
// tokens and regains one token per refill interval, never exceeding max.
//
// Used for IP request throttling and per-user one-time-password checks.
type RefillingBucket[K comparable] struct {
	max      int
	interval time.Duration
	clock    Clock
	name     string
	entries  *table[K, *rate.Limiter]
}

var _ Bucket[string] = (*RefillingBucket[string])(nil)

// NewRefillingBucket creates a bucket of capacity max that refills one token
// every refillInterval.
func NewRefillingBucket[K comparable](max int, refillInterval time.Duration, opts ...Option) *RefillingBucket[K] {
	built := buildOptions(opts)
	limit := rate.Every(refillInterval)

	return &RefillingBucket[K]{
		max:      max,
		interval: refillInterval,
		clock:    built.clock,
		name:     built.name,
		entries: newTable[K](func(time.Time) *rate.Limiter {
			return rate.NewLimiter(limit, max)
		}),
	}
}

// Max returns the capacity fixed at construction.
func (bucket *RefillingBucket[K]) Max() int { return bucket.max }

// Check reports whether the refreshed token count covers cost.
func (bucket *RefillingBucket[K]) Check(key K, cost int) bool {
	if cost <= 0 {
		return true
	}
	if cost > bucket.max {
		return false
	}

	now := bucket.clock()
	return bucket.entries.read(key, func(limiter **rate.Limiter) bool {
		// Unknown keys start full.
		if limiter == nil {
			return true
		}
		return (*limiter).TokensAt(now) >= float64(cost)
	})
}

// Consume refills key, then takes cost tokens if enough are available.
func (bucket *RefillingBucket[K]) Consume(key K, cost int) bool {
	if cost <= 0 {
		return true
	}

	now := bucket.clock()
	allowed := bucket.entries.update(key, now, func(limiter **rate.Limiter) bool {
		return (*limiter).AllowN(now, cost)
	})
	if !allowed {
		return rejected(bucket.name)
	}
	return true
}

// Reset restores key to full capacity.
func (bucket *RefillingBucket[K]) Reset(key K) {
	bucket.entries.evict(key)
}

// Sweep drops keys that have refilled completely.
func (bucket *RefillingBucket[K]) Sweep(now time.Time) int {
	full := float64(bucket.max)
	return bucket.entries.sweep(func(limiter **rate.Limiter) bool {
		return (*limiter).TokensAt(now) >= full
	})
}
