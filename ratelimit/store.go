// Package ratelimit implements a per-identity token-bucket limiter over a
// shared store, so all nodes enforce a common quota.
package ratelimit

import (
	"context"
	"time"
)

// Bucket is the persisted state of one identity's token bucket.
type Bucket struct {
	// Tokens is the fractional token balance at the Last observation.
	Tokens float64

	// Last is when Tokens was observed.
	Last time.Time
}

// Store persists buckets keyed by identity. A missing bucket means the
// identity has never been seen (a full bucket).
type Store interface {
	// GetBucket returns the bucket for an identity, or (nil, nil) when
	// the identity has no bucket.
	GetBucket(ctx context.Context, identity string) (*Bucket, error)

	// SetBucket writes the bucket with the given time-to-live. Idle
	// identities expire and return to a full bucket.
	SetBucket(ctx context.Context, identity string, b *Bucket, ttl time.Duration) error

	// DeleteBucket removes an identity's bucket. Deleting an absent
	// bucket is not an error.
	DeleteBucket(ctx context.Context, identity string) error

	// Close releases store resources.
	Close() error
}
