package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the backing store could not be reached. Callers
// decide whether to fail open or closed; absence of a key is never reported
// as an error.
var ErrUnavailable = errors.New("kvstore unavailable")

// Store is a keyed TTL store. Every value expires; SetNX, GetDel and Incr
// are atomic, which is what the draft claim and the rate-limit window
// depend on.
type Store interface {
	// Set stores value under key with the given TTL, overwriting any
	// previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if key is absent. Returns true when the
	// value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value and true, or "" and false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// GetDel atomically retrieves and removes the value. At most one
	// concurrent caller observes a given value.
	GetDel(ctx context.Context, key string) (string, bool, error)

	// Delete removes the key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Incr atomically increments the counter at key, creating it with the
	// given TTL on first use. The TTL of an existing counter is not
	// extended.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining lifetime of key, or false when absent.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)

	Close() error
}
