package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/kvstore"
)

// Limiter is a fixed-window per-user counter over a keyed TTL store. The
// window entry expires with the store TTL, so a new window starts
// implicitly on the first increment after expiry.
//
// If the backing store is unreachable the limiter fails open: requests are
// allowed rather than rejected. This is the opposite of the draft
// manager's fail-closed stance and is intentional, since limiting is not a
// correctness concern.
type Limiter struct {
	kv     kvstore.Store
	limit  int64
	window time.Duration
	logger *zap.Logger
}

func New(kv kvstore.Store, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		kv:     kv,
		limit:  int64(limit),
		window: window,
		logger: logger,
	}
}

func (l *Limiter) key(userID int64) string {
	return fmt.Sprintf("ratelimit:%d", userID)
}

// Check reports whether the user is under the limit without consuming a
// slot.
func (l *Limiter) Check(ctx context.Context, userID int64) bool {
	value, ok, err := l.kv.Get(ctx, l.key(userID))
	if err != nil {
		l.failOpen(userID, err)
		return true
	}
	if !ok {
		return true
	}
	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		l.failOpen(userID, fmt.Errorf("error parsing window counter: %v", err))
		return true
	}
	return count < l.limit
}

// Increment records one request, starting a new window if none is active.
func (l *Limiter) Increment(ctx context.Context, userID int64) {
	if _, err := l.kv.Incr(ctx, l.key(userID), l.window); err != nil {
		l.failOpen(userID, err)
	}
}

// CheckAndIncrement atomically records the request and reports whether it
// is within the limit. Separate check-then-increment steps would let
// concurrent requests all observe "under limit" before any of them counts
// itself.
func (l *Limiter) CheckAndIncrement(ctx context.Context, userID int64) bool {
	count, err := l.kv.Incr(ctx, l.key(userID), l.window)
	if err != nil {
		l.failOpen(userID, err)
		return true
	}
	return count <= l.limit
}

// RetryAfter returns the seconds remaining until the user's window resets,
// for surfacing as a retry hint.
func (l *Limiter) RetryAfter(ctx context.Context, userID int64) int {
	ttl, ok, err := l.kv.TTL(ctx, l.key(userID))
	if err != nil || !ok {
		return 0
	}
	secs := int(ttl / time.Second)
	if ttl%time.Second > 0 {
		secs++
	}
	return secs
}

func (l *Limiter) failOpen(userID int64, err error) {
	if errors.Is(err, kvstore.ErrUnavailable) {
		l.logger.Warn("rate limit store unreachable, failing open",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return
	}
	l.logger.Error("rate limit error, failing open",
		zap.Int64("user_id", userID),
		zap.Error(err))
}
