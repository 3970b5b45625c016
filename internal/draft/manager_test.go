package draft

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/kvstore"
)

type refundPayload struct {
	OrderID int     `json:"order_id"`
	Amount  float64 `json:"amount"`
}

func newTestManager(t *testing.T) (*Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	store := NewStore(kvstore.NewMemoryStore(clk))
	return NewManager(store, clk, 15*time.Minute, zap.NewNop()), clk
}

func TestCreateThenClaimReturnsPayloadOnce(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	d, err := mgr.Create(ctx, "refund", refundPayload{OrderID: 42, Amount: 10.00}, "Refund $10.00")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.ID, "refund_"))
	assert.Equal(t, "Refund $10.00", d.Preview)

	claimed, err := mgr.Claim(ctx, "refund", d.ID)
	require.NoError(t, err)

	var payload refundPayload
	require.NoError(t, json.Unmarshal(claimed.Payload, &payload))
	assert.Equal(t, 42, payload.OrderID)
	assert.Equal(t, 10.00, payload.Amount)

	_, err = mgr.Claim(ctx, "refund", d.ID)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	d, err := mgr.Create(ctx, "refund", refundPayload{OrderID: 7, Amount: 3.50}, "Refund $3.50")
	require.NoError(t, err)

	const callers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won, expired int
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Claim(ctx, "refund", d.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
			} else if assert.ErrorIs(t, err, ErrExpired) {
				expired++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, callers-1, expired)
}

func TestGetDoesNotMutateState(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	d, err := mgr.Create(ctx, "stock", map[string]any{"sku": "A-1", "delta": 5}, "Add 5 units of A-1")
	require.NoError(t, err)

	var first *Draft
	for i := 0; i < 5; i++ {
		got, err := mgr.Get(ctx, "stock", d.ID)
		require.NoError(t, err)
		if first == nil {
			first = got
		} else {
			assert.Equal(t, first, got)
		}
	}

	// Still claimable after repeated peeks.
	_, err = mgr.Claim(ctx, "stock", d.ID)
	require.NoError(t, err)

	_, err = mgr.Get(ctx, "stock", d.ID)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestClaimAfterTTLExpires(t *testing.T) {
	mgr, clk := newTestManager(t)
	ctx := context.Background()

	d, err := mgr.Create(ctx, "status", map[string]any{"order_id": 1}, "Mark order 1 shipped")
	require.NoError(t, err)

	clk.Advance(15*time.Minute + time.Second)

	_, err = mgr.Claim(ctx, "status", d.ID)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestStaleRecordIsUnusableEvenIfStillStored(t *testing.T) {
	// A store whose garbage collection lags keeps the record alive past
	// its TTL; the manager's age check must still refuse it.
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	store := NewStore(kvstore.NewMemoryStore(clk))
	mgr := NewManager(store, clk, time.Minute, zap.NewNop())
	ctx := context.Background()

	d, err := mgr.Create(ctx, "refund", refundPayload{OrderID: 1, Amount: 1}, "Refund $1.00")
	require.NoError(t, err)

	// Re-store the envelope with a much longer physical TTL, simulating
	// lagging store-side expiry.
	data, ok, err := store.Get(ctx, "refund", d.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Put(ctx, "refund", d.ID, data, time.Hour))

	clk.Advance(2 * time.Minute)

	_, err = mgr.Claim(ctx, "refund", d.ID)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestCancelDiscardsDraft(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	d, err := mgr.Create(ctx, "refund", refundPayload{OrderID: 9, Amount: 2}, "Refund $2.00")
	require.NoError(t, err)

	found, err := mgr.Cancel(ctx, "refund", d.ID)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = mgr.Claim(ctx, "refund", d.ID)
	assert.ErrorIs(t, err, ErrExpired)

	found, err = mgr.Cancel(ctx, "refund", d.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTTLSeconds(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Equal(t, 900, mgr.TTLSeconds())
}

func TestGenerateIDIsNamespaced(t *testing.T) {
	store := NewStore(kvstore.NewMemoryStore(clock.NewFake(time.Now())))
	a := store.GenerateID("refund")
	b := store.GenerateID("refund")
	assert.True(t, strings.HasPrefix(a, "refund_"))
	assert.NotEqual(t, a, b)
}
