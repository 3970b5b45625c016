package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/clock"
)

// DefaultTTL bounds how long a prepared action stays confirmable.
const DefaultTTL = 15 * time.Minute

var (
	// ErrExpired means the draft was already claimed, cancelled or timed
	// out. The caller must prepare the action again.
	ErrExpired = errors.New("draft_expired")

	// ErrCreationFailed means the draft could not be staged. Mutation
	// gating fails closed: no draft, no mutation.
	ErrCreationFailed = errors.New("draft_creation_failed")
)

// Draft is the staged description of a mutating action awaiting
// confirmation. Immutable once stored.
type Draft struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Preview   string          `json:"preview"`
	CreatedAt time.Time       `json:"created_at"`
}

// Manager owns the draft lifecycle: create with TTL, peek, at-most-once
// claim, cancel. A draft is CREATED, then exactly one of claimed,
// cancelled or expired; there is no re-open.
type Manager struct {
	store  *Store
	clock  clock.Clock
	ttl    time.Duration
	logger *zap.Logger
}

func NewManager(store *Store, clk clock.Clock, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		clock:  clk,
		ttl:    ttl,
		logger: logger,
	}
}

// TTLSeconds exposes the configured TTL for client-side messaging.
func (m *Manager) TTLSeconds() int {
	return int(m.ttl / time.Second)
}

// Create stages a new draft and returns it with its generated id. Any
// storage failure is reported as ErrCreationFailed.
func (m *Manager) Create(ctx context.Context, draftType string, payload any, preview string) (*Draft, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	d := &Draft{
		ID:        m.store.GenerateID(draftType),
		Type:      draftType,
		Payload:   raw,
		Preview:   preview,
		CreatedAt: m.clock.Now(),
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
	if err := m.store.Put(ctx, draftType, d.ID, string(data), m.ttl); err != nil {
		m.logger.Error("failed to stage draft",
			zap.String("type", draftType),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	m.logger.Info("draft staged",
		zap.String("type", draftType),
		zap.String("draft_id", d.ID),
		zap.Int("ttl_seconds", m.TTLSeconds()))
	return d, nil
}

// Get is a non-destructive peek for preview display. Repeated calls return
// the same draft until it is claimed, cancelled or expires.
func (m *Manager) Get(ctx context.Context, draftType, id string) (*Draft, error) {
	data, ok, err := m.store.Get(ctx, draftType, id)
	if err != nil {
		return nil, fmt.Errorf("error reading draft: %w", err)
	}
	if !ok {
		return nil, ErrExpired
	}
	d, err := m.decode(data)
	if err != nil {
		return nil, err
	}
	if m.stale(d) {
		return nil, ErrExpired
	}
	return d, nil
}

// Claim converts the draft into a one-time-usable payload. Exactly one of
// any concurrent claims for an id succeeds; the rest see ErrExpired. A
// storage failure also denies the claim.
func (m *Manager) Claim(ctx context.Context, draftType, id string) (*Draft, error) {
	data, ok, err := m.store.Claim(ctx, draftType, id)
	if err != nil {
		return nil, fmt.Errorf("error claiming draft: %w", err)
	}
	if !ok {
		return nil, ErrExpired
	}
	d, err := m.decode(data)
	if err != nil {
		return nil, err
	}
	// The record may outlive its logical TTL if the store's garbage
	// collection lags; the age check closes that gap.
	if m.stale(d) {
		return nil, ErrExpired
	}

	m.logger.Info("draft claimed",
		zap.String("type", draftType),
		zap.String("draft_id", id))
	return d, nil
}

// Cancel discards the draft without returning its payload. Returns whether
// anything was found.
func (m *Manager) Cancel(ctx context.Context, draftType, id string) (bool, error) {
	found, err := m.store.Delete(ctx, draftType, id)
	if err != nil {
		return false, fmt.Errorf("error cancelling draft: %w", err)
	}
	if found {
		m.logger.Info("draft cancelled",
			zap.String("type", draftType),
			zap.String("draft_id", id))
	}
	return found, nil
}

func (m *Manager) decode(data string) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("error decoding draft: %v", err)
	}
	return &d, nil
}

func (m *Manager) stale(d *Draft) bool {
	return m.clock.Now().Sub(d.CreatedAt) > m.ttl
}
