package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/storebot/internal/kvstore"
)

// Store persists draft envelopes in a keyed TTL store, namespaced by draft
// type so ids from different operations can never collide.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// GenerateID returns a collision-resistant id of the form
// "<prefix>_<32 hex chars>".
func (s *Store) GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.New().String(), "-", ""))
}

func draftKey(draftType, id string) string {
	return fmt.Sprintf("draft:%s:%s", draftType, id)
}

func (s *Store) Put(ctx context.Context, draftType, id, data string, ttl time.Duration) error {
	if err := s.kv.Set(ctx, draftKey(draftType, id), data, ttl); err != nil {
		return fmt.Errorf("error storing draft: %w", err)
	}
	return nil
}

// Get is a non-destructive peek. It never changes draft state or TTL.
func (s *Store) Get(ctx context.Context, draftType, id string) (string, bool, error) {
	return s.kv.Get(ctx, draftKey(draftType, id))
}

// Claim atomically retrieves and removes the draft. Of any number of
// concurrent claims for one id, exactly one receives the data.
func (s *Store) Claim(ctx context.Context, draftType, id string) (string, bool, error) {
	return s.kv.GetDel(ctx, draftKey(draftType, id))
}

func (s *Store) Delete(ctx context.Context, draftType, id string) (bool, error) {
	return s.kv.Delete(ctx, draftKey(draftType, id))
}
