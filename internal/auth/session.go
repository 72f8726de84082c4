package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/bugdex-forum/backend/internal/models"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

const (
	StateTTL    = 10 * time.Minute
	statePrefix = "oauth_state:"
)

var consumedState = []byte(`{"consumed":true}`)

// StateStore keeps issued OAuth state values until their callback arrives.
type StateStore struct {
	kv store.KV
}

func NewStateStore(kv store.KV) *StateStore {
	return &StateStore{kv: kv}
}

// Issue stores a new random state value.
func (s *StateStore) Issue(ctx context.Context) (string, error) {
	st := models.OAuthState{State: uuid.New().String(), CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, statePrefix+st.State, data, StateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return st.State, nil
}

// Consume reports whether state was issued and unused, and marks it used.
// Of two concurrent callbacks with the same state only one gets true.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	key := statePrefix + state
	prev, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if string(prev) == string(consumedState) {
		return false, nil
	}
	ok, err := s.kv.CompareAndSwap(ctx, key, prev, consumedState)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil || !ok {
		return false, err
	}
	return true, s.kv.Delete(ctx, key)
}
