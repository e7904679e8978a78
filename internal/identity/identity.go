// Package identity provides the anonymous per-device identity.
package identity

import (
	"context"
	"log/slog"

	"github.com/user/connector/internal/types"
)

// StorageKey is the fixed key the identity is persisted under.
const StorageKey = "connector_user_id"

// Store obtains or creates the durable identity. A nil or failing backing
// store degrades to a fresh in-memory identity per call; nothing is cached
// across a failure.
type Store struct {
	kv types.KV
}

// New returns a Store persisting to kv. kv may be nil when local storage
// could not be opened.
func New(kv types.KV) *Store {
	return &Store{kv: kv}
}

// GetOrCreate returns the persisted identity, generating and persisting one
// on first use. It never fails.
func (s *Store) GetOrCreate(ctx context.Context) types.Identity {
	if s.kv == nil {
		slog.Warn("identity storage unavailable, using ephemeral identity")
		return types.NewIdentity()
	}

	v, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		slog.Warn("read identity failed, using ephemeral identity", "error", err)
		return types.NewIdentity()
	}
	if ok && v != "" {
		return types.Identity(v)
	}

	id := types.NewIdentity()
	if err := s.kv.Set(ctx, StorageKey, string(id)); err != nil {
		slog.Warn("persist identity failed, identity is ephemeral", "error", err)
		return id
	}
	slog.Debug("created identity", "identity", string(id))
	return id
}
