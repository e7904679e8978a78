// internal/types/interfaces.go
package types

import (
	"context"
)

// Backend is the remote assistant API. Callers treat a nil reply with a
// nil error as a failed call.
type Backend interface {
	StartOnboarding(ctx context.Context, id Identity) (*OnboardingStatus, error)
	SubmitOnboarding(ctx context.Context, id Identity, answers map[string]string) (*ChatReply, error)
	Chat(ctx context.Context, id Identity, message string) (*ChatReply, error)
}

// KV is durable local key-value storage.
type KV interface {
	// Get returns ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
