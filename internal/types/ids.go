// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

// Identity is the opaque per-device token sent with every backend call.
type Identity string

type MessageID string

func NewIdentity() Identity {
	return Identity(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}
