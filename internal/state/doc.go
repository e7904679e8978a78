// Package state provides durable key-value storage implementations.
package state

import "github.com/user/connector/internal/types"

// Compile-time interface compliance checks.
var _ types.KV = (*FileStore)(nil)
var _ types.KV = (*SQLiteStore)(nil)
