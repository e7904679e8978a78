// internal/state/open.go
package state

import (
	"fmt"

	"github.com/user/connector/internal/types"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// CheckBackend reports whether backend names a store Open can create.
func CheckBackend(backend string) error {
	switch backend {
	case "", BackendFile, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("unknown storage backend: %s", backend)
	}
}

// Open returns the store for the named backend at path.
func Open(backend, path string) (types.KV, error) {
	if err := CheckBackend(backend); err != nil {
		return nil, err
	}
	if backend == BackendSQLite {
		return NewSQLiteStore(path)
	}
	return NewFileStore(path), nil
}
