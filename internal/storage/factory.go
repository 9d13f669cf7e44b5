package storage

import (
	"errors"
	"fmt"
)

// Backend names accepted by NewStore.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	ErrSQLiteUnavailable  = errors.New("sqlite backend unavailable in this build; rebuild with -tags sqlite")
)

// NewStore opens the run store named by backend. An empty backend selects
// the in-memory store; sqlite needs a database path.
func NewStore(backend, dbPath string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if dbPath == "" {
			return nil, errors.New("sqlite store needs a database path")
		}
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
}

// CloseIfSupported releases backends that hold resources. The memory store
// holds none.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
