//go:build !sqlite

package storage

import (
	"errors"
	"testing"
)

func TestNewStoreSQLiteUnavailableWithoutTag(t *testing.T) {
	if _, err := NewStore(BackendSQLite, "runs.db"); !errors.Is(err, ErrSQLiteUnavailable) {
		t.Fatalf("expected unavailable sqlite backend, got %v", err)
	}
}
