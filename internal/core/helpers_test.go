package core_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tasktalk/tasktalk/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	// _txlock=immediate keeps concurrent append transactions from
	// deadlocking on a shared-to-reserved lock upgrade.
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	s, err := store.NewSQLiteStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *store.SQLiteStore, email string) *store.User {
	t.Helper()
	user, err := s.CreateUser(email, "x")
	require.NoError(t, err)
	return user
}
