package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"carebase/internal/db"
	"carebase/internal/logging"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(ctx, conn, db.DriverSQLite))
	return conn
}

func newTestHasher(t *testing.T) *BcryptHasher {
	t.Helper()
	h, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestDB(t), newTestHasher(t))
}

func newTestCodec(t *testing.T, opts ...CodecOption) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec([]byte("test-secret"), opts...)
	require.NoError(t, err)
	return c
}

func newTestService(t *testing.T, store CredentialStore) *Service {
	t.Helper()
	return NewService(store, newTestCodec(t), LoginThrottle{
		Account: NewLocalThrottle(5, 15*time.Minute),
		Client:  NewLocalThrottle(20, 15*time.Minute),
	}, logging.Discard())
}

// fixedClock is a settable clock for expiry tests.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
