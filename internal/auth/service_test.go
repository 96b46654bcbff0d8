package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebase/internal/logging"
)

const testClient = "192.0.2.1"

func janeInput() RegisterInput {
	return RegisterInput{Email: "jane@example.com", Password: "secret123", FirstName: "Jane", LastName: "Doe"}
}

func TestService_RegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, store)

	reg, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "jane@example.com", reg.User.Email)
	assert.Equal(t, RoleUser, reg.User.Role)

	id, err := newTestCodec(t).Verify(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, id.UserID)

	login, err := svc.Login(ctx, "jane@example.com", "secret123", testClient)
	require.NoError(t, err)
	assert.Equal(t, reg.User, login.User)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), login.ExpiresAt, 5*time.Second)
}

func TestService_LoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, store)
	_, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)

	_, wrongPass := svc.Login(ctx, "jane@example.com", "nope-nope", testClient)
	_, unknown := svc.Login(ctx, "ghost@example.com", "secret123", testClient)
	require.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	require.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))

	_, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)
	in := janeInput()
	in.Password = "different-password"
	_, err = svc.Register(ctx, in)
	require.ErrorIs(t, err, ErrUserAlreadyExists)

	// The first password still works.
	_, err = svc.Login(ctx, "jane@example.com", "secret123", testClient)
	require.NoError(t, err)
}

func TestService_ConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, store)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, janeInput())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrUserAlreadyExists):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflict)
	count, err := store.CountByRole(ctx, RoleUser)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_LoginThrottleIsPerClient(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)
	const attacker, owner = "203.0.113.9", "198.51.100.7"

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, "jane@example.com", "wrong-password", attacker)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = svc.Login(ctx, "JANE@example.com", "secret123", attacker)
	require.ErrorIs(t, err, ErrTooManyAttempts, "the guessing client is blocked, case-insensitively")

	s, err := svc.Login(ctx, "jane@example.com", "secret123", owner)
	require.NoError(t, err, "the owner logs in from their own address")
	assert.NotEmpty(t, s.Token)
}

func TestService_BootstrapAdminCannotBeLockedOut(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := newTestService(t, store)
	_, err := EnsureAdmin(ctx, store, testAdmin, logging.Discard())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := svc.Login(ctx, testAdmin.Email, "guess", "203.0.113.9")
		require.Error(t, err)
	}
	s, err := svc.Login(ctx, testAdmin.Email, testAdmin.Password, "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, s.User.Role)
}

func TestService_ClientBudgetSpansAccounts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)

	// 20 guesses spread over many addresses from one client.
	for i := 0; i < 20; i++ {
		_, err := svc.Login(ctx, fmt.Sprintf("user%d@example.com", i), "guess", "203.0.113.9")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = svc.Login(ctx, "jane@example.com", "secret123", "203.0.113.9")
	require.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestService_SuccessfulLoginResetsThrottle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, newTestStore(t))
	_, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			_, err := svc.Login(ctx, "jane@example.com", "wrong-password", testClient)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}
		_, err := svc.Login(ctx, "jane@example.com", "secret123", testClient)
		require.NoError(t, err, "round %d", round)
	}
}

type brokenThrottle struct{}

func (brokenThrottle) Attempt(context.Context, string) error { return ErrThrottleUnavailable }
func (brokenThrottle) Reset(context.Context, string) error   { return ErrThrottleUnavailable }

func TestService_ThrottleFailsOpen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := NewService(store, newTestCodec(t), LoginThrottle{Account: brokenThrottle{}, Client: brokenThrottle{}}, logging.Discard())
	_, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)

	_, err = svc.Login(ctx, "jane@example.com", "secret123", testClient)
	require.NoError(t, err)
	_, err = svc.Login(ctx, "jane@example.com", "wrong-password", testClient)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

type faultyStore struct{ err error }

func (f faultyStore) FindByEmail(context.Context, string) (*User, error) { return nil, f.err }
func (f faultyStore) Create(context.Context, NewUser) (*User, error)     { return nil, f.err }
func (f faultyStore) ValidatePassword(context.Context, string, string) (*User, error) {
	return nil, f.err
}

func TestService_StoreFaultsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	svc := newTestService(t, faultyStore{err: boom})

	_, err := svc.Login(ctx, "jane@example.com", "secret123", testClient)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register(ctx, janeInput())
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUserAlreadyExists)
}

// recordingStore captures what Register asks the store to create.
type recordingStore struct {
	*Store
	created []NewUser
}

func (r *recordingStore) Create(ctx context.Context, nu NewUser) (*User, error) {
	r.created = append(r.created, nu)
	return r.Store.Create(ctx, nu)
}

func TestService_RegisterAlwaysCreatesUserRole(t *testing.T) {
	ctx := context.Background()
	rec := &recordingStore{Store: newTestStore(t)}
	svc := newTestService(t, rec)

	s, err := svc.Register(ctx, janeInput())
	require.NoError(t, err)
	require.Len(t, rec.created, 1)
	assert.Equal(t, RoleUser, rec.created[0].Role)
	assert.Equal(t, RoleUser, s.User.Role)
}
