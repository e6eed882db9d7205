package session_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sensordash/internal/api"
	"sensordash/internal/devapi"
	"sensordash/internal/session"
	"sensordash/internal/storage"
	"sensordash/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type env struct {
	backend *devapi.Server
	client  *api.Client
	slot    *storage.MemorySlot
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := devapi.New(nil)
	ts := httptest.NewServer(backend.Router())
	client := api.New(ts.URL, nil)
	t.Cleanup(func() {
		client.CloseIdleConnections()
		ts.Close()
	})
	return &env{backend: backend, client: client, slot: storage.NewMemorySlot()}
}

func waitBootstrap(t *testing.T, s *session.Store) {
	t.Helper()
	select {
	case <-s.BootstrapDone():
	case <-time.After(10 * time.Second):
		t.Fatal("bootstrap did not settle")
	}
}

func TestFreshStoreIsLoggedOut(t *testing.T) {
	e := newEnv(t)
	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	require.False(t, s.IsAuthenticated())
	require.False(t, s.IsAdmin())
	require.Nil(t, s.User())
	require.Empty(t, s.Token())
}

func TestLoginSuccess(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedUser("ada", "ada@example.com", "correct-horse", true)

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	var notifications int
	s.Subscribe(func() { notifications++ })

	require.NoError(t, s.Login(context.Background(), "ada", "correct-horse"))

	require.True(t, s.IsAuthenticated())
	require.True(t, s.IsAdmin())
	u := s.User()
	require.NotNil(t, u)
	require.Equal(t, "ada", u.Username)
	require.Positive(t, notifications)

	// The persisted token matches the in-memory one.
	persisted, ok, err := e.slot.Get(storage.KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, s.Token(), persisted)

	// The user record was persisted in serialized form.
	raw, ok, err := e.slot.Get(storage.KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	var saved types.User
	require.NoError(t, json.Unmarshal([]byte(raw), &saved))
	require.Equal(t, u.ID, saved.ID)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	err := s.Login(context.Background(), "ada", "wrong")
	require.Error(t, err)
	require.True(t, api.IsUnauthorized(err))

	require.False(t, s.IsAuthenticated())
	_, ok, _ := e.slot.Get(storage.KeyAccessToken)
	require.False(t, ok)
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	e := newEnv(t)
	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	require.NoError(t, s.Register(context.Background(), "new", "new@example.com", "longenough"))
	require.False(t, s.IsAuthenticated())

	// The account works.
	require.NoError(t, s.Login(context.Background(), "new", "longenough"))
	require.True(t, s.IsAuthenticated())
	require.False(t, s.IsAdmin())
}

func TestBootstrapRestoresAndConfirmsSession(t *testing.T) {
	e := newEnv(t)
	u := e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)
	token := e.backend.IssueToken("ada")

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	require.NoError(t, e.slot.Set(storage.KeyAccessToken, token))
	require.NoError(t, e.slot.Set(storage.KeyUser, string(raw)))

	s := session.New(e.client, e.slot, nil)

	// Optimistic state is visible before the server round-trip settles.
	require.True(t, s.IsAuthenticated())
	require.NotNil(t, s.User())

	waitBootstrap(t, s)
	require.True(t, s.IsAuthenticated())
	got := s.User()
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "ada", got.Username)
}

func TestBootstrapRevokedTokenForcesLogout(t *testing.T) {
	e := newEnv(t)
	u := e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	require.NoError(t, e.slot.Set(storage.KeyAccessToken, "T1")) // never issued
	require.NoError(t, e.slot.Set(storage.KeyUser, string(raw)))

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.User())

	// Both persisted entries are removed.
	_, ok, _ := e.slot.Get(storage.KeyAccessToken)
	require.False(t, ok)
	_, ok, _ = e.slot.Get(storage.KeyUser)
	require.False(t, ok)
}

func TestBootstrapCorruptUserRecordLogsOutWithoutNetwork(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)
	token := e.backend.IssueToken("ada")

	require.NoError(t, e.slot.Set(storage.KeyAccessToken, token))
	require.NoError(t, e.slot.Set(storage.KeyUser, "{not json"))

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	require.False(t, s.IsAuthenticated())
	_, ok, _ := e.slot.Get(storage.KeyAccessToken)
	require.False(t, ok)
}

func TestBootstrapTokenWithoutUserStaysUnconfirmed(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.slot.Set(storage.KeyAccessToken, "T1"))

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)

	// Token presence alone drives isAuthenticated; no validation happens
	// without a cached user record.
	require.True(t, s.IsAuthenticated())
	require.Nil(t, s.User())
	require.False(t, s.IsAdmin())
}

func TestFetchCurrentUserFailureForcesLogout(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)
	require.NoError(t, s.Login(context.Background(), "ada", "correct-horse"))

	e.backend.RevokeToken(s.Token())
	s.FetchCurrentUser(context.Background())

	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.User())
}

func TestUpdateProfileReplacesAndPersists(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)
	require.NoError(t, s.Login(context.Background(), "ada", "correct-horse"))

	email := "lovelace@example.com"
	require.NoError(t, s.UpdateProfile(context.Background(), types.ProfileUpdate{Email: &email}))

	u := s.User()
	require.NotNil(t, u)
	require.Equal(t, email, u.Email)

	raw, ok, err := e.slot.Get(storage.KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	var saved types.User
	require.NoError(t, json.Unmarshal([]byte(raw), &saved))
	require.Equal(t, email, saved.Email)
}

func TestLogoutIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedUser("ada", "ada@example.com", "correct-horse", false)

	s := session.New(e.client, e.slot, nil)
	waitBootstrap(t, s)
	require.NoError(t, s.Login(context.Background(), "ada", "correct-horse"))

	s.Logout()
	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.User())

	s.Logout()
	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.User())
	_, ok, _ := e.slot.Get(storage.KeyAccessToken)
	require.False(t, ok)
}
