package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func testService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	engine := syncengine.New(syncengine.Config{Local: &memoryStore{}, Logger: logger})
	_, err := engine.Load(context.Background())
	require.NoError(t, err)
	return NewService(logger, engine)
}

func TestLoginWithDefaultAdmin(t *testing.T) {
	s := testService(t)

	session, err := s.Login(context.Background(), pos.DefaultAdminUsername, pos.DefaultAdminPassword)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, pos.RoleAdmin, session.Role)
	require.Equal(t, 1, s.ActiveSessions())

	got, ok := s.SessionByToken(session.Token)
	require.True(t, ok)
	require.Equal(t, session.UserID, got.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := testService(t)

	_, err := s.Login(context.Background(), pos.DefaultAdminUsername, "wrong")
	require.Error(t, err)

	_, err = s.Login(context.Background(), "nobody", "123")
	require.Error(t, err)
	require.Zero(t, s.ActiveSessions())
}

func TestLogout(t *testing.T) {
	s := testService(t)

	session, err := s.Login(context.Background(), pos.DefaultAdminUsername, pos.DefaultAdminPassword)
	require.NoError(t, err)

	s.Logout(session.Token)
	require.Zero(t, s.ActiveSessions())
	_, ok := s.SessionByToken(session.Token)
	require.False(t, ok)

	// Unknown tokens are a no-op.
	s.Logout("bogus")
}

func TestRequireAuthMiddleware(t *testing.T) {
	s := testService(t)
	session, err := s.Login(context.Background(), pos.DefaultAdminUsername, pos.DefaultAdminPassword)
	require.NoError(t, err)

	var seen *Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := s.RequireAuth(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, session.UserID, seen.UserID)
}

func TestRequireAdminMiddleware(t *testing.T) {
	s := testService(t)

	require.NoError(t, s.engine.Mutate(context.Background(), func(d *pos.Document) error {
		d.Users = append(d.Users, pos.User{ID: 7, Username: "somsri", Password: "pw", Role: pos.RoleSeller})
		return nil
	}))
	seller, err := s.Login(context.Background(), "somsri", "pw")
	require.NoError(t, err)
	admin, err := s.Login(context.Background(), pos.DefaultAdminUsername, pos.DefaultAdminPassword)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := s.RequireAuth(s.RequireAdmin(next))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+seller.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
