// Package auth implements token sessions over the document's flat user
// collection. Realtime sync runs only while someone is signed in, so the
// first login starts the subscription and the last logout stops it.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/juckphai/salejuck/internal/platform/httpx"
	"github.com/juckphai/salejuck/internal/pos"
	syncengine "github.com/juckphai/salejuck/internal/sync"
)

// Session is one signed-in device.
type Session struct {
	Token    string `json:"token"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Service owns the in-memory session table. Sessions do not survive a
// restart; clients simply sign in again.
type Service struct {
	logger *slog.Logger
	engine *syncengine.Engine

	mu       sync.Mutex
	sessions map[string]Session
}

// NewService constructs the auth service.
func NewService(logger *slog.Logger, engine *syncengine.Engine) *Service {
	return &Service{
		logger:   logger,
		engine:   engine,
		sessions: make(map[string]Session),
	}
}

// Login checks the credentials against the document and issues a session
// token. The first active session starts realtime sync.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	var user *pos.User
	err := s.engine.Read(func(d *pos.Document) {
		if found := d.UserByUsername(username); found != nil && found.Password == password {
			copied := *found
			user = &copied
		}
	})
	if err != nil {
		return Session{}, err
	}
	if user == nil {
		return Session{}, fmt.Errorf("auth: bad credentials: %w", httpx.ErrUnauthorized)
	}

	session := Session{
		Token:    uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}

	s.mu.Lock()
	first := len(s.sessions) == 0
	s.sessions[session.Token] = session
	s.mu.Unlock()

	if first {
		if err := s.engine.StartRealtimeSync(ctx); err != nil {
			s.logger.Warn("realtime sync unavailable", slog.Any("error", err))
		}
	}
	s.logger.Info("user logged in", slog.String("username", user.Username), slog.String("role", user.Role))
	return session, nil
}

// Logout revokes a token. The last logout stops realtime sync.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	session, ok := s.sessions[token]
	if ok {
		delete(s.sessions, token)
	}
	last := len(s.sessions) == 0
	s.mu.Unlock()

	if !ok {
		return
	}
	if last {
		s.engine.StopRealtimeSync()
	}
	s.logger.Info("user logged out", slog.String("username", session.Username))
}

// SessionByToken resolves a bearer token.
func (s *Service) SessionByToken(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	return session, ok
}

// ActiveSessions reports how many devices are signed in.
func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
