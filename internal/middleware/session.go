package middleware

import (
	"context"
	"encoding/gob"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/emosense/authd/internal/model"
)

const (
	userKey = "session_user"
)

var (
	errNoSessionUser = errors.New("no user in session")
)

// SessionManager binds the browser cookie session to the authenticated
// user. Auth state itself lives in auth.Manager; this layer only carries
// the outcome per client.
type SessionManager struct {
	impl *scs.SessionManager
}

func NewSessionManager() (*SessionManager, error) {
	gob.Register(&model.User{})

	sm := &SessionManager{}
	sm.impl = scs.New()
	sm.impl.Lifetime = 12 * time.Hour

	return sm, nil
}

func (s *SessionManager) Wrap(next http.Handler) http.Handler {
	return s.impl.LoadAndSave(next)
}

func (s *SessionManager) User(ctx context.Context) (*model.User, error) {
	user, ok := s.impl.Get(ctx, userKey).(*model.User)
	if !ok {
		return nil, errNoSessionUser
	}

	return user, nil
}

func (s *SessionManager) SetUser(ctx context.Context, user *model.User) {
	s.impl.Put(ctx, userKey, user)
}

// Clear drops the session data and rotates the session token.
func (s *SessionManager) Clear(ctx context.Context) error {
	return s.impl.Destroy(ctx)
}
