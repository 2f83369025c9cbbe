package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
)

// SessionName is the name of the browser session cookie.
const SessionName = "recipe-session"

const sessionKeyUserID = "user_id"

// ErrNoSession is returned when the request carries no signed-in session.
var ErrNoSession = errors.New("no signed-in session")

// SessionStore reads and writes the signed browser session. The login
// collaborator writes the user id after sign-in; this service only reads it.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore builds a cookie store keyed by the SHA-256 of secret. The
// secret must match across restarts and replicas.
func NewSessionStore(secret string, cookies CookieSettings) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cookies.Domain,
		MaxAge:   60 * 60 * 12,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

// UserID returns the signed-in user id.
func (s *SessionStore) UserID(r *http.Request) (int64, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return 0, err
	}
	id, ok := session.Values[sessionKeyUserID].(int64)
	if !ok || id <= 0 {
		return 0, ErrNoSession
	}
	return id, nil
}

// SignIn records userID in the session cookie.
func (s *SessionStore) SignIn(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		// A cookie signed with an old key still yields a usable new session.
		session, _ = s.store.New(r, SessionName)
	}
	session.Values[sessionKeyUserID] = userID
	return session.Save(r, w)
}

// SignOut expires the session cookie.
func (s *SessionStore) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		session, _ = s.store.New(r, SessionName)
	}
	delete(session.Values, sessionKeyUserID)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
