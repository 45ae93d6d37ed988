package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/models"
	"cribb-companion/internal/observable"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginRejected    = errors.New("login rejected")
)

// Session is the backend session held on behalf of the signed-in user.
type Session struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

func (s *Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type EventType int

const (
	EventLogout EventType = iota
	EventLogin
)

func (t EventType) String() string {
	if t == EventLogin {
		return "login"
	}
	return "logout"
}

// Event reports a change of the signed-in user. User is nil on logout.
type Event struct {
	Type EventType
	User *models.User
}

// Backend is the part of the Cribb API the session needs.
type Backend interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	UserByUsername(ctx context.Context, auth http.Header, username string) (*models.Profile, error)
}

// Manager owns the current session. It is the only place that knows whether someone is
// signed in; everything else asks it for the user and for request headers.
type Manager struct {
	backend Backend
	store   SessionStore
	log     logrus.FieldLogger
	now     func() time.Time

	mu      sync.RWMutex
	session *Session
	events  *observable.Value[Event]
}

func NewManager(backend Backend, store SessionStore, log logrus.FieldLogger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		backend: backend,
		store:   store,
		log:     log.WithField("component", "auth"),
		now:     time.Now,
		events:  observable.NewValue(Event{Type: EventLogout}),
	}
}

func (m *Manager) Login(ctx context.Context, username, password string) (*models.User, error) {
	resp, err := m.backend.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "invalid credentials"
		}
		return nil, fmt.Errorf("%w: %s", ErrLoginRejected, msg)
	}

	session := &Session{
		Token:     resp.Token,
		ExpiresAt: tokenExpiry(resp.Token),
		User: models.User{
			ID:       resp.User.ID,
			Username: username,
			Name:     strings.TrimSpace(resp.User.FirstName + " " + resp.User.LastName),
		},
	}

	profile, err := m.backend.UserByUsername(ctx, bearerHeader(resp.Token), username)
	if err != nil {
		// Without a profile the user is signed in but has no group context yet.
		m.log.WithError(err).WithField("username", username).Warn("Could not resolve group membership")
	} else {
		if session.User.ID == "" {
			session.User.ID = profile.ID
		}
		if profile.Name != "" {
			session.User.Name = profile.Name
		}
		session.User.GroupID = profile.GroupID
		session.User.GroupName = profile.Group
		session.User.GroupCode = profile.GroupCode
	}

	if err := m.store.Save(session); err != nil {
		m.log.WithError(err).Warn("Failed to persist session")
	}

	m.setSession(session)
	m.log.WithFields(logrus.Fields{
		"user_id":  session.User.ID,
		"username": username,
		"group":    session.User.GroupName,
	}).Info("User logged in")

	user := session.User
	return &user, nil
}

func (m *Manager) Logout() {
	if err := m.store.Clear(); err != nil {
		m.log.WithError(err).Warn("Failed to clear stored session")
	}
	if m.clearSession() {
		m.log.Info("User logged out")
	}
}

// Restore reloads a persisted session. It reports whether a usable session was found.
func (m *Manager) Restore() (bool, error) {
	session, err := m.store.Load()
	if err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}
	if session == nil || session.Token == "" {
		return false, nil
	}
	if session.expired(m.now()) {
		if err := m.store.Clear(); err != nil {
			m.log.WithError(err).Warn("Failed to clear expired session")
		}
		return false, nil
	}

	m.setSession(session)
	m.log.WithField("user_id", session.User.ID).Info("Session restored")
	return true, nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *models.User {
	session := m.current()
	if session == nil {
		return nil
	}
	user := session.User
	return &user
}

// AuthHeaders returns the headers that authenticate a backend request.
func (m *Manager) AuthHeaders() (http.Header, error) {
	session := m.current()
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	return bearerHeader(session.Token), nil
}

// Subscribe delivers the current state and every later login or logout.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.Subscribe()
}

// current returns the live session. An expired one is dropped and a logout published.
func (m *Manager) current() *Session {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	if session == nil {
		return nil
	}
	if session.expired(m.now()) {
		if m.dropSession(session) {
			m.log.WithField("user_id", session.User.ID).Info("Backend session expired")
		}
		return nil
	}
	return session
}

func (m *Manager) setSession(session *Session) {
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	user := session.User
	m.events.Set(Event{Type: EventLogin, User: &user})
}

func (m *Manager) clearSession() bool {
	return m.dropSession(nil)
}

// dropSession clears the session if it is still expected (any session when expected is nil).
func (m *Manager) dropSession(expected *Session) bool {
	m.mu.Lock()
	had := m.session != nil && (expected == nil || m.session == expected)
	if had {
		m.session = nil
	}
	m.mu.Unlock()

	if had {
		m.events.Set(Event{Type: EventLogout})
	}
	return had
}

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// tokenExpiry reads the exp claim of the backend token. The companion does not hold the
// backend's signing key, so the token is parsed without verification. Zero means unknown.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
