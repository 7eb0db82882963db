package session

import (
	"context"
	"log"
	"sync"

	"campustransit/client/api"
)

// Manager is the single source of truth for the current session. Construct
// one at process start and pass it to every consumer; it owns the persisted
// record and the in-memory state, and hands out value snapshots only.
type Manager struct {
	api   *api.Client
	store fileStore

	mu       sync.Mutex
	current  Session
	inFlight bool
}

func NewManager(client *api.Client, sessionFile string) *Manager {
	return &Manager{
		api:   client,
		store: fileStore{path: sessionFile},
	}
}

// Restore loads the persisted session at startup. A missing, malformed, or
// legacy-layout record never fails: legacy records are converted once,
// anything unreadable degrades to the unauthenticated session.
func (m *Manager) Restore() Session {
	sess, err := m.store.load()
	if err != nil {
		if legacy, ok := m.store.loadLegacy(); ok && legacy.IsAuthenticated() {
			sess = legacy
			if err := m.store.save(sess); err != nil {
				log.Printf("session: legacy conversion not persisted: %v", err)
			} else {
				m.store.removeLegacy()
			}
		} else {
			sess = Session{}
		}
	}

	if !sess.IsAuthenticated() {
		if err := m.store.clear(); err != nil {
			log.Printf("session: clear failed: %v", err)
		}
		sess = Session{}
	}

	m.commit(sess)
	return sess
}

// Login exchanges credentials for a session. On failure nothing changes and
// the returned error is an *AuthError (or ErrAuthInFlight for a duplicate
// submit while one is pending).
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	release, err := m.beginAuth()
	if err != nil {
		return Session{}, err
	}
	defer release()

	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		return Session{}, classify(err)
	}
	return m.adopt(resp)
}

// Register creates an account; same contract as Login.
func (m *Manager) Register(ctx context.Context, reg api.Registration) (Session, error) {
	release, err := m.beginAuth()
	if err != nil {
		return Session{}, err
	}
	defer release()

	resp, err := m.api.Register(ctx, reg)
	if err != nil {
		return Session{}, classify(err)
	}
	return m.adopt(resp)
}

// Logout clears the in-memory session and deletes the persisted record.
// Calling it while logged out is a no-op.
func (m *Manager) Logout() {
	m.commit(Session{})
	if err := m.store.clear(); err != nil {
		log.Printf("session: clear failed: %v", err)
	}
}

// IsAuthenticated reports whether a user is currently logged in.
func (m *Manager) IsAuthenticated() bool {
	return m.Current().IsAuthenticated()
}

// CurrentRole returns the logged-in user's role, or RoleNone.
func (m *Manager) CurrentRole() string {
	return m.Current().Role()
}

// Current returns a snapshot of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.current
	if sess.User != nil {
		user := *sess.User
		sess.User = &user
	}
	return sess
}

func (m *Manager) beginAuth() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return nil, ErrAuthInFlight
	}
	m.inFlight = true
	return func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}, nil
}

// adopt commits a successful auth response: all fields validate before any
// state changes, and a persistence failure downgrades to in-memory only
// rather than failing the login.
func (m *Manager) adopt(resp *api.AuthResponse) (Session, error) {
	sess := Session{
		Token: resp.Token,
		User: &User{
			ID:        resp.User.ID,
			Role:      resp.User.Role,
			FirstName: resp.User.FirstName,
			LastName:  resp.User.LastName,
			Email:     resp.User.Email,
			Phone:     resp.User.Phone,
		},
	}
	if !sess.IsAuthenticated() {
		return Session{}, &AuthError{Kind: KindServerError, Message: "malformed auth response"}
	}

	m.commit(sess)
	if err := m.store.save(sess); err != nil {
		log.Printf("session: persist failed: %v", err)
	}
	return sess, nil
}

func (m *Manager) commit(sess Session) {
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()
	m.api.SetToken(sess.Token)
}
