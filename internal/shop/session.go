package shop

import (
	"context"
	"sync"
)

// SessionState tracks where a user slot is in its lifecycle.
type SessionState string

const (
	// SessionAnonymous means no user is bound and all collections are empty.
	SessionAnonymous SessionState = "anonymous"
	// SessionAuthenticating means credentials were submitted and the provider
	// response is pending.
	SessionAuthenticating SessionState = "authenticating"
	// SessionActive means a user is bound and their collections are loaded.
	SessionActive SessionState = "active"
)

// Session binds one confirmed user to their loaded entity store. Sessions are
// only created by Service.BeginSession and become unusable after EndSession.
type Session struct {
	user  User
	store *Store
	ended bool
}

// User returns the owner of this session.
func (s *Session) User() User {
	return s.user
}

// Store exposes the session's entity store.
func (s *Session) Store() *Store {
	return s.store
}

// Authenticator is the auth collaborator confirming identities. Failures are
// reported through the taxonomy sentinels: ErrDuplicateIdentity,
// ErrInvalidCredentials, ErrRateLimited, or anything else verbatim.
type Authenticator interface {
	SignUp(ctx context.Context, name, email, password string) (User, error)
	SignIn(ctx context.Context, email, password string) (User, error)
}

// Lifecycle owns a single user slot: Anonymous -> Authenticating -> Active
// and back to Anonymous on sign-out or provider-reported termination. At most
// one active session is modeled per Lifecycle value.
type Lifecycle struct {
	mu      sync.Mutex
	service *Service
	auth    Authenticator
	state   SessionState
	session *Session
}

// NewLifecycle constructs an anonymous lifecycle over the sync core and the
// auth collaborator.
func NewLifecycle(service *Service, auth Authenticator) *Lifecycle {
	return &Lifecycle{service: service, auth: auth, state: SessionAnonymous}
}

// State reports the current lifecycle state.
func (l *Lifecycle) State() SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Session returns the active session, or nil when anonymous.
func (l *Lifecycle) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// SignUp registers a new identity and, on success, binds it with freshly
// loaded (empty) collections. On provider rejection the slot returns to
// Anonymous and the specific reason is surfaced.
func (l *Lifecycle) SignUp(ctx context.Context, name, email, password string) (User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = SessionAuthenticating
	user, err := l.auth.SignUp(ctx, name, email, password)
	if err != nil {
		l.reset()
		return User{}, err
	}
	return user, l.activate(ctx, user)
}

// SignIn confirms an existing identity and binds it with a full fresh load of
// all four collections.
func (l *Lifecycle) SignIn(ctx context.Context, email, password string) (User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = SessionAuthenticating
	user, err := l.auth.SignIn(ctx, email, password)
	if err != nil {
		l.reset()
		return User{}, err
	}
	return user, l.activate(ctx, user)
}

// Resume binds an identity already confirmed elsewhere (a validated session
// token or an external provider) without re-checking credentials.
func (l *Lifecycle) Resume(ctx context.Context, user User) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = SessionAuthenticating
	return l.activate(ctx, user)
}

// SignOut returns the slot to Anonymous, clearing all four collections
// immediately regardless of any in-flight mutation.
func (l *Lifecycle) SignOut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session != nil {
		l.service.EndSession(l.session)
	}
	l.reset()
}

func (l *Lifecycle) activate(ctx context.Context, user User) error {
	session, err := l.service.BeginSession(ctx, user)
	if err != nil {
		l.reset()
		return err
	}
	if l.session != nil {
		l.service.EndSession(l.session)
	}
	l.session = session
	l.state = SessionActive
	return nil
}

func (l *Lifecycle) reset() {
	l.session = nil
	l.state = SessionAnonymous
}
