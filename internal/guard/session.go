package guard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"shopadmin/internal/failure"
	"shopadmin/internal/model"
)

var ErrUnresolved = errors.New("guard: auth state not resolved yet")

// AuthState is the session's current identity. User is nil unless signed in.
type AuthState struct {
	Status     Status
	ResolvedAt *time.Time
	User       *model.User
}

// Resolver answers "who am I" for the current session cookie.
type Resolver interface {
	WhoAmI(ctx context.Context) (model.User, error)
}

// Resetter is anything holding per-identity state: mutation caches, open dialogs.
type Resetter interface {
	Reset()
}

type SessionOption func(*Session)

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// Session is the auth state machine. It leaves Unknown exactly once, through Resolve;
// afterwards only SignIn, SignOut and Expire move it, and each of those resets every
// registered Resetter before the new state is published.
type Session struct {
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time

	resolveMu sync.Mutex

	mu        sync.Mutex
	state     AuthState
	resetters []Resetter
	listeners map[int]func(AuthState)
	nextL     int
}

func NewSession(resolver Resolver, opts ...SessionOption) *Session {
	s := &Session{
		resolver:  resolver,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		state:     AuthState{Status: StatusUnknown},
		listeners: map[int]func(AuthState){},
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() Status { return s.State().Status }

// Register adds r to the set reset on every identity change.
func (s *Session) Register(r ...Resetter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetters = append(s.resetters, r...)
}

// OnChange calls fn after every state transition and returns a handle that removes it.
func (s *Session) OnChange(fn func(AuthState)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextL
	s.nextL++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Resolve runs the auth check once. Concurrent callers wait for the same result; later
// calls return the current state without asking again. Any failure of the check
// resolves to anonymous.
func (s *Session) Resolve(ctx context.Context) AuthState {
	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	if st := s.State(); st.Status.Resolved() {
		return st
	}

	next := AuthState{Status: StatusAnonymous}
	if s.resolver != nil {
		u, err := s.resolver.WhoAmI(ctx)
		switch {
		case err == nil:
			next = stateFor(u)
		case failure.IsAuth(err):
			s.logger.Debug("no session", "err", err)
		default:
			s.logger.Warn("auth check failed; continuing signed out", "err", err)
		}
	}

	// Transitions need a resolved state, so nothing else can have moved it while the
	// lookup ran.
	s.mu.Lock()
	at := s.now()
	next.ResolvedAt = &at
	s.state = next
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Debug("auth resolved", "status", next.Status)
	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// SignIn switches to u's identity.
func (s *Session) SignIn(u model.User) error {
	return s.transition(stateFor(u), false)
}

func (s *Session) SignOut() error {
	return s.transition(AuthState{Status: StatusAnonymous}, false)
}

// Expire drops a signed-in identity after the server rejected its session. It is a
// no-op while unknown or anonymous.
func (s *Session) Expire() {
	_ = s.transition(AuthState{Status: StatusAnonymous}, true)
}

// HandleAuthFailure is the mutation coordinator's auth failure hook. Unauthorized
// expires the session; Forbidden leaves it alone and lets the guard redirect.
func (s *Session) HandleAuthFailure(kind failure.Kind) {
	if kind == failure.KindUnauthorized {
		s.Expire()
	}
}

func (s *Session) transition(next AuthState, onlySignedIn bool) error {
	s.mu.Lock()
	cur := s.state.Status
	if !cur.Resolved() {
		s.mu.Unlock()
		if onlySignedIn {
			return nil
		}
		return ErrUnresolved
	}
	if onlySignedIn && !cur.SignedIn() {
		s.mu.Unlock()
		return nil
	}
	resetters := append([]Resetter(nil), s.resetters...)
	s.mu.Unlock()

	for _, r := range resetters {
		r.Reset()
	}

	s.mu.Lock()
	at := s.now()
	next.ResolvedAt = &at
	s.state = next
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Debug("auth changed", "from", cur, "to", next.Status)
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

func (s *Session) listenersLocked() []func(AuthState) {
	out := make([]func(AuthState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func stateFor(u model.User) AuthState {
	st := StatusUser
	if u.IsAdmin {
		st = StatusAdmin
	}
	return AuthState{Status: st, User: &u}
}
