package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/AlexYaroshenko/pricewatch/internal/store"
)

var ErrEmptyToken = errors.New("token must not be empty")

// UserProfile is the signed-in user as reported by the catalog service.
type UserProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	AvatarURL      string `json:"avatar_url"`
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
}

// Snapshot is an immutable view of the session at one point in time.
// Epoch changes whenever the token changes, including on logout.
type Snapshot struct {
	Token string
	User  *UserProfile
	Epoch uint64
}

func (s Snapshot) IsAuthenticated() bool { return s.Token != "" }

type Listener func(prev, next Snapshot)

// Store owns the bearer token and the derived authenticated state.
type Store struct {
	mu         sync.RWMutex
	token      string
	user       *UserProfile
	epoch      uint64
	backend    store.TokenStore
	persistent bool

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int

	log    *zap.Logger
	signIn func()
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithSignInNavigator registers the collaborator that brings the user back
// to the sign-in surface after a logout.
func WithSignInNavigator(fn func()) Option { return func(s *Store) { s.signIn = fn } }

func New(backend store.TokenStore, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		persistent: backend != nil,
		listeners:  make(map[int]Listener),
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Hydrate restores a previously persisted token. Storage failures degrade
// the store to memory-only mode instead of surfacing an error.
func (s *Store) Hydrate(ctx context.Context) {
	if !s.Persistent() {
		return
	}
	tok, err := s.backend.LoadToken(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.log.Debug("no persisted session")
		return
	case err != nil:
		s.degrade("load", err)
		return
	case tok == "":
		return
	}
	s.set(tok, true)
	s.log.Info("session restored from storage")
}

// Login installs token and persists it. Calling it again with the current
// token does nothing.
func (s *Store) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.RLock()
	same := s.token == token
	s.mu.RUnlock()
	if same {
		return nil
	}
	if s.Persistent() {
		if err := s.backend.SaveToken(ctx, token); err != nil {
			s.degrade("save", err)
		}
	}
	s.set(token, true)
	s.log.Info("signed in")
	return nil
}

// Logout drops the token and user and sends the user to sign-in.
// A logout forced by an authorization failure goes through the same path.
// The backend is cleared even after degrading to memory-only, since an
// earlier token may still be stored there.
func (s *Store) Logout(ctx context.Context) {
	if s.backend != nil {
		if err := s.backend.ClearToken(ctx); err != nil {
			s.log.Warn("failed to clear persisted token", zap.Error(err))
		}
	}
	s.set("", false)
	s.log.Info("signed out")
	if s.signIn != nil {
		s.signIn()
	}
}

func (s *Store) set(token string, authenticated bool) {
	s.mu.Lock()
	prev := s.snapshotLocked()
	if !authenticated {
		token = ""
	}
	if prev.Token == token {
		s.mu.Unlock()
		return
	}
	s.token = token
	s.user = nil
	s.epoch++
	next := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(prev, next)
}

// SetProfile attaches the fetched profile, but only if the session has not
// changed since the fetch was issued.
func (s *Store) SetProfile(epoch uint64, p UserProfile) bool {
	s.mu.Lock()
	if s.epoch != epoch || s.token == "" {
		s.mu.Unlock()
		return false
	}
	prev := s.snapshotLocked()
	s.user = &p
	next := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(prev, next)
	return true
}

func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	var u *UserProfile
	if s.user != nil {
		cp := *s.user
		u = &cp
	}
	return Snapshot{Token: s.token, User: u, Epoch: s.epoch}
}

// AuthHeader is computed from the current token on every call.
func (s *Store) AuthHeader() http.Header {
	h := http.Header{}
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

// Persistent reports whether the session survives a restart.
func (s *Store) Persistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistent
}

func (s *Store) degrade(op string, err error) {
	s.mu.Lock()
	s.persistent = false
	s.mu.Unlock()
	s.log.Warn("token storage unavailable, session kept in memory only",
		zap.String("op", op), zap.Error(err))
}

// Subscribe registers l for every state change. Listeners run on the
// goroutine that caused the change, after internal locks are released.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(prev, next Snapshot) {
	s.lmu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.lmu.Unlock()
	for _, l := range ls {
		l(prev, next)
	}
}
