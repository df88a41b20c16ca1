package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cookie is one browser cookie. The JSON shape matches what headless
// Chrome tooling exports so existing session files load unchanged.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionState is the lifecycle state of a session.
type SessionState int

const (
	SessionAbsent SessionState = iota
	SessionUntested
	SessionVerified
)

func (s SessionState) String() string {
	switch s {
	case SessionUntested:
		return "untested"
	case SessionVerified:
		return "verified"
	default:
		return "absent"
	}
}

// Session is a captured set of authentication cookies. A nil *Session is an
// absent session.
type Session struct {
	Cookies   []Cookie
	CreatedAt time.Time

	verified bool
}

// NewSession captures cookies with the current time, truncated to the
// millisecond precision the session file stores.
func NewSession(cookies []Cookie) *Session {
	return &Session{
		Cookies:   cookies,
		CreatedAt: time.UnixMilli(time.Now().UnixMilli()),
	}
}

// State reports whether the session is absent, untested or verified.
func (s *Session) State() SessionState {
	switch {
	case s == nil:
		return SessionAbsent
	case s.verified:
		return SessionVerified
	default:
		return SessionUntested
	}
}

// markVerified is called only by Navigator.VerifySession.
func (s *Session) markVerified() { s.verified = true }

func (s *Session) wellFormed() bool {
	if s == nil || len(s.Cookies) == 0 {
		return false
	}
	for _, c := range s.Cookies {
		if c.Name == "" {
			return false
		}
	}
	return true
}

type sessionFile struct {
	Cookies   []Cookie `json:"cookies"`
	Timestamp int64    `json:"timestamp"`
}

// LoginFlow drives an interactive login and returns the captured cookies.
type LoginFlow interface {
	Login(ctx context.Context) ([]Cookie, error)
}

// LoginFlowFunc adapts a function to LoginFlow.
type LoginFlowFunc func(ctx context.Context) ([]Cookie, error)

func (f LoginFlowFunc) Login(ctx context.Context) ([]Cookie, error) { return f(ctx) }

// SessionStore persists one session blob. Reads are lock-free because
// writes replace the file atomically; interactive creation is serialized
// within the process and across processes.
type SessionStore struct {
	path   string
	lock   *flock.Flock
	group  singleflight.Group
	logger *zap.Logger

	mu    sync.Mutex
	login *loginCall
}

// loginCall is the context shared by every caller waiting on one
// interactive login. It is canceled once the last of them gives up.
type loginCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewSessionStore returns a store backed by the file at path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the store's logger.
func (st *SessionStore) WithLogger(l *zap.Logger) *SessionStore {
	st.logger = l
	return st
}

// Path returns the session file location.
func (st *SessionStore) Path() string { return st.path }

// HasValid reports whether a well-formed session blob exists. It does not
// verify the session against the live site.
func (st *SessionStore) HasValid() bool {
	_, err := st.Load()
	return err == nil
}

// Load reads the session blob. It fails with ErrSessionMissing when there is
// no blob and ErrSessionInvalid when the blob cannot be decoded.
func (st *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionMissing, st.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	s, err := decodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSessionInvalid, st.path, err)
	}
	return s, nil
}

func decodeSession(data []byte) (*Session, error) {
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		// Older files hold a bare cookie array.
		var cookies []Cookie
		if err2 := json.Unmarshal(data, &cookies); err2 != nil {
			return nil, err
		}
		f = sessionFile{Cookies: cookies}
	}

	s := &Session{Cookies: f.Cookies}
	if f.Timestamp > 0 {
		s.CreatedAt = time.UnixMilli(f.Timestamp)
	}
	if !s.wellFormed() {
		return nil, errors.New("no usable cookies")
	}
	return s, nil
}

// Save writes the session atomically with owner-only permissions.
func (st *SessionStore) Save(s *Session) error {
	if !s.wellFormed() {
		return fmt.Errorf("save session: %w: no usable cookies", ErrSessionInvalid)
	}
	data, err := json.MarshalIndent(sessionFile{
		Cookies:   s.Cookies,
		Timestamp: s.CreatedAt.UnixMilli(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := renameio.WriteFile(st.path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Invalidate removes the session blob. A missing blob is not an error.
func (st *SessionStore) Invalidate() error {
	err := os.Remove(st.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	st.logger.Info("session invalidated", zap.String("path", st.path))
	return nil
}

// CreateInteractive runs flow and persists the cookies it returns. The flow
// typically blocks on a human, so no timeout is applied here; cancel ctx to
// abort. Concurrent callers share a single flow, which keeps running while
// any of them still waits, and a session saved by another process while
// waiting for the lock is returned as is.
func (st *SessionStore) CreateInteractive(ctx context.Context, flow LoginFlow) (*Session, error) {
	started := time.UnixMilli(time.Now().UnixMilli())
	call := st.joinLogin(ctx)
	defer st.leaveLogin(call)

	ch := st.group.DoChan(st.path, func() (any, error) {
		return st.createLocked(call.ctx, flow, started)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			st.logger.Debug("joined in-flight login", zap.String("path", st.path))
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("interactive login: %w", ctx.Err())
	}
}

func (st *SessionStore) joinLogin(ctx context.Context) *loginCall {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.login == nil {
		lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		st.login = &loginCall{ctx: lctx, cancel: cancel}
	}
	st.login.waiters++
	return st.login
}

func (st *SessionStore) leaveLogin(call *loginCall) {
	st.mu.Lock()
	defer st.mu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if st.login == call {
		st.login = nil
	}
}

func (st *SessionStore) createLocked(ctx context.Context, flow LoginFlow, started time.Time) (*Session, error) {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	ok, err := st.lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock session file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("lock session file: %w", ctx.Err())
	}
	defer func() {
		if err := st.lock.Unlock(); err != nil {
			st.logger.Warn("unlock session file", zap.Error(err))
		}
	}()

	if s, err := st.Load(); err == nil && !s.CreatedAt.Before(started) {
		st.logger.Info("session created by another login", zap.Time("created_at", s.CreatedAt))
		return s, nil
	}

	st.logger.Info("starting interactive login", zap.String("path", st.path))
	cookies, err := flow.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("interactive login: %w", err)
	}

	s := NewSession(cookies)
	if err := st.Save(s); err != nil {
		return nil, err
	}
	st.logger.Info("session saved", zap.String("path", st.path), zap.Int("cookies", len(cookies)))
	return s, nil
}
