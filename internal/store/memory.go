package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/observability"
)

var (
	// ErrNotFound is returned when a session or preference record does not exist.
	ErrNotFound = errors.New("not found")
)

// Session is one widget instance with its own running controller.
type Session struct {
	ID         string
	Profile    string
	CreatedAt  time.Time
	Controller *controller.Controller

	cancel context.CancelFunc
}

// stop cancels the controller without waiting for it.
func (s *Session) stop() {
	s.cancel()
}

// SessionStore is a concurrency-safe in-memory registry of sessions.
// Sessions idle for longer than the TTL are evicted by Sweep; eviction stops
// their controller. Every lookup extends the TTL.
type SessionStore struct {
	mu sync.Mutex
	// renew orders TTL renewal against removal, so a removed session is
	// never reinserted.
	renew sync.Mutex

	items   *cache.Cache
	metrics *observability.Metrics
	logger  *zap.Logger

	// stopped controllers not yet waited for
	stopping []*controller.Controller
}

// NewSessionStore creates a SessionStore. A non-positive ttl disables expiry.
func NewSessionStore(ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SessionStore{
		// Expired sessions are removed by Sweep, so no janitor goroutine.
		items:   cache.New(ttl, 0),
		metrics: metrics,
		logger:  logger,
	}
	s.items.OnEvicted(s.evicted)
	return s
}

func (s *SessionStore) evicted(id string, v interface{}) {
	sess, ok := v.(*Session)
	if !ok {
		return
	}
	sess.stop()

	s.mu.Lock()
	s.stopping = append(s.stopping, sess.Controller)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(s.items.ItemCount())
	s.logger.Info("session closed", zap.String("session", id), zap.String("profile", sess.Profile))
}

// Create starts ctrl under a new session id. The controller runs until the
// session is deleted or evicted, or parent is cancelled.
func (s *SessionStore) Create(parent context.Context, profile string, ctrl *controller.Controller) *Session {
	ctx, cancel := context.WithCancel(parent)
	sess := &Session{
		ID:         uuid.NewString(),
		Profile:    profile,
		CreatedAt:  time.Now().UTC(),
		Controller: ctrl,
		cancel:     cancel,
	}
	ctrl.Start(ctx)

	s.items.Set(sess.ID, sess, cache.DefaultExpiration)
	s.metrics.SetActiveSessions(s.items.ItemCount())
	s.logger.Info("session created", zap.String("session", sess.ID), zap.String("profile", profile))
	return sess
}

// Get returns the session and extends its TTL.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.renew.Lock()
	defer s.renew.Unlock()

	v, ok := s.items.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	s.items.Set(id, v, cache.DefaultExpiration)
	return v.(*Session), nil
}

// Touch extends the TTL of a session. It reports whether the session exists.
func (s *SessionStore) Touch(id string) bool {
	_, err := s.Get(id)
	return err == nil
}

// Delete stops and removes a session.
func (s *SessionStore) Delete(id string) error {
	s.renew.Lock()
	defer s.renew.Unlock()

	if _, ok := s.items.Get(id); !ok {
		return ErrNotFound
	}
	s.items.Delete(id)
	return nil
}

// Each calls fn for every live session.
func (s *SessionStore) Each(fn func(*Session)) {
	for _, item := range s.items.Items() {
		if sess, ok := item.Object.(*Session); ok {
			fn(sess)
		}
	}
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.items.ItemCount()
}

// Sweep evicts expired sessions and reaps stopped controllers.
func (s *SessionStore) Sweep() {
	s.renew.Lock()
	s.items.DeleteExpired()
	s.renew.Unlock()
	s.reap()
}

// Close stops every session and waits for their controllers to exit.
func (s *SessionStore) Close() {
	s.renew.Lock()
	for id := range s.items.Items() {
		s.items.Delete(id)
	}
	s.items.DeleteExpired()
	s.renew.Unlock()
	s.reap()
}

func (s *SessionStore) reap() {
	s.mu.Lock()
	stopping := s.stopping
	s.stopping = nil
	s.mu.Unlock()

	for _, ctrl := range stopping {
		ctrl.Wait()
	}
}
