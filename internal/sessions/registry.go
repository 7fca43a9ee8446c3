package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/identity"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// Session is one cart session: an identity hub and the cart store bound to it.
type Session struct {
	ID    string
	Hub   *identity.Hub
	Store *cart.Store

	// reqMu is held by a request from its identity switch until its cart
	// operation has returned.
	reqMu sync.Mutex

	unbind   func()
	lastSeen time.Time
	inflight int // guarded by Registry.mu
}

// Lock claims the session for one request. The identity set on the hub
// stays in effect for the store until Unlock.
func (s *Session) Lock() { s.reqMu.Lock() }

func (s *Session) Unlock() { s.reqMu.Unlock() }

// StoreFactory builds the cart store for a new session.
type StoreFactory func() (*cart.Store, error)

type gauge interface {
	SetActiveSessions(n int)
}

type jobRecorder interface {
	ObserveDuration(job string, d time.Duration)
	IncSuccess(job string)
}

type Params struct {
	NewStore StoreFactory
	IdleTTL  time.Duration
	Logger   *logger.Logger
	Gauge    gauge
	Jobs     jobRecorder
	Now      func() time.Time
}

const sweepJob = "cart_session_sweep"

// Registry maps session ids to live sessions and evicts idle ones.
type Registry struct {
	newStore StoreFactory
	idleTTL  time.Duration
	logg     *logger.Logger
	gauge    gauge
	jobs     jobRecorder
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(params Params) (*Registry, error) {
	if params.NewStore == nil {
		return nil, fmt.Errorf("store factory required")
	}
	if params.IdleTTL <= 0 {
		return nil, fmt.Errorf("session idle ttl must be positive")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		newStore: params.NewStore,
		idleTTL:  params.IdleTTL,
		logg:     logg,
		gauge:    params.Gauge,
		jobs:     params.Jobs,
		now:      now,
		sessions: make(map[string]*Session),
	}, nil
}

// Get returns the session for id, creating and binding it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(ctx, id)
}

// Acquire is Get for a request in flight. The session is not swept until the
// matching Release.
func (r *Registry) Acquire(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, err := r.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.inflight++
	return sess, nil
}

// Release ends a request started with Acquire and marks the session active.
func (r *Registry) Release(sess *Session) {
	if sess == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess.inflight > 0 {
		sess.inflight--
	}
	sess.lastSeen = r.now()
}

func (r *Registry) getLocked(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("session id required")
	}

	if sess, ok := r.sessions[id]; ok {
		sess.lastSeen = r.now()
		return sess, nil
	}

	store, err := r.newStore()
	if err != nil {
		return nil, fmt.Errorf("build cart store: %w", err)
	}
	hub := identity.NewHub()
	sess := &Session{
		ID:       id,
		Hub:      hub,
		Store:    store,
		unbind:   store.Bind(hub),
		lastSeen: r.now(),
	}
	r.sessions[id] = sess
	r.reportSize()
	r.logg.Info(r.logg.WithSessionID(ctx, id), "cart session opened")
	return sess, nil
}

// Sweep drops sessions idle since before now minus the idle ttl and returns
// how many were removed. Sessions with requests in flight are kept. Persisted
// carts are left alone.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	started := r.now()
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var expired []*Session
	for id, sess := range r.sessions {
		if sess.inflight == 0 && sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.reportSize()
	r.mu.Unlock()

	for _, sess := range expired {
		sess.unbind()
	}
	if len(expired) > 0 {
		r.logg.Info(r.logg.WithField(ctx, "expired_sessions", len(expired)), "cart sessions swept")
	}
	if r.jobs != nil {
		r.jobs.ObserveDuration(sweepJob, r.now().Sub(started))
		r.jobs.IncSuccess(sweepJob)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx, r.now())
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) reportSize() {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(len(r.sessions))
	}
}
