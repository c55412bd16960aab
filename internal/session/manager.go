// Package session maps chat threads to backend cascades.
//
// A thread has at most one cascade at a time. Bindings live in memory only: after
// a restart the first message in an old thread finds no binding, and the manager
// silently starts a new cascade for it (a "rebind"). Rebinds are counted and
// audited so they can be observed, but the user sees no difference.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"cascadebridge/internal/cascade"
	"cascadebridge/internal/logging"

	"golang.org/x/sync/singleflight"
)

// Backend is the part of the cascade client the manager drives.
type Backend interface {
	StartCascade(ctx context.Context) (string, error)
	SendUserMessage(ctx context.Context, cascadeID string, items []cascade.Item, model string) error
}

// Resolution says how a thread got its cascade.
type Resolution int

const (
	// Created means the bridge bound a cascade to a thread it just opened.
	Created Resolution = iota
	// Resumed means an existing binding was reused.
	Resumed
	// Rebound means the thread had no binding and a new cascade was started.
	Rebound
)

func (r Resolution) String() string {
	switch r {
	case Created:
		return "created"
	case Resumed:
		return "resumed"
	case Rebound:
		return "rebound"
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// Stats counts resolutions since the manager was created.
type Stats struct {
	Active  int
	Created int64
	Resumed int64
	Rebound int64
}

// Manager owns the thread to cascade bindings.
type Manager struct {
	backend Backend

	mu       sync.Mutex
	bindings map[string]string

	// creation is serialized per thread key
	group singleflight.Group

	created atomic.Int64
	resumed atomic.Int64
	rebound atomic.Int64
}

// NewManager returns an empty manager.
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:  backend,
		bindings: make(map[string]string),
	}
}

// StartSession starts an unbound cascade.
func (m *Manager) StartSession(ctx context.Context) (string, error) {
	id, err := m.backend.StartCascade(ctx)
	if err != nil {
		logging.SessionWarn("start cascade failed: %v", err)
		return "", err
	}
	return id, nil
}

// Bind binds a thread the bridge just opened to cascadeID. It shares the
// per-thread critical section with ResolveForThread, so a message that reached
// the thread first keeps the cascade it already got: in that case the existing
// id is returned and ok is false.
func (m *Manager) Bind(threadID, cascadeID string) (id string, ok bool) {
	v, _, _ := m.group.Do(threadID, func() (interface{}, error) {
		m.mu.Lock()
		if existing, found := m.bindings[threadID]; found {
			m.mu.Unlock()
			return resolved{id: existing, res: Resumed}, nil
		}
		m.bindings[threadID] = cascadeID
		m.mu.Unlock()

		m.created.Add(1)
		logging.Session("thread %s bound to cascade %s", threadID, cascadeID)
		logging.AuditWithCascade(cascadeID).SessionStart(threadID)
		return resolved{id: cascadeID, res: Created}, nil
	})
	r := v.(resolved)
	if r.id != cascadeID {
		logging.SessionWarn("thread %s already runs cascade %s, %s left unbound", threadID, r.id, cascadeID)
		return r.id, false
	}
	return r.id, r.res == Created
}

// Lookup returns the cascade bound to threadID.
func (m *Manager) Lookup(threadID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bindings[threadID]
	return id, ok
}

type resolved struct {
	id  string
	res Resolution
}

// ResolveForThread returns the thread's cascade, starting and binding a new one
// when none is bound. Concurrent calls for the same thread start at most one cascade.
func (m *Manager) ResolveForThread(ctx context.Context, threadID string) (string, Resolution, error) {
	if id, ok := m.Lookup(threadID); ok {
		m.resumed.Add(1)
		logging.SessionDebug("resuming cascade %s in thread %s", id, threadID)
		return id, Resumed, nil
	}

	v, err, _ := m.group.Do(threadID, func() (interface{}, error) {
		// A concurrent Bind may have landed between Lookup and Do.
		if id, ok := m.Lookup(threadID); ok {
			return resolved{id: id, res: Resumed}, nil
		}
		id, err := m.StartSession(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.bindings[threadID] = id
		m.mu.Unlock()

		m.rebound.Add(1)
		logging.SessionWarn("thread %s had no cascade binding, started %s", threadID, id)
		logging.AuditWithCascade(id).SessionRebind(threadID)
		return resolved{id: id, res: Rebound}, nil
	})
	if err != nil {
		return "", Rebound, err
	}
	r := v.(resolved)
	if r.res != Rebound {
		// Joined a Bind, or found a binding inside the critical section.
		m.resumed.Add(1)
		return r.id, Resumed, nil
	}
	return r.id, r.res, nil
}

// SendTurn delivers one user turn into cascadeID.
func (m *Manager) SendTurn(ctx context.Context, cascadeID string, items []cascade.Item, model string) error {
	logging.SessionDebug("sending %d item(s) to cascade %s model=%s", len(items), cascadeID, model)
	return m.backend.SendUserMessage(ctx, cascadeID, items, model)
}

// Forget drops threadID's binding and reports whether there was one.
func (m *Manager) Forget(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bindings[threadID]
	delete(m.bindings, threadID)
	if ok {
		logging.Session("forgot binding for thread %s", threadID)
	}
	return ok
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	active := len(m.bindings)
	m.mu.Unlock()
	return Stats{
		Active:  active,
		Created: m.created.Load(),
		Resumed: m.resumed.Load(),
		Rebound: m.rebound.Load(),
	}
}
