// Package session holds the gateway's single live store connection and the
// logical database selected with it.
//
// A Manager is either disconnected (no client, no database) or connected
// (both set); there is no partial state. Every data operation goes through
// WithActive, which fails fast with ErrNotConnected when disconnected and
// holds the session lock for the duration of the store call so the
// connection cannot be replaced underneath it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoCodeAlone/mongo-mcp/store"
)

// ErrNotConnected is returned when a data operation runs without a session.
var ErrNotConnected = errors.New("session: not connected")

// Status is a snapshot of the session, safe to expose to callers.
type Status struct {
	Connected bool      `json:"connected"`
	Database  string    `json:"database,omitempty"`
	Target    string    `json:"target,omitempty"`
	Since     time.Time `json:"since,omitzero"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for session lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithStateHook registers fn to be called, under the session lock, after
// every transition between connected and disconnected or between two
// connected sessions.
func WithStateHook(fn func(Status)) Option {
	return func(m *Manager) { m.hook = fn }
}

// Manager owns at most one connected store client.
type Manager struct {
	dialer store.Dialer
	logger *slog.Logger
	hook   func(Status)

	mu       sync.Mutex
	client   store.Client
	database string
	target   string
	since    time.Time
}

// NewManager creates a disconnected Manager that opens clients with dialer.
func NewManager(dialer store.Dialer, opts ...Option) *Manager {
	m := &Manager{
		dialer: dialer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire connects to uri, verifies the store answers a ping and makes the
// new client the active session for database. A previously active client
// is closed once the new one is verified. On failure the previous session,
// if any, is left exactly as it was.
func (m *Manager) Acquire(ctx context.Context, uri, database string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, err := m.dialer.Dial(ctx, uri)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		if cerr := client.Close(ctx); cerr != nil {
			m.logger.Debug("close after failed ping", "err", cerr)
		}
		return fmt.Errorf("ping: %w", err)
	}

	prev, prevDB := m.client, m.database
	m.client = client
	m.database = database
	m.target = store.RedactURI(uri)
	m.since = time.Now()

	if prev != nil {
		if err := prev.Close(ctx); err != nil {
			m.logger.Warn("closing replaced session failed", "database", prevDB, "err", err)
		}
		m.logger.Info("session replaced", "previous_database", prevDB, "database", database, "target", m.target)
	} else {
		m.logger.Info("session established", "database", database, "target", m.target)
	}
	m.notify()
	return nil
}

// Release closes the active client, if any, and clears the session. It
// reports whether a session was active. The session is cleared even when
// closing the client fails; the close error is returned for logging.
func (m *Manager) Release(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return false, nil
	}
	err := m.dropLocked(ctx)
	m.logger.Info("session released")
	return true, err
}

// RequireActive returns the active client and database name, or
// ErrNotConnected.
func (m *Manager) RequireActive() (store.Client, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, "", ErrNotConnected
	}
	return m.client, m.database, nil
}

// WithActive runs fn with the active client while holding the session
// lock. If fn fails because the connection is gone, the session is dropped
// before returning so the next call reports ErrNotConnected.
func (m *Manager) WithActive(ctx context.Context, fn func(client store.Client, database string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return ErrNotConnected
	}

	err := fn(m.client, m.database)
	if store.IsConnectionLost(err) {
		m.logger.Warn("connection lost, releasing session", "database", m.database, "err", err)
		if cerr := m.dropLocked(ctx); cerr != nil {
			m.logger.Debug("close after connection loss", "err", cerr)
		}
	}
	return err
}

// Status returns a snapshot of the session.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	if m.client == nil {
		return Status{}
	}
	return Status{
		Connected: true,
		Database:  m.database,
		Target:    m.target,
		Since:     m.since,
	}
}

func (m *Manager) dropLocked(ctx context.Context) error {
	client := m.client
	m.client = nil
	m.database = ""
	m.target = ""
	m.since = time.Time{}
	m.notify()
	// The caller's context may already be done; the handle is closed regardless.
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return client.Close(closeCtx)
}

func (m *Manager) notify() {
	if m.hook != nil {
		m.hook(m.statusLocked())
	}
}
