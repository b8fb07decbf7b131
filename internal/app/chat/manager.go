/*
Package chat contains the real-time chat subsystem.

This file defines the Manager struct, which accepts WebSocket connections,
tracks every live Session and closes them all on shutdown.
*/
package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/metrics"
)

// ErrManagerClosed is returned by Serve after Shutdown.
var ErrManagerClosed = errors.New("chat: manager closed")

// Manager coordinates the chat sessions of this process.
type Manager struct {
	worker Worker
	bus    Broker

	// ctx is the parent of every session context, cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// mu protects sessions and closed.
	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool

	// wg tracks running sessions.
	wg sync.WaitGroup

	// structured logger with Manager context.
	logger zerolog.Logger
}

func NewManager(worker Worker, bus Broker) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		worker:   worker,
		bus:      bus,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[*Session]struct{}),
		logger:   logx.Component("chat_manager"),
	}
}

// Serve runs the session of an upgraded connection and returns when it ends.
// A zero customerID means the handshake carried no usable credential: the
// client is told "Invalid credentials" and the connection is closed.
func (m *Manager) Serve(conn *websocket.Conn, customerID int64) (State, error) {
	if customerID == 0 {
		reject(conn, m.logger)
		return StateRejected, nil
	}

	s := newSession(conn, customerID, m.worker, m.bus)
	if !m.track(s) {
		s.writeClose(websocket.CloseGoingAway, "server shutting down")
		_ = conn.Close()
		return StateClosed, ErrManagerClosed
	}
	defer m.untrack(s)

	s.run(m.ctx)
	return s.State(), nil
}

func (m *Manager) track(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.sessions[s] = struct{}{}
	m.wg.Add(1)
	metrics.ChatSessionsActive.Inc()
	return true
}

func (m *Manager) untrack(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()

	metrics.ChatSessionsActive.Dec()
	m.wg.Done()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every session and waits for their teardown, or for ctx.
// The bus must be shut down after the manager so sessions can unsubscribe.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	m.logger.Info().Int("sessions", len(sessions)).Msg("Shutting down chat sessions...")

	for _, s := range sessions {
		s.Close("server shutting down")
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Chat manager shutdown complete.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
