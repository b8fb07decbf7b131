/*
Package chat contains the real-time chat subsystem.

This file defines Session, one authenticated WebSocket connection. A session
subscribes its customer's channel on the bus, reads frames in arrival order
(ReadPump) and owns every write to the connection (WritePump).
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"flipside/internal/app/pubsub"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/metrics"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the per-session outbound queue.
	sendQueueSize = 256

	// budget for unsubscribing on teardown, independent of the session context.
	unsubscribeTimeout = 5 * time.Second
)

// ReasonInvalidCredentials is sent before closing an unauthenticated connection.
const ReasonInvalidCredentials = "Invalid credentials"

// State is the lifecycle stage of a Session.
type State int32

const (
	StateConnecting State = iota
	StateAccepted
	StateSubscribed
	StateReceiving
	StateClosing
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAccepted:
		return "accepted"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Broker is the part of the pub/sub bus a session uses. *pubsub.Bus implements it.
type Broker interface {
	Subscribe(ctx context.Context, channel string, cb pubsub.Callback) (*pubsub.Subscription, error)
	Publish(ctx context.Context, channel, payload string) error
}

// ChannelName returns the bus channel of a customer for a channel type.
func ChannelName(channelType string, customerID int64) string {
	return fmt.Sprintf("ws_%s_%d", channelType, customerID)
}

// Session is a single accepted WebSocket connection of a customer.
type Session struct {
	// unique identifier, used in logs only.
	ID string

	// CustomerID is the authenticated principal.
	CustomerID int64

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// worker validates and persists inbound frames.
	worker Worker

	// bus carries records between sessions, possibly on other processes.
	bus Broker

	// channel is the bus channel this session listens on.
	channel string

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// done is closed when the write pump must stop.
	done     chan struct{}
	doneOnce sync.Once

	// writerDone is closed when the write pump has exited.
	writerDone chan struct{}

	state atomic.Int32

	// structured logger with session context.
	logger zerolog.Logger
}

func newSession(conn *websocket.Conn, customerID int64, worker Worker, bus Broker) *Session {
	id := uuid.NewString()
	channel := ChannelName(worker.ChannelType(), customerID)

	s := &Session{
		ID:         id,
		CustomerID: customerID,
		conn:       conn,
		worker:     worker,
		bus:        bus,
		channel:    channel,
		send:       make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		logger: logx.Logger().With().
			Str("session_id", id).
			Int64("customer_id", customerID).
			Str("channel", channel).
			Logger(),
	}
	s.setState(StateConnecting)
	return s
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// run drives the session until the connection ends. Teardown always runs.
func (s *Session) run(ctx context.Context) {
	s.setState(StateAccepted)

	var sub *pubsub.Subscription
	subscribed := false
	defer func() {
		s.teardown(subscribed, sub)
	}()

	sub, err := s.bus.Subscribe(ctx, s.channel, s.deliver)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to subscribe session channel")
		if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
			_ = s.conn.WriteMessage(websocket.TextMessage, []byte(ReasonInternalError))
		}
		return
	}
	subscribed = true
	s.setState(StateSubscribed)

	go s.WritePump()

	s.setState(StateReceiving)
	s.logger.Info().Msg("Chat session established")

	s.ReadPump(ctx)
}

// teardown releases the subscription, stops the write pump and closes the
// connection. A newer session of the same customer keeps the channel.
func (s *Session) teardown(subscribed bool, sub *pubsub.Subscription) {
	s.setState(StateClosing)

	if subscribed {
		// The session context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		if err := sub.Unsubscribe(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to unsubscribe session channel")
		}
		cancel()

		s.stopWriter()
		<-s.writerDone
	}

	if err := s.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.logger.Debug().Err(err).Msg("Connection close error")
	}

	s.setState(StateClosed)
	s.logger.Info().Msg("Chat session closed")
}

func (s *Session) stopWriter() {
	s.doneOnce.Do(func() { close(s.done) })
}

// deliver is the bus callback: payloads are forwarded verbatim.
func (s *Session) deliver(_ context.Context, payload string) {
	s.enqueue([]byte(payload))
}

// enqueue queues a frame without blocking. Frames for a stopped or saturated
// session are dropped.
func (s *Session) enqueue(frame []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.send <- frame:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send queue full, dropping frame")
	}
}

// ReadPump reads frames until the connection fails or the client leaves.
// Frames are handled one at a time, so the client's arrival order is kept.
func (s *Session) ReadPump(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			return
		}

		s.handleFrame(ctx, frame)
	}
}

// handleFrame validates, persists and fans out one inbound frame. Nothing here
// ends the session: errors are reported to the client as text frames.
func (s *Session) handleFrame(ctx context.Context, frame []byte) {
	in, err := s.worker.Validate(ctx, frame, s.CustomerID)
	if err != nil {
		var invalidFrame *ValidationError
		if errors.As(err, &invalidFrame) {
			metrics.ChatFramesRejected.Inc()
			s.logger.Debug().Str("reason", invalidFrame.Reason).Msg("Frame rejected")
			s.enqueue([]byte(invalidFrame.Reason))
			return
		}
		s.logger.Error().Err(err).Msg("Frame validation failed")
		s.enqueue([]byte(ReasonInternalError))
		return
	}

	record, err := s.worker.PersistAndEnrich(ctx, in)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist frame")
		s.enqueue([]byte(ReasonInternalError))
		return
	}

	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal record")
		s.enqueue([]byte(ReasonInternalError))
		return
	}

	s.enqueue(payload)

	// The message is stored, so an offline or unreachable recipient reads it from history.
	recipient := ChannelName(s.worker.ChannelType(), in.RecipientID)
	if err := s.bus.Publish(ctx, recipient, string(payload)); err != nil {
		s.logger.Warn().Err(err).Str("recipient_channel", recipient).Msg("Failed to publish record")
	}
}

// WritePump writes queued frames and keepalive pings. It is the only writer
// of data frames on the connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		close(s.writerDone)
	}()

	for {
		select {
		case frame := <-s.send:
			if !s.writeFrame(frame) {
				s.failWriter()
				return
			}

		case <-ticker.C:
			if !s.writePing() {
				s.failWriter()
				return
			}

		case <-s.done:
			s.drain()
			s.writeClose(websocket.CloseNormalClosure, "")
			return
		}
	}
}

// failWriter unblocks the reader after a write failure so teardown starts.
func (s *Session) failWriter() {
	s.stopWriter()
	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Connection close error in WritePump")
	}
}

// drain flushes frames queued before the session stopped.
func (s *Session) drain() {
	for {
		select {
		case frame := <-s.send:
			if !s.writeFrame(frame) {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) writeFrame(frame []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.logger.Debug().Err(err).Msg("Error writing frame")
		return false
	}
	return true
}

func (s *Session) writePing() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}
	return true
}

func (s *Session) writeClose(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) {
		s.logger.Debug().Err(err).Msg("Error writing close frame")
	}
}

// Close asks the client to leave. The read pump ends when the client answers
// or the grace period passes, and the regular teardown follows.
func (s *Session) Close(reason string) {
	s.writeClose(websocket.CloseGoingAway, reason)
	if err := s.conn.SetReadDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to shorten read deadline")
	}
}

// reject tells an unauthenticated client why and closes the connection.
func reject(conn *websocket.Conn, logger zerolog.Logger) {
	metrics.ChatSessionsRejected.Inc()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(ReasonInvalidCredentials)); err != nil {
			logger.Debug().Err(err).Msg("Error writing rejection")
		}
	}

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ReasonInvalidCredentials)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		logger.Debug().Err(err).Msg("Error writing rejection close frame")
	}

	if err := conn.Close(); err != nil {
		logger.Debug().Err(err).Msg("Connection close error")
	}
}
