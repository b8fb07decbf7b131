package pubsub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/metrics"
)

// Callback receives the payload of a message published on a subscribed channel.
// It runs on the listener goroutine and must not call Subscribe, Unsubscribe or
// Shutdown, on the Bus or on a Subscription.
type Callback func(ctx context.Context, payload string)

// Subscription is the registration returned by Subscribe. It only owns its
// channel until a later Subscribe on the same channel replaces it.
type Subscription struct {
	bus     *Bus
	channel string
	id      uint64
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string {
	if s == nil {
		return ""
	}
	return s.channel
}

// Unsubscribe releases the subscription. It is a no-op once the channel has
// been replaced by a newer Subscribe or dropped by Bus.Unsubscribe.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	if s == nil || s.bus == nil {
		return nil
	}
	return s.bus.release(ctx, s.channel, s.id)
}

type registration struct {
	id uint64
	cb Callback
}

// Options tunes a Bus.
type Options struct {
	// ReconnectDelay is the pause between a failed operation and its single retry.
	ReconnectDelay time.Duration
}

// Bus maps channel names to local callbacks over a Transport.
type Bus struct {
	transport Transport
	opts      Options

	// lifecycleMu serializes Subscribe, Unsubscribe and Shutdown, so the
	// "first subscriber starts the listener" and "last subscriber stops it"
	// decisions are never interleaved.
	lifecycleMu sync.Mutex
	nextID      uint64

	// mu guards callbacks. The listener only takes it for reading.
	mu        sync.RWMutex
	callbacks map[string]registration

	// connMu guards connected.
	connMu    sync.Mutex
	connected bool

	closed atomic.Bool

	// listener state, guarded by lifecycleMu.
	listenerCancel context.CancelFunc
	listenerDone   chan struct{}

	logger zerolog.Logger
}

// New creates a Bus over transport. The transport is connected on first use or by Connect.
func New(transport Transport, opts Options) *Bus {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 50 * time.Millisecond
	}
	return &Bus{
		transport: transport,
		opts:      opts,
		callbacks: make(map[string]registration),
		logger:    logx.Component("pubsub"),
	}
}

// Connect connects the transport if it is not connected yet.
func (b *Bus) Connect(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.connected {
		return nil
	}
	if err := b.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	b.connected = true
	return nil
}

// Subscribe registers cb for channel, replacing any previous callback, and
// starts the listener if it is not running.
func (b *Bus) Subscribe(ctx context.Context, channel string, cb Callback) (*Subscription, error) {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if err := b.Connect(ctx); err != nil {
		return nil, err
	}

	err := b.withReconnect(ctx, "subscribe", func() error {
		return b.transport.Subscribe(ctx, channel)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	b.nextID++
	sub := &Subscription{bus: b, channel: channel, id: b.nextID}

	b.mu.Lock()
	b.callbacks[channel] = registration{id: sub.id, cb: cb}
	active := len(b.callbacks)
	b.mu.Unlock()

	metrics.BusSubscriptions.Set(float64(active))

	if !b.listenerRunning() {
		b.startListener()
	}

	b.logger.Debug().Str("channel", channel).Int("active", active).Msg("Subscribed")
	return sub, nil
}

// Unsubscribe removes the callback and transport subscription of channel,
// whichever Subscription holds it. When it was the last one, the listener is
// stopped and Unsubscribe waits for it to exit.
func (b *Bus) Unsubscribe(ctx context.Context, channel string) error {
	return b.release(ctx, channel, 0)
}

// release drops channel if it is still held by id. An id of 0 matches any holder.
func (b *Bus) release(ctx context.Context, channel string, id uint64) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	b.mu.Lock()
	reg, ok := b.callbacks[channel]
	if ok && id != 0 && reg.id != id {
		ok = false
	}
	if ok {
		delete(b.callbacks, channel)
	}
	remaining := len(b.callbacks)
	b.mu.Unlock()

	if !ok {
		return nil
	}

	metrics.BusSubscriptions.Set(float64(remaining))

	err := b.transport.Unsubscribe(ctx, channel)
	if err != nil {
		b.logger.Warn().Err(err).Str("channel", channel).Msg("Transport unsubscribe failed")
	}

	if remaining == 0 {
		if stopErr := b.stopListener(ctx); stopErr != nil {
			return stopErr
		}
	}

	b.logger.Debug().Str("channel", channel).Int("active", remaining).Msg("Unsubscribed")
	return err
}

// Publish sends payload on channel. Delivery is best effort and at most once.
func (b *Bus) Publish(ctx context.Context, channel, payload string) error {
	if err := b.Connect(ctx); err != nil {
		metrics.BusPublishes.WithLabelValues("error").Inc()
		return err
	}

	err := b.withReconnect(ctx, "publish", func() error {
		return b.transport.Publish(ctx, channel, payload)
	})
	if err != nil {
		metrics.BusPublishes.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", channel, err)
	}

	metrics.BusPublishes.WithLabelValues("ok").Inc()
	return nil
}

// Channels returns the subscribed channel names, sorted.
func (b *Bus) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channels := make([]string, 0, len(b.callbacks))
	for ch := range b.callbacks {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// Shutdown stops the listener, drops every subscription and closes the transport.
func (b *Bus) Shutdown(ctx context.Context) error {
	if b.closed.Swap(true) {
		return nil
	}

	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if err := b.stopListener(ctx); err != nil {
		b.logger.Warn().Err(err).Msg("Listener did not stop before shutdown deadline")
	}

	channels := b.Channels()
	b.mu.Lock()
	clear(b.callbacks)
	b.mu.Unlock()
	metrics.BusSubscriptions.Set(0)

	b.connMu.Lock()
	connected := b.connected
	b.connMu.Unlock()

	if !connected {
		return nil
	}

	if len(channels) > 0 {
		if err := b.transport.Unsubscribe(ctx, channels...); err != nil {
			b.logger.Warn().Err(err).Int("channels", len(channels)).Msg("Transport unsubscribe on shutdown failed")
		}
	}

	if err := b.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	b.logger.Info().Msg("Bus shut down")
	return nil
}

// withReconnect runs op once. If it fails, the transport is reconnected with the
// active channels and op is retried exactly once.
func (b *Bus) withReconnect(ctx context.Context, name string, op func() error) error {
	attempt := 0
	retry := func() error {
		attempt++
		if attempt > 1 {
			b.logger.Warn().Str("op", name).Msg("Transport error, reconnecting")
			if err := b.transport.Reconnect(ctx, b.Channels()); err != nil {
				return backoff.Permanent(fmt.Errorf("reconnect: %w", err))
			}
		}
		return op()
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.opts.ReconnectDelay), 1),
		ctx,
	)
	return backoff.Retry(retry, policy)
}

// listenerRunning reports whether a listener goroutine is alive. Callers hold lifecycleMu.
func (b *Bus) listenerRunning() bool {
	if b.listenerDone == nil {
		return false
	}
	select {
	case <-b.listenerDone:
		return false
	default:
		return true
	}
}

// startListener launches the listener goroutine. Callers hold lifecycleMu.
func (b *Bus) startListener() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.listenerCancel = cancel
	b.listenerDone = done

	go b.listen(ctx, done)
}

// stopListener cancels the listener and waits for it to exit. Callers hold lifecycleMu.
func (b *Bus) stopListener(ctx context.Context) error {
	if b.listenerDone == nil {
		return nil
	}

	b.listenerCancel()
	done := b.listenerDone

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for listener: %w", ctx.Err())
	}

	b.listenerCancel = nil
	b.listenerDone = nil
	return nil
}

func (b *Bus) listen(ctx context.Context, done chan struct{}) {
	defer close(done)

	b.logger.Debug().Msg("Listener started")
	defer b.logger.Debug().Msg("Listener stopped")

	messages := b.transport.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			b.mu.RLock()
			reg, ok := b.callbacks[msg.Channel]
			b.mu.RUnlock()

			if !ok || reg.cb == nil {
				continue
			}

			metrics.BusDeliveries.Inc()
			reg.cb(ctx, msg.Payload)
		}
	}
}
