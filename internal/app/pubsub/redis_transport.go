package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const messageBuffer = 256

// RedisTransport implements Transport with Redis PUBLISH/SUBSCRIBE.
// Every subscription shares one go-redis PubSub connection.
type RedisTransport struct {
	client *redis.Client
	out    chan Message

	// mu guards ps, stop and closed.
	mu     sync.Mutex
	ps     *redis.PubSub
	stop   chan struct{}
	closed bool

	// wg tracks the forwarding goroutines.
	wg sync.WaitGroup
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{
		client: client,
		out:    make(chan Message, messageBuffer),
	}
}

func (t *RedisTransport) Connect(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.ps == nil {
		t.attach(t.client.Subscribe(ctx))
	}
	return nil
}

// attach starts forwarding ps messages to out. Callers hold mu.
func (t *RedisTransport) attach(ps *redis.PubSub) {
	stop := make(chan struct{})
	t.ps = ps
	t.stop = stop

	in := ps.Channel()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case t.out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
				case <-stop:
					return
				}
			}
		}
	}()
}

// detach stops forwarding and closes the current PubSub. Callers hold mu.
func (t *RedisTransport) detach() error {
	if t.ps == nil {
		return nil
	}
	close(t.stop)
	err := t.ps.Close()
	t.ps = nil
	t.stop = nil
	return err
}

func (t *RedisTransport) current() (*redis.PubSub, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if t.ps == nil {
		return nil, errors.New("pubsub: transport not connected")
	}
	return t.ps, nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, channels ...string) error {
	ps, err := t.current()
	if err != nil {
		return err
	}
	return ps.Subscribe(ctx, channels...)
}

func (t *RedisTransport) Unsubscribe(ctx context.Context, channels ...string) error {
	ps, err := t.current()
	if err != nil {
		return err
	}
	return ps.Unsubscribe(ctx, channels...)
}

func (t *RedisTransport) Publish(ctx context.Context, channel, payload string) error {
	return t.client.Publish(ctx, channel, payload).Err()
}

func (t *RedisTransport) Messages() <-chan Message {
	return t.out
}

func (t *RedisTransport) Reconnect(ctx context.Context, channels []string) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	// The old connection is presumed broken, a close error is expected.
	_ = t.detach()
	t.attach(t.client.Subscribe(ctx, channels...))
	return nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	err := t.detach()
	t.mu.Unlock()

	t.wg.Wait()
	close(t.out)
	return err
}
