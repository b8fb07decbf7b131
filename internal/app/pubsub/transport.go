/*
Package pubsub multiplexes named channels of an external broadcast transport onto
local callbacks.

A Bus holds at most one callback per channel (last subscribe wins). A single
listener goroutine runs while at least one channel is subscribed and hands every
inbound message to the callback registered for its channel.
*/
package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed Bus or Transport.
var ErrClosed = errors.New("pubsub: closed")

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload string
}

// Transport is the broadcast system behind a Bus.
type Transport interface {
	// Connect establishes the connection. It is called once before any other method.
	Connect(ctx context.Context) error

	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
	Publish(ctx context.Context, channel, payload string) error

	// Messages delivers inbound messages for every subscribed channel.
	// It is closed by Close.
	Messages() <-chan Message

	// Reconnect drops the current connection, opens a new one and subscribes channels on it.
	Reconnect(ctx context.Context, channels []string) error

	Close() error
}
