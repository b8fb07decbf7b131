/*
Package verification issues and checks one-time codes keyed by contact address.

Codes live in Redis under verification_code:<address> with an explicit TTL. A new
code for the same address replaces the previous one.
*/
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"flipside/internal/app/notify"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/metrics"
	"flipside/internal/pkg/randx"
)

const (
	keyPrefix = "verification_code:"

	DefaultLength = 6
	DefaultTTL    = 10 * time.Minute
)

// Options tunes code generation.
type Options struct {
	Length int
	TTL    time.Duration
}

// Store generates, stores and checks verification codes.
type Store struct {
	rdb    redis.Cmdable
	sender notify.Sender
	length int
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore creates a Store. Zero options fall back to DefaultLength and DefaultTTL.
func NewStore(rdb redis.Cmdable, sender notify.Sender, opts Options) *Store {
	if opts.Length <= 0 {
		opts.Length = DefaultLength
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Store{
		rdb:    rdb,
		sender: sender,
		length: opts.Length,
		ttl:    opts.TTL,
		logger: logx.Component("verification"),
	}
}

func key(address string) string {
	return keyPrefix + address
}

// Send stores a fresh code for address and dispatches it. The code is stored
// before dispatch, and delivery failures are logged but not returned.
func (s *Store) Send(ctx context.Context, address string) (string, error) {
	code, err := randx.Digits(s.length)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	if err := s.rdb.Set(ctx, key(address), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	if err := s.sender.Send(ctx, address, "Your verification code is "+code); err != nil {
		metrics.VerificationCodesSent.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("Couldn't send verification code")
		return code, nil
	}

	metrics.VerificationCodesSent.WithLabelValues("ok").Inc()
	return code, nil
}

// Get returns the active code for address. found is false when there is none or it expired.
func (s *Store) Get(ctx context.Context, address string) (code string, found bool, err error) {
	code, err = s.rdb.Get(ctx, key(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read code: %w", err)
	}
	return code, true, nil
}

// Check reports whether submitted matches the active code for address.
func (s *Store) Check(ctx context.Context, address, submitted string) (bool, error) {
	code, found, err := s.Get(ctx, address)
	if err != nil || !found {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(submitted)) == 1, nil
}
