/*
Package jwt issues and verifies signed session tokens.

A token kind (access, refresh, ...) is declared once with KindConfig: its
token_type discriminator, lifetime, required claims and the hooks that populate
claims and resolve the owning principal. NewKind validates the declaration, so a
misconfigured kind fails at startup instead of at the first request.

Verification is fail-closed and generic: any decoding, signature, expiry,
discriminator, missing-claim or principal lookup failure yields ErrInvalidToken.
*/
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/metrics"
)

// ErrInvalidToken is the only verification failure callers ever observe.
var ErrInvalidToken = errors.New("token is invalid or expired")

// Signer holds the shared secret and algorithm used by every token kind.
type Signer struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
	parser *jwt.Parser
}

// SignerOption customizes a Signer.
type SignerOption func(*Signer)

// WithClock overrides the clock used to check expiration during verification.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates an HS256 signer for secret.
func NewSigner(secret string, opts ...SignerOption) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("jwt: signing secret must not be empty")
	}

	s := &Signer{
		secret: []byte(secret),
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	return s, nil
}

// Now returns the signer's current time.
func (s *Signer) Now() time.Time {
	return s.now()
}

func (s *Signer) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(s.method, claims.mapClaims()).SignedString(s.secret)
}

func (s *Signer) decode(raw string) (Claims, error) {
	parsed, err := s.parser.Parse(raw, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !parsed.Valid {
		return nil, errors.New("token failed validation")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	return Claims(mapClaims), nil
}

// KindConfig declares one token kind. P is the principal type the kind resolves to.
type KindConfig[P any] struct {
	// Type is the token_type discriminator. Required.
	Type string

	// Lifetime is added to the issuance time to compute exp. Required.
	Lifetime time.Duration

	// RequiredClaims must all be present, in addition to token_type and exp.
	RequiredClaims []string

	// PopulateClaims adds kind-specific claims at issuance. Optional.
	PopulateClaims func(principal P, at time.Time) (Claims, error)

	// VerifyClaims runs after the required-claims check. Optional.
	VerifyClaims func(claims Claims) error

	// LoadPrincipal resolves the owning principal from verified claims. Required.
	// Exactly one result is accepted.
	LoadPrincipal func(ctx context.Context, claims Claims) ([]P, error)
}

// Kind issues and verifies tokens of one declared kind.
type Kind[P any] struct {
	cfg    KindConfig[P]
	signer *Signer
	logger zerolog.Logger
}

// NewKind validates cfg and binds it to signer.
func NewKind[P any](signer *Signer, cfg KindConfig[P]) (*Kind[P], error) {
	if signer == nil {
		return nil, errors.New("jwt: signer is required")
	}
	if cfg.Type == "" {
		return nil, errors.New("jwt: token type is not specified")
	}
	if cfg.Lifetime <= 0 {
		return nil, fmt.Errorf("jwt: lifetime is not specified for %s", cfg.Type)
	}
	if cfg.LoadPrincipal == nil {
		return nil, fmt.Errorf("jwt: principal lookup is not specified for %s", cfg.Type)
	}

	return &Kind[P]{
		cfg:    cfg,
		signer: signer,
		logger: logx.Component("token").With().Str("token_type", cfg.Type).Logger(),
	}, nil
}

// Type returns the kind's token_type discriminator.
func (k *Kind[P]) Type() string {
	return k.cfg.Type
}

// Lifetime returns the kind's token lifetime.
func (k *Kind[P]) Lifetime() time.Duration {
	return k.cfg.Lifetime
}

// Token is an issued or verified token.
type Token[P any] struct {
	// Principal is the entity the token represents.
	Principal P

	// Raw is the signed compact JWT string.
	Raw string

	// Claims is the decoded claim set.
	Claims Claims

	// Type is the token_type discriminator.
	Type string

	// ExpiresAt is the expiration instant, truncated to seconds.
	ExpiresAt time.Time
}

// String returns the signed token string.
func (t *Token[P]) String() string {
	return t.Raw
}

// Issue signs a new token for principal with exp = at + lifetime.
func (k *Kind[P]) Issue(principal P, at time.Time) (*Token[P], error) {
	expiresAt := time.Unix(at.Add(k.cfg.Lifetime).Unix(), 0)

	claims := Claims{}
	if k.cfg.PopulateClaims != nil {
		extra, err := k.cfg.PopulateClaims(principal, at)
		if err != nil {
			return nil, fmt.Errorf("populate %s claims: %w", k.cfg.Type, err)
		}
		for name, value := range extra {
			if !isReserved(name) {
				claims[name] = value
			}
		}
	}
	claims[ClaimTokenType] = k.cfg.Type
	claims[ClaimExpiration] = expiresAt.Unix()

	raw, err := k.signer.sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", k.cfg.Type, err)
	}

	return &Token[P]{
		Principal: principal,
		Raw:       raw,
		Claims:    claims,
		Type:      k.cfg.Type,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify decodes raw, checks it against the kind and loads its principal.
// Every token problem is reported as ErrInvalidToken. Only a failing principal
// store surfaces as a different (wrapped) error.
func (k *Kind[P]) Verify(ctx context.Context, raw string) (*Token[P], error) {
	claims, err := k.signer.decode(raw)
	if err != nil {
		return nil, k.reject("decode", err)
	}

	if tokenType, _ := claims.String(ClaimTokenType); tokenType != k.cfg.Type {
		return nil, k.reject("token_type mismatch", nil)
	}

	for _, name := range k.cfg.RequiredClaims {
		if !claims.Has(name) {
			return nil, k.reject("missing claim "+name, nil)
		}
	}

	if k.cfg.VerifyClaims != nil {
		if err := k.cfg.VerifyClaims(claims); err != nil {
			return nil, k.reject("claim verification", err)
		}
	}

	principals, err := k.cfg.LoadPrincipal(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("load %s principal: %w", k.cfg.Type, err)
	}
	if len(principals) != 1 {
		return nil, k.reject(fmt.Sprintf("principal lookup returned %d results", len(principals)), nil)
	}

	exp, err := claims.mapClaims().GetExpirationTime()
	if err != nil || exp == nil {
		return nil, k.reject("exp claim", err)
	}

	return &Token[P]{
		Principal: principals[0],
		Raw:       raw,
		Claims:    claims,
		Type:      k.cfg.Type,
		ExpiresAt: exp.Time,
	}, nil
}

// reject logs the concrete reason at debug level and returns the generic error.
func (k *Kind[P]) reject(reason string, cause error) error {
	metrics.TokenVerificationFailures.WithLabelValues(k.cfg.Type).Inc()
	k.logger.Debug().Err(cause).Str("reason", reason).Msg("Token rejected")
	return ErrInvalidToken
}
