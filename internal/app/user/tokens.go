package user

import (
	"context"
	"fmt"
	"time"

	"flipside/internal/app/db"
	"flipside/internal/pkg/auth/jwt"
	"flipside/internal/pkg/randx"
)

const (
	AccessTokenType  = "user_access"
	RefreshTokenType = "user_refresh"
)

// Kinds bundles the access and refresh kinds sharing one signer.
type Kinds struct {
	Access  *jwt.Kind[db.User]
	Refresh *jwt.Kind[db.User]

	signer *jwt.Signer
}

// Pair is a freshly issued access/refresh token pair.
type Pair struct {
	Access  *jwt.Token[db.User]
	Refresh *jwt.Token[db.User]
}

// NewKinds declares both user token kinds with the given lifetimes.
func NewKinds(signer *jwt.Signer, store Store, accessLifetime, refreshLifetime time.Duration) (*Kinds, error) {
	access, err := newKind(signer, store, AccessTokenType, accessLifetime)
	if err != nil {
		return nil, err
	}

	refresh, err := newKind(signer, store, RefreshTokenType, refreshLifetime)
	if err != nil {
		return nil, err
	}

	return &Kinds{Access: access, Refresh: refresh, signer: signer}, nil
}

func newKind(signer *jwt.Signer, store Store, tokenType string, lifetime time.Duration) (*jwt.Kind[db.User], error) {
	return jwt.NewKind(signer, jwt.KindConfig[db.User]{
		Type:           tokenType,
		Lifetime:       lifetime,
		RequiredClaims: []string{jwt.ClaimEmail, jwt.ClaimNonce},
		PopulateClaims: populateClaims,
		LoadPrincipal:  loadByEmail(store),
	})
}

// populateClaims writes the user's email and a fresh nonce, so two tokens of the
// same kind issued in the same second still differ.
func populateClaims(u db.User, _ time.Time) (jwt.Claims, error) {
	nonce, err := randx.Nonce()
	if err != nil {
		return nil, err
	}
	return jwt.Claims{
		jwt.ClaimEmail: u.Email,
		jwt.ClaimNonce: nonce,
	}, nil
}

// IssuePair issues a new access and refresh token for u at the given instant.
func (k *Kinds) IssuePair(u db.User, at time.Time) (*Pair, error) {
	access, err := k.Access.Issue(u, at)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := k.Refresh.Issue(u, at)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &Pair{Access: access, Refresh: refresh}, nil
}

// Rotate verifies raw as a refresh token and issues a new pair for its user at
// the signer's current time. The presented refresh token is not revoked and
// stays valid until it expires.
func (k *Kinds) Rotate(ctx context.Context, raw string) (*Pair, error) {
	token, err := k.Refresh.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	return k.IssuePair(token.Principal, k.signer.Now())
}
