/*
Package user declares the session token kinds issued to users.

Both kinds resolve their principal by the email claim, so a token stops verifying
as soon as its user is gone.
*/
package user

import (
	"context"
	"fmt"

	"flipside/internal/app/db"
	"flipside/internal/pkg/auth/jwt"
)

// Store looks users up for token verification.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (db.User, error)
}

// loadByEmail resolves the email claim to at most one user.
func loadByEmail(store Store) func(ctx context.Context, claims jwt.Claims) ([]db.User, error) {
	return func(ctx context.Context, claims jwt.Claims) ([]db.User, error) {
		email, ok := claims.String(jwt.ClaimEmail)
		if !ok || email == "" {
			return nil, nil
		}

		u, err := store.GetUserByEmail(ctx, email)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		return []db.User{u}, nil
	}
}
