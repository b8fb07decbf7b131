package jwt

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/resp"
)

// contextKey prevents collisions with context keys of other packages.
type contextKey string

const (
	// ContextAuthTokenKey stores the verified *Token[P] in the request context.
	ContextAuthTokenKey contextKey = "auth_token"

	// AccessTokenQueryParam is the query fallback for clients that can not set
	// headers on a WebSocket handshake.
	AccessTokenQueryParam = "access_token"
)

// BearerToken extracts the credential from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, credentials, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return "", false
	}

	return credentials, true
}

// HandshakeToken returns the bearer header credential, falling back to the
// access_token query parameter.
func HandshakeToken(r *http.Request) (string, bool) {
	if token, ok := BearerToken(r); ok {
		return token, true
	}

	token := r.URL.Query().Get(AccessTokenQueryParam)
	return token, token != ""
}

// IdentityExtractorMiddleware verifies the bearer token with kind and stores the
// result in the context. It never interrupts the request: a missing or invalid
// token leaves the request anonymous.
func IdentityExtractorMiddleware[P any](kind *Kind[P]) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			token, err := kind.Verify(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					logx.Error(err, "Principal lookup failed during token verification")
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireToken rejects anonymous requests with 401 "Invalid credentials".
// It must run after IdentityExtractorMiddleware for the same P.
func RequireToken[P any](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TokenFromContext[P](r.Context()) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromContext returns the verified token, or nil for anonymous requests.
func TokenFromContext[P any](ctx context.Context) *Token[P] {
	token, ok := ctx.Value(ContextAuthTokenKey).(*Token[P])
	if !ok {
		return nil
	}
	return token
}
