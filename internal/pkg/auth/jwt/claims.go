package jwt

import "github.com/golang-jwt/jwt/v5"

const (
	// ClaimTokenType is the discriminator every token kind writes and checks.
	ClaimTokenType = "token_type"

	// ClaimExpiration is the standard JWT expiration claim (Unix seconds).
	ClaimExpiration = "exp"

	// ClaimEmail is the stable identifier of a user principal.
	ClaimEmail = "email"

	// ClaimNonce is the per-issuance random value (JWT ID).
	ClaimNonce = "jti"
)

// Claims is the decoded payload of a token.
type Claims map[string]any

// String returns the named claim when it is present and a string.
func (c Claims) String(name string) (string, bool) {
	v, ok := c[name].(string)
	return v, ok
}

// Has reports whether the named claim is present.
func (c Claims) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// mapClaims converts Claims to the type golang-jwt signs.
func (c Claims) mapClaims() jwt.MapClaims {
	return jwt.MapClaims(c)
}

// isReserved reports whether name is written by the engine itself and can not be
// overridden by a kind's PopulateClaims hook.
func isReserved(name string) bool {
	return name == ClaimTokenType || name == ClaimExpiration
}
