package jwt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPrincipal struct {
	Email string
}

type testStore map[string][]testPrincipal

func (s testStore) load(_ context.Context, claims Claims) ([]testPrincipal, error) {
	email, _ := claims.String(ClaimEmail)
	return s[email], nil
}

func newTestKind(t *testing.T, signer *Signer, tokenType string, lifetime time.Duration, store testStore) *Kind[testPrincipal] {
	t.Helper()

	kind, err := NewKind(signer, KindConfig[testPrincipal]{
		Type:           tokenType,
		Lifetime:       lifetime,
		RequiredClaims: []string{ClaimEmail, ClaimNonce},
		PopulateClaims: func(p testPrincipal, _ time.Time) (Claims, error) {
			return Claims{ClaimEmail: p.Email, ClaimNonce: tokenType + "-" + p.Email + "-" + time.Now().String()}, nil
		},
		LoadPrincipal: store.load,
	})
	require.NoError(t, err)
	return kind
}

func newTestSigner(t *testing.T, opts ...SignerOption) *Signer {
	t.Helper()
	signer, err := NewSigner("test-secret", opts...)
	require.NoError(t, err)
	return signer
}

func TestNewSigner(t *testing.T) {
	_, err := NewSigner("")
	assert.Error(t, err)

	signer, err := NewSigner("secret")
	require.NoError(t, err)
	assert.NotNil(t, signer)
}

func TestNewKind_Validation(t *testing.T) {
	signer := newTestSigner(t)
	load := testStore{}.load

	_, err := NewKind(signer, KindConfig[testPrincipal]{Lifetime: time.Hour, LoadPrincipal: load})
	assert.Error(t, err, "missing type")

	_, err = NewKind(signer, KindConfig[testPrincipal]{Type: "access", LoadPrincipal: load})
	assert.Error(t, err, "missing lifetime")

	_, err = NewKind(signer, KindConfig[testPrincipal]{Type: "access", Lifetime: time.Hour})
	assert.Error(t, err, "missing lookup")

	_, err = NewKind[testPrincipal](nil, KindConfig[testPrincipal]{Type: "access", Lifetime: time.Hour, LoadPrincipal: load})
	assert.Error(t, err, "missing signer")
}

func TestKind_IssueAndVerify(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)
	access := newTestKind(t, signer, "user_access", 24*time.Hour, store)

	t.Run("Success_RoundTrip", func(t *testing.T) {
		issuedAt := time.Now()
		issued, err := access.Issue(testPrincipal{Email: "a@example.com"}, issuedAt)
		require.NoError(t, err)

		assert.Equal(t, "user_access", issued.Claims[ClaimTokenType])
		assert.Equal(t, issuedAt.Add(24*time.Hour).Unix(), issued.ExpiresAt.Unix())
		assert.Equal(t, issued.Raw, issued.String())

		verified, err := access.Verify(ctx, issued.Raw)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", verified.Principal.Email)
		assert.Equal(t, "user_access", verified.Type)
		assert.Equal(t, issued.ExpiresAt.Unix(), verified.ExpiresAt.Unix())
	})

	t.Run("Success_ReservedClaimsNotOverridden", func(t *testing.T) {
		kind, err := NewKind(signer, KindConfig[testPrincipal]{
			Type:     "user_access",
			Lifetime: time.Hour,
			PopulateClaims: func(p testPrincipal, _ time.Time) (Claims, error) {
				return Claims{ClaimEmail: p.Email, ClaimTokenType: "user_refresh"}, nil
			},
			LoadPrincipal: store.load,
		})
		require.NoError(t, err)

		issued, err := kind.Issue(testPrincipal{Email: "a@example.com"}, time.Now())
		require.NoError(t, err)
		assert.Equal(t, "user_access", issued.Claims[ClaimTokenType])
	})

	t.Run("Error_Malformed", func(t *testing.T) {
		_, err := access.Verify(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Error_WrongSecret", func(t *testing.T) {
		other, err := NewSigner("other-secret")
		require.NoError(t, err)
		foreign := newTestKind(t, other, "user_access", time.Hour, store)

		issued, err := foreign.Issue(testPrincipal{Email: "a@example.com"}, time.Now())
		require.NoError(t, err)

		_, err = access.Verify(ctx, issued.Raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Error_Expired", func(t *testing.T) {
		issued, err := access.Issue(testPrincipal{Email: "a@example.com"}, time.Now().Add(-25*time.Hour))
		require.NoError(t, err)

		_, err = access.Verify(ctx, issued.Raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Error_PrincipalGone", func(t *testing.T) {
		issued, err := access.Issue(testPrincipal{Email: "gone@example.com"}, time.Now())
		require.NoError(t, err)

		_, err = access.Verify(ctx, issued.Raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Error_MultiplePrincipals", func(t *testing.T) {
		dup := testStore{"d@example.com": {{Email: "d@example.com"}, {Email: "d@example.com"}}}
		kind := newTestKind(t, signer, "user_access", time.Hour, dup)

		issued, err := kind.Issue(testPrincipal{Email: "d@example.com"}, time.Now())
		require.NoError(t, err)

		_, err = kind.Verify(ctx, issued.Raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Error_StoreFailureIsNotInvalidToken", func(t *testing.T) {
		kind, err := NewKind(signer, KindConfig[testPrincipal]{
			Type:     "user_access",
			Lifetime: time.Hour,
			LoadPrincipal: func(context.Context, Claims) ([]testPrincipal, error) {
				return nil, errors.New("connection refused")
			},
		})
		require.NoError(t, err)

		issued, err := kind.Issue(testPrincipal{}, time.Now())
		require.NoError(t, err)

		_, err = kind.Verify(ctx, issued.Raw)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidToken)
	})
}

func TestKind_ExpiryWithClock(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}

	issuedAt := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	current := issuedAt
	signer := newTestSigner(t, WithClock(func() time.Time { return current }))
	kind := newTestKind(t, signer, "user_access", time.Hour, store)

	issued, err := kind.Issue(testPrincipal{Email: "a@example.com"}, issuedAt)
	require.NoError(t, err)

	current = issuedAt.Add(59 * time.Minute)
	_, err = kind.Verify(ctx, issued.Raw)
	assert.NoError(t, err)

	current = issuedAt.Add(time.Hour + time.Second)
	_, err = kind.Verify(ctx, issued.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKind_CrossKindRejection(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)
	access := newTestKind(t, signer, "user_access", time.Hour, store)
	refresh := newTestKind(t, signer, "user_refresh", 24*time.Hour, store)

	accessToken, err := access.Issue(testPrincipal{Email: "a@example.com"}, time.Now())
	require.NoError(t, err)
	refreshToken, err := refresh.Issue(testPrincipal{Email: "a@example.com"}, time.Now())
	require.NoError(t, err)

	_, err = refresh.Verify(ctx, accessToken.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = access.Verify(ctx, refreshToken.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKind_RequiredClaims(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)
	kind := newTestKind(t, signer, "user_access", time.Hour, store)

	raw, err := signer.sign(Claims{
		ClaimTokenType:  "user_access",
		ClaimExpiration: time.Now().Add(time.Hour).Unix(),
		ClaimEmail:      "a@example.com",
	})
	require.NoError(t, err)

	_, err = kind.Verify(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken, "jti is required")
}

func TestKind_MissingExpiration(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)
	kind := newTestKind(t, signer, "user_access", time.Hour, store)

	raw, err := signer.sign(Claims{
		ClaimTokenType: "user_access",
		ClaimEmail:     "a@example.com",
		ClaimNonce:     "n",
	})
	require.NoError(t, err)

	_, err = kind.Verify(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKind_AlgorithmPinned(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)
	kind := newTestKind(t, signer, "user_access", time.Hour, store)

	raw, err := gojwt.NewWithClaims(gojwt.SigningMethodHS512, gojwt.MapClaims{
		ClaimTokenType:  "user_access",
		ClaimExpiration: time.Now().Add(time.Hour).Unix(),
		ClaimEmail:      "a@example.com",
		ClaimNonce:      "n",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = kind.Verify(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKind_VerifyClaimsHook(t *testing.T) {
	ctx := context.Background()
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)

	kind, err := NewKind(signer, KindConfig[testPrincipal]{
		Type:     "user_access",
		Lifetime: time.Hour,
		PopulateClaims: func(p testPrincipal, _ time.Time) (Claims, error) {
			return Claims{ClaimEmail: p.Email}, nil
		},
		VerifyClaims: func(Claims) error {
			return errors.New("revoked")
		},
		LoadPrincipal: store.load,
	})
	require.NoError(t, err)

	issued, err := kind.Issue(testPrincipal{Email: "a@example.com"}, time.Now())
	require.NoError(t, err)

	_, err = kind.Verify(ctx, issued.Raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		token, ok := BearerToken(r)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}

func TestHandshakeToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/chat?access_token=q", nil)
	token, ok := HandshakeToken(r)
	assert.True(t, ok)
	assert.Equal(t, "q", token)

	r.Header.Set("Authorization", "Bearer h")
	token, ok = HandshakeToken(r)
	assert.True(t, ok)
	assert.Equal(t, "h", token)
}

func TestMiddleware(t *testing.T) {
	store := testStore{"a@example.com": {{Email: "a@example.com"}}}
	signer := newTestSigner(t)
	kind := newTestKind(t, signer, "user_access", time.Hour, store)

	issued, err := kind.Issue(testPrincipal{Email: "a@example.com"}, time.Now())
	require.NoError(t, err)

	var seen *Token[testPrincipal]
	handler := IdentityExtractorMiddleware(kind)(RequireToken[testPrincipal](http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TokenFromContext[testPrincipal](r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("Success_Authenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+issued.Raw)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "a@example.com", seen.Principal.Email)
	})

	t.Run("Error_Anonymous", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"detail":"Invalid credentials","code":3001}`, w.Body.String())
	})

	t.Run("Error_InvalidToken", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
