package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flipside/internal/app/db"
	"flipside/internal/pkg/auth/jwt"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (db.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(db.User), args.Error(1)
}

func newTestKinds(t *testing.T, store Store) *Kinds {
	t.Helper()
	signer, err := jwt.NewSigner("test-secret")
	require.NoError(t, err)

	kinds, err := NewKinds(signer, store, 24*time.Hour, 180*24*time.Hour)
	require.NoError(t, err)
	return kinds
}

func TestIssuePair_RoundTrip(t *testing.T) {
	ctx := context.Background()
	alice := db.User{ID: 1, Email: "alice@example.com"}

	store := &mockStore{}
	store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(alice, nil)
	kinds := newTestKinds(t, store)

	pair, err := kinds.IssuePair(alice, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, pair.Access.Raw, pair.Refresh.Raw)

	access, err := kinds.Access.Verify(ctx, pair.Access.Raw)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, access.Principal.ID)

	refresh, err := kinds.Refresh.Verify(ctx, pair.Refresh.Raw)
	require.NoError(t, err)
	assert.Equal(t, RefreshTokenType, refresh.Type)

	_, err = kinds.Access.Verify(ctx, pair.Refresh.Raw)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	_, err = kinds.Refresh.Verify(ctx, pair.Access.Raw)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestIssuePair_Expiry(t *testing.T) {
	ctx := context.Background()
	alice := db.User{ID: 1, Email: "alice@example.com"}

	store := &mockStore{}
	store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(alice, nil)
	kinds := newTestKinds(t, store)

	pair, err := kinds.IssuePair(alice, time.Now().Add(-25*time.Hour))
	require.NoError(t, err)

	_, err = kinds.Access.Verify(ctx, pair.Access.Raw)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken, "access lifetime is 24h")

	_, err = kinds.Refresh.Verify(ctx, pair.Refresh.Raw)
	assert.NoError(t, err, "refresh lifetime is 180 days")
}

func TestIssuePair_NoncesDiffer(t *testing.T) {
	kinds := newTestKinds(t, &mockStore{})
	alice := db.User{ID: 1, Email: "alice@example.com"}
	at := time.Now()

	first, err := kinds.IssuePair(alice, at)
	require.NoError(t, err)
	second, err := kinds.IssuePair(alice, at)
	require.NoError(t, err)

	assert.NotEqual(t, first.Access.Raw, second.Access.Raw)
	assert.NotEqual(t, first.Access.Claims[jwt.ClaimNonce], second.Access.Claims[jwt.ClaimNonce])
}

func TestRotate(t *testing.T) {
	ctx := context.Background()
	alice := db.User{ID: 1, Email: "alice@example.com"}

	t.Run("Success_TwoRefreshesYieldIndependentPairs", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(alice, nil)
		kinds := newTestKinds(t, store)

		r1, err := kinds.IssuePair(alice, time.Now())
		require.NoError(t, err)
		r2, err := kinds.IssuePair(alice, time.Now())
		require.NoError(t, err)

		p1, err := kinds.Rotate(ctx, r1.Refresh.Raw)
		require.NoError(t, err)
		p2, err := kinds.Rotate(ctx, r2.Refresh.Raw)
		require.NoError(t, err)

		assert.NotEqual(t, p1.Access.Raw, p2.Access.Raw)
		assert.NotEqual(t, p1.Refresh.Raw, p2.Refresh.Raw)

		for _, raw := range []string{p1.Access.Raw, p2.Access.Raw} {
			_, err := kinds.Access.Verify(ctx, raw)
			assert.NoError(t, err)
		}
		for _, raw := range []string{p1.Refresh.Raw, p2.Refresh.Raw} {
			_, err := kinds.Refresh.Verify(ctx, raw)
			assert.NoError(t, err)
		}
	})

	t.Run("Success_PresentedTokenStaysValid", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(alice, nil)
		kinds := newTestKinds(t, store)

		pair, err := kinds.IssuePair(alice, time.Now())
		require.NoError(t, err)

		_, err = kinds.Rotate(ctx, pair.Refresh.Raw)
		require.NoError(t, err)
		_, err = kinds.Rotate(ctx, pair.Refresh.Raw)
		assert.NoError(t, err)
	})

	t.Run("Error_AccessTokenPresented", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(alice, nil)
		kinds := newTestKinds(t, store)

		pair, err := kinds.IssuePair(alice, time.Now())
		require.NoError(t, err)

		_, err = kinds.Rotate(ctx, pair.Access.Raw)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("Error_UserDeleted", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(db.User{}, pgx.ErrNoRows)
		kinds := newTestKinds(t, store)

		pair, err := kinds.IssuePair(alice, time.Now())
		require.NoError(t, err)

		_, err = kinds.Rotate(ctx, pair.Refresh.Raw)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("Error_StoreDown", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(db.User{}, errors.New("connection refused"))
		kinds := newTestKinds(t, store)

		pair, err := kinds.IssuePair(alice, time.Now())
		require.NoError(t, err)

		_, err = kinds.Rotate(ctx, pair.Refresh.Raw)
		require.Error(t, err)
		assert.NotErrorIs(t, err, jwt.ErrInvalidToken)
	})
}

func TestRotate_IssuesAtSignerTime(t *testing.T) {
	ctx := context.Background()
	alice := db.User{ID: 1, Email: "alice@example.com"}
	store := &mockStore{}
	store.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(alice, nil)

	frozen := time.Date(2020, time.January, 2, 3, 4, 5, 0, time.UTC)
	signer, err := jwt.NewSigner("test-secret", jwt.WithClock(func() time.Time { return frozen }))
	require.NoError(t, err)
	kinds, err := NewKinds(signer, store, time.Hour, 24*time.Hour)
	require.NoError(t, err)

	issued, err := kinds.IssuePair(alice, frozen)
	require.NoError(t, err)

	rotated, err := kinds.Rotate(ctx, issued.Refresh.Raw)
	require.NoError(t, err)
	assert.Equal(t, frozen.Add(time.Hour).Unix(), rotated.Access.ExpiresAt.Unix())
	assert.Equal(t, frozen.Add(24*time.Hour).Unix(), rotated.Refresh.ExpiresAt.Unix())

	_, err = kinds.Access.Verify(ctx, rotated.Access.Raw)
	assert.NoError(t, err)
	_, err = kinds.Rotate(ctx, rotated.Refresh.Raw)
	assert.NoError(t, err)
}
