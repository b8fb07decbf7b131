/*
Package auth implements passwordless signup and signin by verification code.

A phone number is the address codes are sent to. Both flows end with a fresh
user access/refresh token pair.
*/
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flipside/internal/app/db"
	"flipside/internal/app/user"
	"flipside/internal/pkg/auth/jwt"
	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/logx"
)

// Store is the user persistence the flows need. *db.Queries implements it.
type Store interface {
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	UserExistsByPhone(ctx context.Context, phoneNumber string) (bool, error)
	GetUserByPhone(ctx context.Context, phoneNumber string) (db.User, error)
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	UpdateLastLogin(ctx context.Context, id int64) error
}

// Codes sends and checks verification codes. *verification.Store implements it.
type Codes interface {
	Send(ctx context.Context, address string) (string, error)
	Check(ctx context.Context, address, submitted string) (bool, error)
}

// Tokens issues user token pairs. *user.Kinds implements it.
type Tokens interface {
	IssuePair(u db.User, at time.Time) (*user.Pair, error)
	Rotate(ctx context.Context, raw string) (*user.Pair, error)
}

// TokenPair is the response body of every successful flow.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SignupInput is the body of a signup confirmation.
type SignupInput struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

// SigninInput is the body of a signin confirmation.
type SigninInput struct {
	Code string `json:"code"`
}

// RefreshInput is the body of a refresh request.
type RefreshInput struct {
	Token string `json:"token"`
}

type Service struct {
	users  Store
	codes  Codes
	tokens Tokens
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(users Store, codes Codes, tokens Tokens) *Service {
	return &Service{
		users:  users,
		codes:  codes,
		tokens: tokens,
		now:    time.Now,
		logger: logx.Component("auth"),
	}
}

// CheckEmail fails with ErrUserAlreadyExists when the email is taken.
func (s *Service) CheckEmail(ctx context.Context, email string) *errs.CustomError {
	email = normalizeEmail(email)
	if email == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	exists, err := s.users.UserExistsByEmail(ctx, email)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	if exists {
		return errs.NewError(errs.ErrUserAlreadyExists)
	}
	return nil
}

// RequestSignupCode sends a code to a phone number that has no user yet.
func (s *Service) RequestSignupCode(ctx context.Context, phone string) *errs.CustomError {
	if phone == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	exists, err := s.users.UserExistsByPhone(ctx, phone)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	if exists {
		return errs.NewError(errs.ErrUserAlreadyExists)
	}

	return s.sendCode(ctx, phone)
}

// Signup redeems the code sent to phone and creates the user.
func (s *Service) Signup(ctx context.Context, phone string, in SignupInput) (*TokenPair, *errs.CustomError) {
	email := normalizeEmail(in.Email)
	if phone == "" || email == "" {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	if cerr := s.checkCode(ctx, phone, in.Code); cerr != nil {
		return nil, cerr
	}

	u, err := s.users.CreateUser(ctx, db.CreateUserParams{Email: email, PhoneNumber: phone})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errs.NewError(errs.ErrUserAlreadyExists)
		}
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	s.logger.Info().Int64("user_id", u.ID).Msg("User signed up")
	return s.issue(u)
}

// RequestSigninCode sends a code to the phone number of an existing user.
func (s *Service) RequestSigninCode(ctx context.Context, phone string) *errs.CustomError {
	if _, cerr := s.userByPhone(ctx, phone); cerr != nil {
		return cerr
	}
	return s.sendCode(ctx, phone)
}

// Signin redeems the code sent to phone. The code is checked before the user
// lookup, so an unknown phone with a bad code reads as a bad code.
func (s *Service) Signin(ctx context.Context, phone string, in SigninInput) (*TokenPair, *errs.CustomError) {
	if cerr := s.checkCode(ctx, phone, in.Code); cerr != nil {
		return nil, cerr
	}

	u, cerr := s.userByPhone(ctx, phone)
	if cerr != nil {
		return nil, cerr
	}

	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	s.logger.Info().Int64("user_id", u.ID).Msg("User signed in")
	return s.issue(u)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (*TokenPair, *errs.CustomError) {
	if in.Token == "" {
		return nil, errs.NewError(errs.ErrInvalidToken)
	}

	pair, err := s.tokens.Rotate(ctx, in.Token)
	if err != nil {
		if errors.Is(err, jwt.ErrInvalidToken) {
			return nil, errs.NewError(errs.ErrInvalidToken)
		}
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	return pairOf(pair), nil
}

func (s *Service) userByPhone(ctx context.Context, phone string) (db.User, *errs.CustomError) {
	if phone == "" {
		return db.User{}, errs.NewError(errs.ErrNotFound)
	}

	u, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		if db.IsNotFound(err) {
			return db.User{}, errs.NewError(errs.ErrNotFound)
		}
		return db.User{}, errs.NewError(errs.ErrUnknown, err)
	}
	return u, nil
}

func (s *Service) sendCode(ctx context.Context, phone string) *errs.CustomError {
	if _, err := s.codes.Send(ctx, phone); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

func (s *Service) checkCode(ctx context.Context, phone, code string) *errs.CustomError {
	if code == "" {
		return errs.NewError(errs.ErrInvalidCode)
	}

	ok, err := s.codes.Check(ctx, phone, code)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	if !ok {
		return errs.NewError(errs.ErrInvalidCode)
	}
	return nil
}

func (s *Service) issue(u db.User) (*TokenPair, *errs.CustomError) {
	pair, err := s.tokens.IssuePair(u, s.now())
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	return pairOf(pair), nil
}

func pairOf(p *user.Pair) *TokenPair {
	return &TokenPair{AccessToken: p.Access.Raw, RefreshToken: p.Refresh.Raw}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
