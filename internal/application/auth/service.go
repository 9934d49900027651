package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/studyshare-api/internal/config"
	"github.com/studyshare-api/internal/domain"
	"github.com/studyshare-api/internal/graceperiod"
	"github.com/studyshare-api/internal/infrastructure/google"
	"github.com/studyshare-api/internal/pkg/id"
	"github.com/studyshare-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const fieldPasswordHash = "password_hash"

// Reset code delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type LoginResult struct {
	Token string
	User  *domain.User
}

type PasswordResetRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Channel string `json:"channel" validate:"omitempty,oneof=email sms"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error)
	RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	ResumePending(ctx context.Context) (int, error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type codeStore interface {
	Put(ctx context.Context, v *domain.UserVerification) error
	Get(ctx context.Context, userID, verType string) (*domain.UserVerification, error)
	Delete(ctx context.Context, userID, verType string) error
	ScanByType(ctx context.Context, verType string) ([]domain.UserVerification, error)
}

type notifier interface {
	Send(ctx context.Context, destination, code string, purpose domain.Purpose) error
}

type sweeper interface {
	Register(key string, interval, duration time.Duration, action graceperiod.CleanupAction) (*graceperiod.Job, error)
	Cancel(key string)
}

type tokenSigner interface {
	Sign(userID, role string) (string, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type service struct {
	users    userStore
	codes    codeStore
	notifier notifier
	sweeper  sweeper
	expire   graceperiod.CleanupAction
	grace    config.GracePeriod
	signer   tokenSigner
	google   googleVerifier
	clock    graceperiod.Clock
}

// ServiceDeps wires the auth service. Sweeper is the password-reset registry
// and Expire the cleanup it runs for codes that were never used.
type ServiceDeps struct {
	UserRepo       userStore
	CodeRepo       codeStore
	Notifier       notifier
	Sweeper        sweeper
	Expire         graceperiod.CleanupAction
	GracePeriod    config.GracePeriod
	JWTProvider    tokenSigner
	GoogleVerifier googleVerifier
	Clock          graceperiod.Clock
}

func NewService(deps ServiceDeps) Service {
	clock := deps.Clock
	if clock == nil {
		clock = graceperiod.RealClock{}
	}
	return &service{
		users:    deps.UserRepo,
		codes:    deps.CodeRepo,
		notifier: deps.Notifier,
		sweeper:  deps.Sweeper,
		expire:   deps.Expire,
		grace:    deps.GracePeriod,
		signer:   deps.JWTProvider,
		google:   deps.GoogleVerifier,
		clock:    clock,
	}
}

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		u, err = s.users.GetByEmail(ctx, req.Username)
		if err != nil {
			return nil, errInvalidCredentials
		}
	}
	if u.PasswordHash == "" {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	if !u.Verified {
		return nil, fmt.Errorf("email not verified: %w", domain.ErrForbidden)
	}
	return s.issue(u)
}

// LoginWithGoogle signs in with a Google ID token. Google has already proven
// ownership of the address, so new accounts are created verified and never
// enter the signup grace period.
func (s *service) LoginWithGoogle(ctx context.Context, idToken string) (*LoginResult, error) {
	p, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if p.Email == "" || !p.EmailVerified {
		return nil, fmt.Errorf("google account email not verified: %w", domain.ErrUnauthorized)
	}

	u, err := s.users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if !u.Verified {
			return nil, fmt.Errorf("email not verified: %w", domain.ErrForbidden)
		}
		return s.issue(u)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	now := s.clock.Now().UTC()
	u = &domain.User{
		UserID:       id.New(),
		Username:     p.Email,
		Email:        p.Email,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Role:         domain.RoleUser,
		Verified:     true,
		AuthProvider: domain.AuthProviderGoogle,
		GoogleSub:    p.Sub,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *service) issue(u *domain.User) (*LoginResult, error) {
	tok, err := s.signer.Sign(u.UserID, u.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: tok, User: u}, nil
}

func (s *service) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if !u.Verified {
		return fmt.Errorf("email not verified: %w", domain.ErrForbidden)
	}
	destination := u.Email
	if req.Channel == ChannelSMS {
		if u.Phone == nil || *u.Phone == "" {
			return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
		}
		destination = *u.Phone
	}

	code, err := token.NewCode()
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	v := &domain.UserVerification{
		UserID:    u.UserID,
		Type:      domain.VerificationPasswordReset,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.grace.Window).Unix(),
	}
	if err := s.codes.Put(ctx, v); err != nil {
		return err
	}
	// An existing job is kept; the checker measures from the new issued_at.
	if _, err := s.sweeper.Register(u.UserID, s.grace.CheckInterval, s.grace.Window, s.expire); err != nil {
		return fmt.Errorf("arm reset grace period: %w", err)
	}
	if err := s.notifier.Send(ctx, destination, code, domain.PurposePasswordReset); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}
	return nil
}

var errInvalidResetCode = fmt.Errorf("password reset code is incorrect or has expired: %w", domain.ErrUnauthorized)

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errInvalidResetCode
		}
		return err
	}
	v, err := s.codes.Get(ctx, u.UserID, domain.VerificationPasswordReset)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errInvalidResetCode
		}
		return err
	}
	if s.clock.Now().Sub(v.IssuedAt) >= s.grace.Window {
		return errInvalidResetCode
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(req.Code)) != 1 {
		return errInvalidResetCode
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	if err := s.codes.Delete(ctx, u.UserID, domain.VerificationPasswordReset); err != nil {
		// The sweeper still holds the job and clears the code at its deadline.
		slog.Warn("failed to delete password reset code", "user_id", u.UserID, "err", err)
		return nil
	}
	s.sweeper.Cancel(u.UserID)
	return nil
}

// ResumePending re-arms the reset sweeper for every outstanding reset code.
func (s *service) ResumePending(ctx context.Context) (int, error) {
	codes, err := s.codes.ScanByType(ctx, domain.VerificationPasswordReset)
	if err != nil {
		return 0, fmt.Errorf("scan reset codes: %w", err)
	}
	for i, v := range codes {
		if _, err := s.sweeper.Register(v.UserID, s.grace.CheckInterval, s.grace.Window, s.expire); err != nil {
			return i, fmt.Errorf("arm reset grace period: %w", err)
		}
	}
	return len(codes), nil
}
