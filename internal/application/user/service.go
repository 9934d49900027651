package user

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
	"github.com/studyshare-api/internal/pkg/id"
	"github.com/studyshare-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const fieldVerified = "verified"

type Service interface {
	Signup(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	DeleteAccount(ctx context.Context, userID, password string) error
	Delete(ctx context.Context, userID string) error
	ResumePending(ctx context.Context) (int, error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
	ScanUnverified(ctx context.Context) ([]domain.User, error)
}

type codeStore interface {
	Put(ctx context.Context, v *domain.UserVerification) error
	Get(ctx context.Context, userID, verType string) (*domain.UserVerification, error)
	Delete(ctx context.Context, userID, verType string) error
}

type notifier interface {
	Send(ctx context.Context, destination, code string, purpose domain.Purpose) error
}

type sweeper interface {
	Register(key string, interval, duration time.Duration, action graceperiod.CleanupAction) (*graceperiod.Job, error)
	Cancel(key string)
}

type canceler interface {
	Cancel(key string)
}

type service struct {
	repo         userStore
	codes        codeStore
	notifier     notifier
	sweeper      sweeper
	resetSweeper canceler
	expire       graceperiod.CleanupAction
	grace        config.GracePeriod
	clock        graceperiod.Clock
}

// ServiceDeps wires the user service. Sweeper is the signup registry and Expire
// the cleanup it runs for accounts that were never verified.
type ServiceDeps struct {
	UserRepo     userStore
	CodeRepo     codeStore
	Notifier     notifier
	Sweeper      sweeper
	ResetSweeper canceler
	Expire       graceperiod.CleanupAction
	GracePeriod  config.GracePeriod
	Clock        graceperiod.Clock
}

func NewService(deps ServiceDeps) Service {
	clock := deps.Clock
	if clock == nil {
		clock = graceperiod.RealClock{}
	}
	return &service{
		repo:         deps.UserRepo,
		codes:        deps.CodeRepo,
		notifier:     deps.Notifier,
		sweeper:      deps.Sweeper,
		resetSweeper: deps.ResetSweeper,
		expire:       deps.Expire,
		grace:        deps.GracePeriod,
		clock:        clock,
	}
}

func (s *service) Signup(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         domain.RoleUser,
		AuthProvider: domain.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	if err := s.issueCode(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// issueCode arms the signup sweeper, stores a fresh email code and sends it.
// The sweeper is armed first so a failed write or send still leaves the
// account on a deadline.
func (s *service) issueCode(ctx context.Context, u *domain.User) error {
	if _, err := s.sweeper.Register(u.UserID, s.grace.CheckInterval, s.grace.Window, s.expire); err != nil {
		return fmt.Errorf("arm signup grace period: %w", err)
	}
	code, err := token.NewCode()
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	v := &domain.UserVerification{
		UserID:    u.UserID,
		Type:      domain.VerificationEmail,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: u.CreatedAt.Add(s.grace.Window).Unix(),
	}
	if err := s.codes.Put(ctx, v); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	if err := s.notifier.Send(ctx, u.Email, code, domain.PurposeEmailVerification); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

func (s *service) VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("verification code is incorrect or has expired: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if u.Verified {
		return u, nil
	}
	if !s.withinWindow(u.CreatedAt) {
		return nil, fmt.Errorf("verification code is incorrect or has expired: %w", domain.ErrUnauthorized)
	}
	v, err := s.codes.Get(ctx, u.UserID, domain.VerificationEmail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("verification code is incorrect or has expired: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(req.Code)) != 1 {
		return nil, fmt.Errorf("verification code is incorrect or has expired: %w", domain.ErrUnauthorized)
	}
	if err := s.repo.Update(ctx, u.UserID, map[string]interface{}{fieldVerified: true}); err != nil {
		return nil, err
	}
	if err := s.codes.Delete(ctx, u.UserID, domain.VerificationEmail); err != nil {
		slog.Warn("failed to delete email verification code", "user_id", u.UserID, "err", err)
	}
	s.sweeper.Cancel(u.UserID)
	u.Verified = true
	return u, nil
}

func (s *service) ResendVerification(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Verified {
		return fmt.Errorf("account already verified: %w", domain.ErrConflict)
	}
	if !s.withinWindow(u.CreatedAt) {
		return fmt.Errorf("signup window has closed: %w", domain.ErrNotFound)
	}
	return s.issueCode(ctx, u)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) DeleteAccount(ctx context.Context, userID, password string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return fmt.Errorf("account has no password, sign in with %s: %w", u.AuthProvider, domain.ErrBadRequest)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("password is incorrect: %w", domain.ErrUnauthorized)
	}
	return s.Delete(ctx, userID)
}

// Delete removes the account and any codes it still holds.
func (s *service) Delete(ctx context.Context, userID string) error {
	s.sweeper.Cancel(userID)
	s.resetSweeper.Cancel(userID)
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	for _, t := range []string{domain.VerificationEmail, domain.VerificationPasswordReset} {
		if err := s.codes.Delete(ctx, userID, t); err != nil {
			slog.Warn("failed to delete verification code of deleted user", "user_id", userID, "type", t, "err", err)
		}
	}
	return nil
}

// ResumePending re-arms the signup sweeper for every unverified account, so a
// restart does not leave them in place forever. Accounts already past their
// window expire on the first tick.
func (s *service) ResumePending(ctx context.Context) (int, error) {
	users, err := s.repo.ScanUnverified(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan unverified users: %w", err)
	}
	n := 0
	for _, u := range users {
		if u.AuthProvider != "" && u.AuthProvider != domain.AuthProviderLocal {
			continue
		}
		if _, err := s.sweeper.Register(u.UserID, s.grace.CheckInterval, s.grace.Window, s.expire); err != nil {
			return n, fmt.Errorf("arm signup grace period: %w", err)
		}
		n++
	}
	return n, nil
}

// withinWindow reports whether a code anchored at issued is still usable.
// Expiry is inclusive, matching the sweeper.
func (s *service) withinWindow(issued time.Time) bool {
	return s.clock.Now().Sub(issued) < s.grace.Window
}
