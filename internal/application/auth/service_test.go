package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studyshare-api/internal/config"
	"github.com/studyshare-api/internal/domain"
	"github.com/studyshare-api/internal/graceperiod"
	"github.com/studyshare-api/internal/graceperiod/graceperiodtest"
	"github.com/studyshare-api/internal/infrastructure/google"
	"github.com/studyshare-api/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Put(ctx context.Context, v *domain.UserVerification) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockCodeStore) Get(ctx context.Context, userID, verType string) (*domain.UserVerification, error) {
	args := m.Called(ctx, userID, verType)
	if v, _ := args.Get(0).(*domain.UserVerification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) Delete(ctx context.Context, userID, verType string) error {
	return m.Called(ctx, userID, verType).Error(0)
}
func (m *mockCodeStore) ScanByType(ctx context.Context, verType string) ([]domain.UserVerification, error) {
	args := m.Called(ctx, verType)
	codes, _ := args.Get(0).([]domain.UserVerification)
	return codes, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, destination, code string, purpose domain.Purpose) error {
	return m.Called(ctx, destination, code, purpose).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, role string) (string, error) {
	args := m.Called(userID, role)
	return args.String(0), args.Error(1)
}

type mockGoogleVerifier struct{ mock.Mock }

func (m *mockGoogleVerifier) Verify(ctx context.Context, token string) (*google.Payload, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*google.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- builder ---

var (
	t0    = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	grace = config.GracePeriod{Window: 10 * time.Minute, CheckInterval: time.Minute}
)

type fixture struct {
	users    *mockUserStore
	codes    *mockCodeStore
	notifier *mockNotifier
	jwt      *mockJWTSigner
	google   *mockGoogleVerifier
	store    *graceperiodtest.Store
	clock    *graceperiodtest.Clock
	resets   *graceperiod.Registry
	svc      Service
}

// newFixture wires the service to a real reset registry on a fake clock. The
// in-memory store mirrors the reset codes the service writes.
func newFixture() *fixture {
	f := &fixture{
		users:    &mockUserStore{},
		codes:    &mockCodeStore{},
		notifier: &mockNotifier{},
		jwt:      &mockJWTSigner{},
		google:   &mockGoogleVerifier{},
		store:    graceperiodtest.NewStore(),
		clock:    graceperiodtest.NewClock(t0),
	}
	f.resets = graceperiod.New("password_reset", f.store,
		graceperiod.WithClock(f.clock), graceperiod.WithLogger(logging.Discard()))
	f.svc = NewService(ServiceDeps{
		UserRepo:       f.users,
		CodeRepo:       f.codes,
		Notifier:       f.notifier,
		Sweeper:        f.resets,
		Expire:         f.store.Delete,
		GracePeriod:    grace,
		JWTProvider:    f.jwt,
		GoogleVerifier: f.google,
		Clock:          f.clock,
	})
	return f
}

func hashed(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func strPtr(s string) *string { return &s }

func verifiedUser(t *testing.T) *domain.User {
	return &domain.User{
		UserID:       "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		Phone:        strPtr("+15551234567"),
		PasswordHash: hashed(t, "password123"),
		Role:         domain.RoleUser,
		Verified:     true,
	}
}

// requestReset runs a successful email reset request and returns the stored code.
func (f *fixture) requestReset(t *testing.T, u *domain.User) *domain.UserVerification {
	t.Helper()
	var stored *domain.UserVerification
	f.users.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	f.codes.On("Put", mock.Anything, mock.AnythingOfType("*domain.UserVerification")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.UserVerification)
			f.store.Put(stored.UserID, stored.IssuedAt)
		}).Return(nil).Once()
	f.notifier.On("Send", mock.Anything, u.Email, mock.Anything, domain.PurposePasswordReset).Return(nil).Once()

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: u.Email}))
	require.NotNil(t, stored)
	return stored
}

// --- Login ---

func TestLogin_UnknownUser(t *testing.T) {
	f := newFixture()
	f.users.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
	f.users.On("GetByEmail", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "x"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture()
	f.users.On("GetByUsername", mock.Anything, "alice").Return(verifiedUser(t), nil)

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "nope"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	f.jwt.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

func TestLogin_UnverifiedRejected(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	u.Verified = false
	f.users.On("GetByUsername", mock.Anything, "alice").Return(u, nil)

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "password123"})

	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestLogin_ByEmail(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	f.users.On("GetByUsername", mock.Anything, "alice@example.com").Return(nil, domain.ErrNotFound)
	f.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	f.jwt.On("Sign", "u1", domain.RoleUser).Return("signed.jwt", nil)

	res, err := f.svc.Login(context.Background(), LoginRequest{Username: "alice@example.com", Password: "password123"})

	require.NoError(t, err)
	assert.Equal(t, "signed.jwt", res.Token)
	assert.Same(t, u, res.User)
}

// --- LoginWithGoogle ---

func TestLoginWithGoogle_InvalidToken(t *testing.T) {
	f := newFixture()
	f.google.On("Verify", mock.Anything, "bad").Return(nil, domain.ErrUnauthorized)

	_, err := f.svc.LoginWithGoogle(context.Background(), "bad")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLoginWithGoogle_UnverifiedGoogleEmail(t *testing.T) {
	f := newFixture()
	f.google.On("Verify", mock.Anything, "tok").Return(&google.Payload{Email: "a@b.com"}, nil)

	_, err := f.svc.LoginWithGoogle(context.Background(), "tok")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLoginWithGoogle_CreatesVerifiedAccount(t *testing.T) {
	f := newFixture()
	f.google.On("Verify", mock.Anything, "tok").Return(&google.Payload{
		Sub: "g-123", Email: "new@example.com", EmailVerified: true, FirstName: "New", LastName: "User",
	}, nil)
	f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound)
	f.users.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	f.jwt.On("Sign", mock.Anything, domain.RoleUser).Return("signed.jwt", nil)

	res, err := f.svc.LoginWithGoogle(context.Background(), "tok")

	require.NoError(t, err)
	assert.True(t, res.User.Verified)
	assert.Equal(t, domain.AuthProviderGoogle, res.User.AuthProvider)
	assert.Equal(t, "g-123", res.User.GoogleSub)
	assert.Empty(t, res.User.PasswordHash)
	assert.Equal(t, t0, res.User.CreatedAt)
}

func TestLoginWithGoogle_ExistingUnverifiedAccount(t *testing.T) {
	f := newFixture()
	f.google.On("Verify", mock.Anything, "tok").Return(&google.Payload{Email: "a@b.com", EmailVerified: true}, nil)
	f.users.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.User{UserID: "u1"}, nil)

	_, err := f.svc.LoginWithGoogle(context.Background(), "tok")

	assert.True(t, errors.Is(err, domain.ErrForbidden))
	f.users.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- RequestPasswordReset ---

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	f := newFixture()
	f.users.On("GetByEmail", mock.Anything, "x@x.com").Return(nil, domain.ErrNotFound)

	err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: "x@x.com"})

	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 0, f.resets.Len())
}

func TestRequestPasswordReset_SMSWithoutPhone(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	u.Phone = nil
	f.users.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)

	err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: u.Email, Channel: ChannelSMS})

	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRequestPasswordReset_SMSUsesPhone(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	f.users.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	f.codes.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, "+15551234567", mock.Anything, domain.PurposePasswordReset).Return(nil)

	err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Email: u.Email, Channel: ChannelSMS})

	require.NoError(t, err)
	f.notifier.AssertExpectations(t)
}

func TestRequestPasswordReset_ArmsSweeper(t *testing.T) {
	f := newFixture()
	code := f.requestReset(t, verifiedUser(t))

	assert.Equal(t, domain.VerificationPasswordReset, code.Type)
	assert.Equal(t, t0, code.IssuedAt)
	job, ok := f.resets.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, t0.Add(grace.Window), job.Deadline())
}

func TestRequestPasswordReset_UnusedCodeClearedAtDeadline(t *testing.T) {
	f := newFixture()
	f.requestReset(t, verifiedUser(t))

	f.clock.Advance(grace.Window - time.Second)
	assert.True(t, f.store.Exists("u1"))

	f.clock.Advance(time.Second + grace.CheckInterval)
	assert.False(t, f.store.Exists("u1"))
	assert.Equal(t, 1, f.store.Deletes("u1"))
	assert.Equal(t, 0, f.resets.Len())
}

func TestRequestPasswordReset_ReissueExtendsWindow(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	f.requestReset(t, u)
	first, _ := f.resets.Lookup("u1")

	f.clock.Advance(5 * time.Minute)
	f.requestReset(t, u)
	second, _ := f.resets.Lookup("u1")
	assert.Same(t, first, second)

	f.clock.Advance(grace.Window - time.Minute)
	assert.True(t, f.store.Exists("u1"))

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.store.Deletes("u1"))
}

// --- ResetPassword ---

func TestResetPassword_HappyPathCancelsSweeper(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	code := f.requestReset(t, u)
	f.clock.Advance(2 * time.Minute)

	f.codes.On("Get", mock.Anything, "u1", domain.VerificationPasswordReset).Return(code, nil)
	f.users.On("Update", mock.Anything, "u1", mock.AnythingOfType("map[string]interface {}")).Return(nil)
	f.codes.On("Delete", mock.Anything, "u1", domain.VerificationPasswordReset).
		Run(func(mock.Arguments) { f.store.Resolve("u1") }).Return(nil)

	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Email: u.Email, Code: code.Code, NewPassword: "new-password",
	})

	require.NoError(t, err)
	_, ok := f.resets.Lookup("u1")
	assert.False(t, ok)

	call := f.users.Calls[len(f.users.Calls)-1]
	updates := call.Arguments.Get(2).(map[string]interface{})
	newHash, _ := updates["password_hash"].(string)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password")))

	f.clock.Advance(grace.Window)
	assert.Equal(t, 0, f.store.Deletes("u1"))
}

func TestResetPassword_CodeDeleteFailureLeavesSweeperArmed(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	code := f.requestReset(t, u)
	f.clock.Advance(2 * time.Minute)

	f.codes.On("Get", mock.Anything, "u1", domain.VerificationPasswordReset).Return(code, nil)
	f.users.On("Update", mock.Anything, "u1", mock.AnythingOfType("map[string]interface {}")).Return(nil)
	f.codes.On("Delete", mock.Anything, "u1", domain.VerificationPasswordReset).Return(errors.New("throttled"))

	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{
		Email: u.Email, Code: code.Code, NewPassword: "new-password",
	})

	require.NoError(t, err)
	_, ok := f.resets.Lookup("u1")
	assert.True(t, ok)

	f.clock.Advance(grace.Window)
	assert.False(t, f.store.Exists("u1"))
	assert.Equal(t, 1, f.store.Deletes("u1"))
	assert.Equal(t, 0, f.resets.Len())
}

func TestResetPassword_WrongCode(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	f.users.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	f.codes.On("Get", mock.Anything, "u1", domain.VerificationPasswordReset).
		Return(&domain.UserVerification{UserID: "u1", Code: "123456", IssuedAt: t0}, nil)

	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: u.Email, Code: "654321", NewPassword: "new-password"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_CodeAtDeadlineRejected(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	f.users.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	f.codes.On("Get", mock.Anything, "u1", domain.VerificationPasswordReset).
		Return(&domain.UserVerification{UserID: "u1", Code: "123456", IssuedAt: t0.Add(-grace.Window)}, nil)

	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: u.Email, Code: "123456", NewPassword: "new-password"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestResetPassword_NoOutstandingCode(t *testing.T) {
	f := newFixture()
	u := verifiedUser(t)
	f.users.On("GetByEmail", mock.Anything, u.Email).Return(u, nil)
	f.codes.On("Get", mock.Anything, "u1", domain.VerificationPasswordReset).Return(nil, domain.ErrNotFound)

	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: u.Email, Code: "123456", NewPassword: "new-password"})

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- ResumePending ---

func TestResumePending_RearmsOutstandingCodes(t *testing.T) {
	f := newFixture()
	codes := []domain.UserVerification{
		{UserID: "old", Type: domain.VerificationPasswordReset, IssuedAt: t0.Add(-time.Hour)},
		{UserID: "new", Type: domain.VerificationPasswordReset, IssuedAt: t0},
	}
	for _, c := range codes {
		f.store.Put(c.UserID, c.IssuedAt)
	}
	f.codes.On("ScanByType", mock.Anything, domain.VerificationPasswordReset).Return(codes, nil)

	n, err := f.svc.ResumePending(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.clock.Advance(grace.CheckInterval)
	assert.Equal(t, 1, f.store.Deletes("old"))
	assert.True(t, f.store.Exists("new"))
}
