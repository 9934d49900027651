package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/studyshare-api/internal/domain"
	"github.com/studyshare-api/internal/graceperiod"
)

// PendingAccounts exposes unverified users to the signup sweeper.
// Key: user_id. A verified user is resolved; a missing user is absent.
type PendingAccounts struct {
	users *UserRepo
	codes *VerificationRepo
}

func NewPendingAccounts(users *UserRepo, codes *VerificationRepo) *PendingAccounts {
	return &PendingAccounts{users: users, codes: codes}
}

func (p *PendingAccounts) Get(ctx context.Context, userID string) (graceperiod.Entity, error) {
	u, err := p.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return graceperiod.Entity{Key: userID, State: graceperiod.StateAbsent}, nil
	}
	if err != nil {
		return graceperiod.Entity{}, err
	}
	return accountEntity(u), nil
}

// Expire deletes the user if it is still unverified, then drops its code.
func (p *PendingAccounts) Expire(ctx context.Context, e graceperiod.Entity) error {
	if err := p.users.DeleteUnverified(ctx, e.Key); err != nil {
		return err
	}
	if err := p.codes.Delete(ctx, e.Key, domain.VerificationEmail); err != nil {
		slog.Warn("failed to delete email code of expired account", "user_id", e.Key, "err", err)
	}
	return nil
}

func accountEntity(u *domain.User) graceperiod.Entity {
	e := graceperiod.Entity{Key: u.UserID, CreatedAt: u.CreatedAt, State: graceperiod.StatePending}
	if u.Verified {
		e.State = graceperiod.StateResolved
	}
	return e
}

// PendingResets exposes outstanding password-reset codes to the reset sweeper.
// Key: user_id. Using a code deletes it, so a used code reads as absent.
type PendingResets struct {
	codes *VerificationRepo
}

func NewPendingResets(codes *VerificationRepo) *PendingResets {
	return &PendingResets{codes: codes}
}

func (p *PendingResets) Get(ctx context.Context, userID string) (graceperiod.Entity, error) {
	v, err := p.codes.Get(ctx, userID, domain.VerificationPasswordReset)
	if errors.Is(err, domain.ErrNotFound) {
		return graceperiod.Entity{Key: userID, State: graceperiod.StateAbsent}, nil
	}
	if err != nil {
		return graceperiod.Entity{}, err
	}
	return graceperiod.Entity{Key: userID, CreatedAt: v.IssuedAt, State: graceperiod.StatePending}, nil
}

// Expire clears the code if it is still the one the sweeper saw.
func (p *PendingResets) Expire(ctx context.Context, e graceperiod.Entity) error {
	return p.codes.DeleteIssuedAt(ctx, e.Key, domain.VerificationPasswordReset, e.CreatedAt)
}
