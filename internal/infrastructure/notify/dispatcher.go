package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studyshare-api/internal/domain"
	"github.com/studyshare-api/internal/infrastructure/smtp"
	"github.com/studyshare-api/internal/infrastructure/sns"
)

// ErrNoChannel is returned when no sender can reach the destination.
var ErrNoChannel = errors.New("no delivery channel for destination")

// Dispatcher delivers one-time codes. Destinations starting with "+" are E.164
// phone numbers and go out by SMS; everything else is treated as an email address.
type Dispatcher struct {
	mailer smtp.Mailer
	sms    sns.SMSSender
}

// NewDispatcher builds a Dispatcher. sms may be nil when SNS is unavailable.
func NewDispatcher(mailer smtp.Mailer, sms sns.SMSSender) *Dispatcher {
	return &Dispatcher{mailer: mailer, sms: sms}
}

func (d *Dispatcher) Send(ctx context.Context, destination, code string, purpose domain.Purpose) error {
	subject, body, err := render(code, purpose)
	if err != nil {
		return err
	}
	if strings.HasPrefix(destination, "+") {
		if d.sms == nil {
			return fmt.Errorf("sms to %s: %w", destination, ErrNoChannel)
		}
		return d.sms.SendSMS(ctx, destination, body)
	}
	if d.mailer == nil {
		return fmt.Errorf("email to %s: %w", destination, ErrNoChannel)
	}
	return d.mailer.SendEmail(destination, subject, body)
}

func render(code string, purpose domain.Purpose) (subject, body string, err error) {
	switch purpose {
	case domain.PurposeEmailVerification:
		return "Confirm your StudyShare account", "Your verification code: " + code, nil
	case domain.PurposePasswordReset:
		return "Reset your StudyShare password", "Your password reset code: " + code, nil
	default:
		return "", "", fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}
}
