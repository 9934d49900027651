package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studyshare-api/internal/domain"
	"google.golang.org/api/idtoken"
)

// Payload is the identity a Google ID token vouches for.
type Payload struct {
	Sub           string
	Email         string
	EmailVerified bool
	FirstName     string
	LastName      string
}

// Verifier checks Google ID tokens issued for one OAuth client.
type Verifier struct {
	clientID string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID, validate: idtoken.Validate}
}

var errNotConfigured = errors.New("google sign-in is not configured")

// Verify validates the token signature and audience and extracts the account
// identity. Any failure is reported as domain.ErrUnauthorized.
func (v *Verifier) Verify(ctx context.Context, token string) (*Payload, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("%v: %w", errNotConfigured, domain.ErrUnauthorized)
	}
	p, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	return payloadFromClaims(p.Subject, p.Claims), nil
}

func payloadFromClaims(sub string, claims map[string]interface{}) *Payload {
	email, _ := claims["email"].(string)
	firstName, _ := claims["given_name"].(string)
	lastName, _ := claims["family_name"].(string)

	// email_verified arrives as a bool or, from some issuers, the string "true".
	var verified bool
	switch ev := claims["email_verified"].(type) {
	case bool:
		verified = ev
	case string:
		verified = strings.EqualFold(ev, "true")
	}

	return &Payload{
		Sub:           sub,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		EmailVerified: verified,
		FirstName:     firstName,
		LastName:      lastName,
	}
}
