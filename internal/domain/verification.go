package domain

import "time"

// UserVerification stores a one-time code.
// PK: user_id, SK: type ("email" | "password_reset").
// ExpiresAt is a Unix timestamp used as DynamoDB TTL; the grace-period sweeper
// clears codes long before TTL deletion catches up.
type UserVerification struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Type      string    `json:"type" dynamodbav:"type"`
	Code      string    `json:"-" dynamodbav:"code"`
	IssuedAt  time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

const (
	VerificationEmail         = "email"
	VerificationPasswordReset = "password_reset"
)

// Purpose tells the notifier which message template to use for a code.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)
