// Package otp implements a reusable one-time-password challenge: code
// generation, validation with a bounded attempt budget, and expiry. Every
// OTP-gated flow in the service goes through this package so the lockout
// policy stays uniform across features.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// CodeLength is the number of digits in a generated code
	CodeLength = 6

	// DefaultTTL is the validity window fixed at issuance time
	DefaultTTL = 10 * time.Minute

	// DefaultMaxAttempts is the attempt budget before a code is locked
	DefaultMaxAttempts = 5
)

var (
	// ErrNotIssued means no code has been issued for this challenge
	ErrNotIssued = errors.New("no OTP code issued")

	// ErrExpired means the code's validity window has passed
	ErrExpired = errors.New("OTP code expired")

	// ErrInvalidCode means the submitted code does not match the issued one
	ErrInvalidCode = errors.New("invalid OTP code")

	// ErrTooManyAttempts means the attempt budget is exhausted and the code is dead
	ErrTooManyAttempts = errors.New("too many OTP attempts")
)

// GenerateCode returns a random numeric code of CodeLength digits
func GenerateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate OTP code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}

// Challenge is the persisted state of one issued code. Callers load it from
// their own storage, call Verify, and write back the mutated attempt counter.
type Challenge struct {
	Code        string
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
}

// maxAttempts returns the configured budget, falling back to the default
func (c *Challenge) maxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Verify checks a submitted code against the challenge at the given instant.
// A failed match consumes one attempt; expiry and exhausted budgets do not,
// since the code is already unusable. The caller must persist Attempts after
// every call that returns ErrInvalidCode.
func (c *Challenge) Verify(submitted string, now time.Time) error {
	if c.Code == "" {
		return ErrNotIssued
	}
	if c.Attempts >= c.maxAttempts() {
		return ErrTooManyAttempts
	}
	if now.After(c.ExpiresAt) {
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(c.Code)) != 1 {
		c.Attempts++
		if c.Attempts >= c.maxAttempts() {
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}
	return nil
}
