package model

import (
	"time"
)

// SignerRole identifies which party a signature belongs to
type SignerRole string

const (
	SignerRoleTenant   SignerRole = "tenant"
	SignerRoleLandlord SignerRole = "landlord"
)

// Valid reports whether the role is one of the known signer roles
func (r SignerRole) Valid() bool {
	return r == SignerRoleTenant || r == SignerRoleLandlord
}

// SignatureStatus is the state of one party's signature obligation
type SignatureStatus string

const (
	SignatureStatusPending SignatureStatus = "pending"
	SignatureStatusSigned  SignatureStatus = "signed"
)

// LeaseSignature represents one party's obligation to sign a specific lease.
// The OTP code is single-use: it is cleared when the signature is recorded and
// never re-validated afterwards. OtpAttempts enforces a bounded-attempts policy
// so a code dies after too many wrong submissions.
type LeaseSignature struct {
	ID           uint            `json:"signature_id" gorm:"primaryKey"`
	AgreementID  uint            `json:"agreement_id" gorm:"not null;uniqueIndex:idx_lease_signer"`
	Role         SignerRole      `json:"role" gorm:"type:varchar(16);not null;uniqueIndex:idx_lease_signer"`
	Email        string          `json:"email" gorm:"type:varchar(255);not null"`
	OtpCode      *string         `json:"-" gorm:"type:varchar(12)"`
	OtpExpiresAt *time.Time      `json:"-"`
	OtpAttempts  int             `json:"-" gorm:"default:0"`
	Status       SignatureStatus `json:"status" gorm:"type:varchar(16);default:'pending'"`
	SignedAt     *time.Time      `json:"signed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
