package model

import (
	"time"

	"gorm.io/gorm"
)

// LeaseStatus is the lifecycle status of a lease agreement
type LeaseStatus string

const (
	LeaseStatusDraft            LeaseStatus = "draft"
	LeaseStatusPending          LeaseStatus = "pending"
	LeaseStatusPendingSignature LeaseStatus = "pending_signature"
	LeaseStatusActive           LeaseStatus = "active"
	LeaseStatusCompleted        LeaseStatus = "completed"
	LeaseStatusExpired          LeaseStatus = "expired"
	LeaseStatusCancelled        LeaseStatus = "cancelled"
)

// RequiredSignatures is the signature quorum for activating a lease:
// exactly one tenant and one landlord signature.
const RequiredSignatures = 2

// LeaseAgreement represents a tenancy contract stored in the database.
// A lease becomes active only once both parties have signed; it is never
// hard-deleted, its lifecycle is status-driven.
type LeaseAgreement struct {
	ID        uint           `json:"agreement_id" gorm:"primaryKey"`
	UnitID    uint           `json:"unit_id" gorm:"index;not null"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Status    LeaseStatus    `json:"status" gorm:"type:varchar(32);default:'draft';index"`
	SignedAt  *time.Time     `json:"signed_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Signatures []LeaseSignature `json:"signatures,omitempty" gorm:"foreignKey:AgreementID"`
}
