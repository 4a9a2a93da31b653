package model

import (
	"time"
)

// PaymentStatus is the settlement state of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment represents a tenant payment attempt or settlement against a billing
// row. Read-only in this service: a billing is considered paid iff a confirmed
// payment referencing it exists.
type Payment struct {
	ID            uint          `json:"payment_id" gorm:"primaryKey"`
	BillID        uint          `json:"bill_id" gorm:"index;not null"`
	AgreementID   uint          `json:"agreement_id" gorm:"index;not null"`
	AmountPaid    float64       `json:"amount_paid"`
	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(16);default:'pending';index"`
	Reference     string        `json:"reference" gorm:"type:varchar(64)"`
	PaymentDate   time.Time     `json:"payment_date"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
