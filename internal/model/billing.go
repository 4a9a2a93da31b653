package model

import (
	"time"
)

// BillingStatus is the stored status of a billing row. Whether a bill is
// actually paid is computed at read time from confirmed payments, not from
// this field.
type BillingStatus string

const (
	BillingStatusPending   BillingStatus = "pending"
	BillingStatusSent      BillingStatus = "sent"
	BillingStatusCancelled BillingStatus = "cancelled"
)

// Billing represents one billing-period invoice for a unit/lease. Rows are
// created by the billing-generation process and are read-only in this service.
type Billing struct {
	ID             uint          `json:"billing_id" gorm:"primaryKey"`
	AgreementID    uint          `json:"agreement_id" gorm:"index;not null"`
	UnitID         uint          `json:"unit_id" gorm:"index;not null"`
	BillingPeriod  time.Time     `json:"billing_period"`
	DueDate        time.Time     `json:"due_date" gorm:"index"`
	TotalAmountDue float64       `json:"total_amount_due"`
	Status         BillingStatus `json:"status" gorm:"type:varchar(16);default:'pending'"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
