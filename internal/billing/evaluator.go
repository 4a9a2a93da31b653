// Package billing implements the billing-due evaluation read path: it
// classifies a lease's billing history against confirmed payments and decides
// what the tenant dashboard should surface.
package billing

import (
	"context"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"lease-service/internal/model"
)

// Bill classification values
type BillState string

const (
	BillStatePaid    BillState = "paid"
	BillStateUnpaid  BillState = "unpaid"
	BillStateOverdue BillState = "overdue"
)

// Result kinds. Overdue bills always take precedence; when nothing is late
// the single most recent bill is shown whatever its state.
const (
	KindNone     = "none"
	KindOverdue  = "overdue"
	KindUpcoming = "upcoming"
)

// BillView is one billing row annotated with its computed classification
type BillView struct {
	BillingID      uint      `json:"billing_id"`
	AgreementID    uint      `json:"agreement_id"`
	UnitID         uint      `json:"unit_id"`
	BillingPeriod  time.Time `json:"billing_period"`
	DueDate        time.Time `json:"due_date"`
	TotalAmountDue float64   `json:"total_amount_due"`
	State          BillState `json:"state"`
	DaysLate       int       `json:"days_late,omitempty"`
}

// Result is the tagged outcome of an evaluation. Exactly one of Bills/Bill is
// set depending on Kind, so clients never have to sniff the shape.
type Result struct {
	Kind  string     `json:"kind"`
	Bills []BillView `json:"bills,omitempty"`
	Bill  *BillView  `json:"bill,omitempty"`
}

// Evaluator walks a lease's billing history and applies the due-priority rule
type Evaluator struct {
	db *gorm.DB
}

// NewEvaluator creates a billing-due evaluator
func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// Evaluate classifies every billing row of the lease as paid, unpaid or
// overdue and returns either the full overdue set or, when nothing is late,
// the single most recent bill.
func (e *Evaluator) Evaluate(ctx context.Context, agreementID uint) (Result, error) {
	return e.EvaluateAt(ctx, agreementID, time.Now())
}

// EvaluateAt is Evaluate with an explicit evaluation instant
func (e *Evaluator) EvaluateAt(ctx context.Context, agreementID uint, now time.Time) (Result, error) {
	var billings []model.Billing
	err := e.db.WithContext(ctx).
		Where("agreement_id = ? AND total_amount_due > 0", agreementID).
		Order("due_date ASC").
		Find(&billings).Error
	if err != nil {
		return Result{}, fmt.Errorf("load billings: %w", err)
	}

	if len(billings) == 0 {
		return Result{Kind: KindNone}, nil
	}

	paid, err := e.confirmedPayments(ctx, billings)
	if err != nil {
		return Result{}, err
	}

	views := make([]BillView, 0, len(billings))
	var overdue []BillView
	for _, b := range billings {
		view := classify(b, paid[b.ID], now)
		views = append(views, view)
		if view.State == BillStateOverdue {
			overdue = append(overdue, view)
		}
	}

	if len(overdue) > 0 {
		return Result{Kind: KindOverdue, Bills: overdue}, nil
	}

	// Nothing late: surface the most current invoice, whatever its state
	latest := views[len(views)-1]
	return Result{Kind: KindUpcoming, Bill: &latest}, nil
}

// confirmedPayments returns the set of billing IDs covered by a confirmed
// payment, fetched with a single IN-clause query
func (e *Evaluator) confirmedPayments(ctx context.Context, billings []model.Billing) (map[uint]bool, error) {
	ids := make([]uint, 0, len(billings))
	for _, b := range billings {
		ids = append(ids, b.ID)
	}

	var billIDs []uint
	err := e.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("bill_id IN ? AND payment_status = ?", ids, model.PaymentStatusConfirmed).
		Pluck("bill_id", &billIDs).Error
	if err != nil {
		return nil, fmt.Errorf("load confirmed payments: %w", err)
	}

	paid := make(map[uint]bool, len(billIDs))
	for _, id := range billIDs {
		paid[id] = true
	}
	return paid, nil
}

// classify computes the state of one billing row at the given instant
func classify(b model.Billing, hasConfirmedPayment bool, now time.Time) BillView {
	view := BillView{
		BillingID:      b.ID,
		AgreementID:    b.AgreementID,
		UnitID:         b.UnitID,
		BillingPeriod:  b.BillingPeriod,
		DueDate:        b.DueDate,
		TotalAmountDue: b.TotalAmountDue,
		State:          BillStateUnpaid,
	}

	if hasConfirmedPayment {
		view.State = BillStatePaid
		return view
	}

	if b.DueDate.Before(now) {
		view.State = BillStateOverdue
		view.DaysLate = DaysLate(b.DueDate, now)
	}
	return view
}

// DaysLate returns the calendar-day ceiling of how far past due the bill is
func DaysLate(dueDate, now time.Time) int {
	if !dueDate.Before(now) {
		return 0
	}
	return int(math.Ceil(now.Sub(dueDate).Hours() / 24))
}
