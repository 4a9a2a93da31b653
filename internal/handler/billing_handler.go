package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"lease-service/internal/billing"
	"lease-service/pkg/logger"
	"lease-service/prometheus"
)

// BillingHandler serves the billing-due read path
type BillingHandler struct {
	evaluator *billing.Evaluator
}

// NewBillingHandler creates a billing handler
func NewBillingHandler(evaluator *billing.Evaluator) *BillingHandler {
	return &BillingHandler{evaluator: evaluator}
}

// GetPaymentDue handles GET /leases/:id/payment-due. The response carries a
// tagged variant: overdue bills always win; otherwise the single most recent
// bill is returned, whatever its state.
func (h *BillingHandler) GetPaymentDue(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lease ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	result, err := h.evaluator.Evaluate(c.Request().Context(), uint(id))
	if err != nil {
		log.Error("Billing-due evaluation failed",
			zap.Uint64("agreement_id", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to evaluate billing"})
	}

	prometheus.BillingEvaluationCounter.WithLabelValues(result.Kind).Inc()

	return c.JSON(http.StatusOK, echo.Map{"billing": result})
}
