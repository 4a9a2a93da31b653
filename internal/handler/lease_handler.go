package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lease-service/internal/model"
	"lease-service/internal/otp"
	"lease-service/internal/signing"
	"lease-service/pkg/logger"
	"lease-service/prometheus"
)

// LeaseHandler serves the lease e-signature endpoints
type LeaseHandler struct {
	signing *signing.Service
	db      *gorm.DB
}

// NewLeaseHandler creates a lease handler
func NewLeaseHandler(signingService *signing.Service, db *gorm.DB) *LeaseHandler {
	return &LeaseHandler{signing: signingService, db: db}
}

type otpRequest struct {
	AgreementID uint   `json:"agreement_id"`
	Role        string `json:"role"`
	Email       string `json:"email"`
}

type otpVerifyRequest struct {
	AgreementID uint   `json:"agreement_id"`
	Role        string `json:"role"`
	Email       string `json:"email"`
	OtpCode     string `json:"otp_code"`
}

// RequestOtp handles POST /leases/otp/request
func (h *LeaseHandler) RequestOtp(c echo.Context) error {
	log := logger.FromEcho(c)

	var req otpRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse OTP request", zap.Error(err))
		prometheus.RecordSigningError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.AgreementID == 0 || req.Role == "" || req.Email == "" {
		prometheus.RecordSigningError("missing_parameter")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agreement_id, role and email are required"})
	}

	role := model.SignerRole(req.Role)
	if !role.Valid() {
		prometheus.RecordSigningError("invalid_role")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be tenant or landlord"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	err := h.signing.RequestOTP(c.Request().Context(), req.AgreementID, role, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, signing.ErrSignatureNotFound):
			prometheus.RecordSigningError("not_found")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No signature record found for this lease."})
		case errors.Is(err, signing.ErrAlreadySigned):
			prometheus.RecordSigningError("already_signed")
			return c.JSON(http.StatusConflict, echo.Map{"error": "This party has already signed."})
		default:
			log.Error("Failed to issue signing OTP",
				zap.Uint("agreement_id", req.AgreementID),
				zap.Error(err))
			prometheus.RecordSigningError("internal")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send OTP"})
		}
	}

	prometheus.OtpIssuedCounter.Inc()
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent"})
}

// VerifyOtp handles POST /leases/otp/verify
func (h *LeaseHandler) VerifyOtp(c echo.Context) error {
	log := logger.FromEcho(c)

	var req otpVerifyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse OTP verification request", zap.Error(err))
		prometheus.RecordSigningError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.AgreementID == 0 || req.Role == "" || req.Email == "" || req.OtpCode == "" {
		prometheus.RecordSigningError("missing_parameter")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "agreement_id, role, email and otp_code are required"})
	}

	role := model.SignerRole(req.Role)
	if !role.Valid() {
		prometheus.RecordSigningError("invalid_role")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be tenant or landlord"})
	}

	defer prometheus.TrackDBOperation("transaction")(time.Now())
	result, err := h.signing.VerifyOTP(c.Request().Context(), req.AgreementID, role, req.Email, req.OtpCode)
	if err != nil {
		switch {
		case errors.Is(err, signing.ErrSignatureNotFound):
			prometheus.OtpVerifyCounter.WithLabelValues("not_found").Inc()
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No signature record found for this lease."})
		case errors.Is(err, otp.ErrInvalidCode):
			prometheus.OtpVerifyCounter.WithLabelValues("invalid_code").Inc()
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid OTP code."})
		case errors.Is(err, otp.ErrExpired):
			prometheus.OtpVerifyCounter.WithLabelValues("expired").Inc()
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "OTP code has expired."})
		case errors.Is(err, otp.ErrTooManyAttempts):
			prometheus.OtpVerifyCounter.WithLabelValues("locked").Inc()
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Too many incorrect attempts. Request a new code."})
		case errors.Is(err, otp.ErrNotIssued):
			prometheus.OtpVerifyCounter.WithLabelValues("not_issued").Inc()
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "No OTP code has been issued for this signature."})
		default:
			log.Error("OTP verification failed",
				zap.Uint("agreement_id", req.AgreementID),
				zap.Error(err))
			prometheus.OtpVerifyCounter.WithLabelValues("error").Inc()
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
		}
	}

	prometheus.OtpVerifyCounter.WithLabelValues("signed").Inc()
	if result.LeaseActivated {
		prometheus.LeaseActivationCounter.Inc()
	}

	message := "Signature recorded."
	if result.AlreadySigned {
		message = "Signature was already recorded."
	}
	if result.LeaseStatus == model.LeaseStatusActive {
		message = "Signature recorded. Lease agreement is now active."
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":         true,
		"message":         message,
		"signed_count":    result.SignedCount,
		"lease_status":    result.LeaseStatus,
		"lease_activated": result.LeaseActivated,
	})
}

// GetLease handles GET /leases/:id and reports signing progress so clients
// can poll after a partial failure
func (h *LeaseHandler) GetLease(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lease ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var lease model.LeaseAgreement
	if result := h.db.Preload("Signatures").First(&lease, id); result.Error != nil {
		log.Warn("Lease not found", zap.Uint64("agreement_id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "lease agreement not found"})
	}

	var signedCount int
	for _, sig := range lease.Signatures {
		if sig.Status == model.SignatureStatusSigned {
			signedCount++
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"lease":               lease,
		"signed_count":        signedCount,
		"required_signatures": model.RequiredSignatures,
		"quorum_reached":      signedCount >= model.RequiredSignatures,
	})
}

// Reconcile handles POST /leases/:id/reconcile, the idempotent safety net
// that recomputes lease status from signature state
func (h *LeaseHandler) Reconcile(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lease ID"})
	}

	defer prometheus.TrackDBOperation("transaction")(time.Now())
	result, err := h.signing.Reconcile(c.Request().Context(), uint(id))
	if err != nil {
		if errors.Is(err, signing.ErrLeaseNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lease agreement not found"})
		}
		log.Error("Lease reconciliation failed", zap.Uint64("agreement_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconciliation failed"})
	}

	if result.LeaseActivated {
		prometheus.LeaseActivationCounter.Inc()
		log.Info("Lease promoted during reconciliation", zap.Uint64("agreement_id", id))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"lease_status":    result.LeaseStatus,
		"signed_count":    result.SignedCount,
		"lease_activated": result.LeaseActivated,
	})
}
