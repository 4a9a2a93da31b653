package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lease-service/internal/billing"
	"lease-service/internal/model"
	"lease-service/internal/signing"
	"lease-service/pkg/config"
)

type nopSender struct{}

func (nopSender) SendSigningOTP(context.Context, string, string, uint) error { return nil }

type testEnv struct {
	e       *echo.Echo
	db      *gorm.DB
	lease   *LeaseHandler
	billing *BillingHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.LeaseAgreement{},
		&model.LeaseSignature{},
		&model.Billing{},
		&model.Payment{},
	))

	signingService := signing.NewService(db, nopSender{}, config.OTPConfig{
		TTL:         10 * time.Minute,
		MaxAttempts: 5,
	})

	return &testEnv{
		e:       echo.New(),
		db:      db,
		lease:   NewLeaseHandler(signingService, db),
		billing: NewBillingHandler(billing.NewEvaluator(db)),
	}
}

func (env *testEnv) seedLease(t *testing.T, tenantSigned, landlordSigned bool) model.LeaseAgreement {
	t.Helper()
	lease := model.LeaseAgreement{
		UnitID:    1,
		TenantID:  1,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:    model.LeaseStatusPendingSignature,
	}
	require.NoError(t, env.db.Create(&lease).Error)

	for role, signed := range map[model.SignerRole]bool{
		model.SignerRoleTenant:   tenantSigned,
		model.SignerRoleLandlord: landlordSigned,
	} {
		sig := model.LeaseSignature{
			AgreementID: lease.ID,
			Role:        role,
			Email:       string(role) + "@example.com",
			Status:      model.SignatureStatusPending,
		}
		if signed {
			now := time.Now()
			sig.Status = model.SignatureStatusSigned
			sig.SignedAt = &now
		}
		require.NoError(t, env.db.Create(&sig).Error)
	}
	return lease
}

// setOtp stores a known code so verification outcomes are deterministic
func (env *testEnv) setOtp(t *testing.T, agreementID uint, role model.SignerRole, code string, expiresAt time.Time) {
	t.Helper()
	err := env.db.Model(&model.LeaseSignature{}).
		Where("agreement_id = ? AND role = ?", agreementID, role).
		Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_expires_at": expiresAt,
			"otp_attempts":   0,
		}).Error
	require.NoError(t, err)
}

func (env *testEnv) postJSON(t *testing.T, h echo.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	require.NoError(t, h(c))
	return rec, decodeBody(t, rec)
}

func (env *testEnv) get(t *testing.T, h echo.HandlerFunc, leaseID string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(leaseID)
	require.NoError(t, h(c))
	return rec, decodeBody(t, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestOtp_missingParams(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.postJSON(t, env.lease.RequestOtp, `{"agreement_id": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "required")
}

func TestRequestOtp_invalidRole(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.postJSON(t, env.lease.RequestOtp,
		`{"agreement_id": 1, "role": "broker", "email": "x@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "tenant or landlord")
}

func TestRequestOtp_notFound(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.postJSON(t, env.lease.RequestOtp,
		`{"agreement_id": 99, "role": "tenant", "email": "tenant@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestOtp_success(t *testing.T) {
	env := newTestEnv(t)
	lease := env.seedLease(t, false, false)

	rec, body := env.postJSON(t, env.lease.RequestOtp,
		`{"agreement_id": `+itoa(lease.ID)+`, "role": "tenant", "email": "tenant@example.com"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OTP sent", body["message"])
}

func TestRequestOtp_conflictWhenAlreadySigned(t *testing.T) {
	env := newTestEnv(t)
	lease := env.seedLease(t, true, false)

	rec, _ := env.postJSON(t, env.lease.RequestOtp,
		`{"agreement_id": `+itoa(lease.ID)+`, "role": "tenant", "email": "tenant@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyOtp_invalidCode(t *testing.T) {
	// Stored code is 123456; submitting 000000 must leave the row untouched
	env := newTestEnv(t)
	lease := env.seedLease(t, false, false)
	env.setOtp(t, lease.ID, model.SignerRoleTenant, "123456", time.Now().Add(10*time.Minute))

	rec, body := env.postJSON(t, env.lease.VerifyOtp,
		`{"agreement_id": `+itoa(lease.ID)+`, "role": "tenant", "email": "tenant@example.com", "otp_code": "000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid OTP code.", body["error"])

	var sig model.LeaseSignature
	require.NoError(t, env.db.Where("agreement_id = ? AND role = ?", lease.ID, model.SignerRoleTenant).First(&sig).Error)
	assert.Equal(t, model.SignatureStatusPending, sig.Status)
}

func TestVerifyOtp_expiredCode(t *testing.T) {
	env := newTestEnv(t)
	lease := env.seedLease(t, false, false)
	env.setOtp(t, lease.ID, model.SignerRoleTenant, "123456", time.Now().Add(-time.Minute))

	rec, body := env.postJSON(t, env.lease.VerifyOtp,
		`{"agreement_id": `+itoa(lease.ID)+`, "role": "tenant", "email": "tenant@example.com", "otp_code": "123456"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OTP code has expired.", body["error"])
}

func TestVerifyOtp_missingParams(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.postJSON(t, env.lease.VerifyOtp, `{"agreement_id": 1, "role": "tenant"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyOtp_notFound(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.postJSON(t, env.lease.VerifyOtp,
		`{"agreement_id": 77, "role": "tenant", "email": "tenant@example.com", "otp_code": "123456"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyOtp_reachingQuorumActivatesLease(t *testing.T) {
	// Landlord signed earlier; the tenant's correct code completes the quorum
	env := newTestEnv(t)
	lease := env.seedLease(t, false, true)
	env.setOtp(t, lease.ID, model.SignerRoleTenant, "123456", time.Now().Add(10*time.Minute))

	rec, body := env.postJSON(t, env.lease.VerifyOtp,
		`{"agreement_id": `+itoa(lease.ID)+`, "role": "tenant", "email": "tenant@example.com", "otp_code": "123456"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, string(model.LeaseStatusActive), body["lease_status"])
	assert.Equal(t, true, body["lease_activated"])
	assert.EqualValues(t, 2, body["signed_count"])

	var fresh model.LeaseAgreement
	require.NoError(t, env.db.First(&fresh, lease.ID).Error)
	assert.Equal(t, model.LeaseStatusActive, fresh.Status)
}

func TestVerifyOtp_repeatCallIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	lease := env.seedLease(t, true, false)

	rec, body := env.postJSON(t, env.lease.VerifyOtp,
		`{"agreement_id": `+itoa(lease.ID)+`, "role": "tenant", "email": "tenant@example.com", "otp_code": "whatever"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Signature was already recorded.", body["message"])
}

func TestGetLease_reportsSigningProgress(t *testing.T) {
	env := newTestEnv(t)
	lease := env.seedLease(t, true, false)

	rec, body := env.get(t, env.lease.GetLease, itoa(lease.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["signed_count"])
	assert.EqualValues(t, model.RequiredSignatures, body["required_signatures"])
	assert.Equal(t, false, body["quorum_reached"])
}

func TestGetLease_notFound(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.get(t, env.lease.GetLease, "404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcile_promotesStrandedLease(t *testing.T) {
	env := newTestEnv(t)
	lease := env.seedLease(t, true, true)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(itoa(lease.ID))
	require.NoError(t, env.lease.Reconcile(c))

	body := decodeBody(t, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.LeaseStatusActive), body["lease_status"])
	assert.Equal(t, true, body["lease_activated"])
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
