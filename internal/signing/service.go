// Package signing implements the lease e-signature flow: issuing signing OTP
// codes to the parties of a lease, verifying submitted codes, and promoting
// the lease to active once the signature quorum is reached.
package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lease-service/internal/mailer"
	"lease-service/internal/model"
	"lease-service/internal/otp"
	"lease-service/pkg/config"
	"lease-service/pkg/logger"
)

var (
	// ErrSignatureNotFound means no signature row matches the given
	// agreement, role and email
	ErrSignatureNotFound = errors.New("lease signature not found")

	// ErrLeaseNotFound means the lease agreement does not exist
	ErrLeaseNotFound = errors.New("lease agreement not found")

	// ErrAlreadySigned means the party has already signed and no further
	// code can be issued for this signature
	ErrAlreadySigned = errors.New("signature already recorded")
)

// Service coordinates OTP issuance, verification and the quorum transition
type Service struct {
	db   *gorm.DB
	mail mailer.Sender
	cfg  config.OTPConfig
}

// NewService creates a signing service
func NewService(db *gorm.DB, mail mailer.Sender, cfg config.OTPConfig) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = otp.DefaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = otp.DefaultMaxAttempts
	}
	return &Service{db: db, mail: mail, cfg: cfg}
}

// VerifyResult reports what happened during a successful verification
type VerifyResult struct {
	AlreadySigned  bool              `json:"already_signed"`
	SignedCount    int64             `json:"signed_count"`
	LeaseActivated bool              `json:"lease_activated"`
	LeaseStatus    model.LeaseStatus `json:"lease_status"`
}

// RequestOTP generates a signing code for the matching signature row,
// overwriting any previous unconsumed code and resetting its expiry and
// attempt budget, then delivers it out-of-band. Mail delivery is best-effort:
// a send failure is logged but the stored code is kept and the call succeeds.
func (s *Service) RequestOTP(ctx context.Context, agreementID uint, role model.SignerRole, email string) error {
	log := logger.FromContext(ctx)

	var sig model.LeaseSignature
	err := s.db.WithContext(ctx).
		Where("agreement_id = ? AND role = ? AND email = ?", agreementID, role, email).
		First(&sig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSignatureNotFound
		}
		return fmt.Errorf("load signature: %w", err)
	}

	if sig.Status == model.SignatureStatusSigned {
		return ErrAlreadySigned
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.cfg.TTL)

	updates := map[string]interface{}{
		"otp_code":       code,
		"otp_expires_at": expiresAt,
		"otp_attempts":   0,
	}
	if err := s.db.WithContext(ctx).Model(&sig).Updates(updates).Error; err != nil {
		return fmt.Errorf("store OTP code: %w", err)
	}

	if err := s.mail.SendSigningOTP(ctx, sig.Email, code, agreementID); err != nil {
		// Best-effort delivery: the stored code stays valid
		log.Error("Failed to deliver signing OTP",
			zap.Uint("agreement_id", agreementID),
			zap.String("role", string(role)),
			zap.Error(err))
	}

	log.Info("Signing OTP issued",
		zap.Uint("agreement_id", agreementID),
		zap.String("role", string(role)),
		zap.Time("expires_at", expiresAt))

	return nil
}

// verifyOutcome distinguishes business failures (which must still commit the
// transaction so attempt counters persist) from plain success
type verifyOutcome struct {
	failure error
	result  VerifyResult
}

// VerifyOTP validates a submitted code and, on success, records the signature
// and runs the quorum check, all within one transaction. The signature and
// lease rows are locked so two near-simultaneous verifications cannot both
// observe the quorum unmet and skip the promotion.
func (s *Service) VerifyOTP(ctx context.Context, agreementID uint, role model.SignerRole, email, code string) (VerifyResult, error) {
	log := logger.FromContext(ctx)
	now := time.Now()

	var out verifyOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sig model.LeaseSignature
		err := s.locked(tx).
			Where("agreement_id = ? AND role = ? AND email = ?", agreementID, role, email).
			First(&sig).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSignatureNotFound
			}
			return fmt.Errorf("load signature: %w", err)
		}

		// Repeat calls after success report success without re-checking the
		// code; it has already been consumed.
		if sig.Status == model.SignatureStatusSigned {
			out.result.AlreadySigned = true
			return s.quorumStatus(tx, agreementID, &out.result)
		}

		challenge := otp.Challenge{
			Attempts:    sig.OtpAttempts,
			MaxAttempts: s.cfg.MaxAttempts,
		}
		if sig.OtpCode != nil {
			challenge.Code = *sig.OtpCode
		}
		if sig.OtpExpiresAt != nil {
			challenge.ExpiresAt = *sig.OtpExpiresAt
		}

		if verr := challenge.Verify(code, now); verr != nil {
			if challenge.Attempts != sig.OtpAttempts {
				if err := tx.Model(&sig).Update("otp_attempts", challenge.Attempts).Error; err != nil {
					return fmt.Errorf("record attempt: %w", err)
				}
			}
			// Commit so the attempt counter sticks, then surface the failure
			out.failure = verr
			return nil
		}

		// Single-use: clear the code the moment the signature is recorded
		updates := map[string]interface{}{
			"status":         model.SignatureStatusSigned,
			"signed_at":      now,
			"otp_code":       nil,
			"otp_expires_at": nil,
		}
		if err := tx.Model(&sig).Updates(updates).Error; err != nil {
			return fmt.Errorf("record signature: %w", err)
		}

		return s.promoteOnQuorum(tx, agreementID, now, &out.result)
	})
	if err != nil {
		return VerifyResult{}, err
	}
	if out.failure != nil {
		return VerifyResult{}, out.failure
	}

	if out.result.LeaseActivated {
		log.Info("Lease activated after signature quorum",
			zap.Uint("agreement_id", agreementID),
			zap.Int64("signed_count", out.result.SignedCount))
	}

	return out.result, nil
}

// Reconcile recomputes the lease status from signature state. It is an
// idempotent safety net for the partial-failure case where a signature was
// recorded but the promotion did not land.
func (s *Service) Reconcile(ctx context.Context, agreementID uint) (VerifyResult, error) {
	var result VerifyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.promoteOnQuorum(tx, agreementID, time.Now(), &result)
	})
	if err != nil {
		return VerifyResult{}, err
	}
	return result, nil
}

// promoteOnQuorum counts signed signatures for the lease and promotes it to
// active once the quorum is reached. The lease row is locked before the count
// so the read-then-write cannot race with a concurrent verification.
func (s *Service) promoteOnQuorum(tx *gorm.DB, agreementID uint, now time.Time, result *VerifyResult) error {
	var lease model.LeaseAgreement
	if err := s.locked(tx).First(&lease, agreementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLeaseNotFound
		}
		return fmt.Errorf("load lease: %w", err)
	}

	var signedCount int64
	err := tx.Model(&model.LeaseSignature{}).
		Where("agreement_id = ? AND status = ?", agreementID, model.SignatureStatusSigned).
		Count(&signedCount).Error
	if err != nil {
		return fmt.Errorf("count signatures: %w", err)
	}

	result.SignedCount = signedCount
	result.LeaseStatus = lease.Status

	if signedCount >= model.RequiredSignatures && lease.Status != model.LeaseStatusActive {
		updates := map[string]interface{}{
			"status":    model.LeaseStatusActive,
			"signed_at": now,
		}
		if err := tx.Model(&lease).Updates(updates).Error; err != nil {
			return fmt.Errorf("activate lease: %w", err)
		}
		result.LeaseActivated = true
		result.LeaseStatus = model.LeaseStatusActive
	}

	return nil
}

// quorumStatus fills the result with the current signed count and lease
// status without mutating anything
func (s *Service) quorumStatus(tx *gorm.DB, agreementID uint, result *VerifyResult) error {
	var lease model.LeaseAgreement
	if err := tx.First(&lease, agreementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLeaseNotFound
		}
		return fmt.Errorf("load lease: %w", err)
	}

	var signedCount int64
	err := tx.Model(&model.LeaseSignature{}).
		Where("agreement_id = ? AND status = ?", agreementID, model.SignatureStatusSigned).
		Count(&signedCount).Error
	if err != nil {
		return fmt.Errorf("count signatures: %w", err)
	}

	result.SignedCount = signedCount
	result.LeaseStatus = lease.Status
	return nil
}

// locked applies a row-level FOR UPDATE lock where the dialect supports it.
// SQLite (used by the test suite) serializes writers with a database-level
// lock instead and rejects the FOR UPDATE syntax.
func (s *Service) locked(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
