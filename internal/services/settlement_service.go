// internal/services/settlement_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/transfer"
	"gorm.io/gorm"

	"github.com/refurbly/consign-backend/internal/config"
	"github.com/refurbly/consign-backend/internal/database"
	"github.com/refurbly/consign-backend/internal/models"
	"github.com/refurbly/consign-backend/internal/utils"
)

// SettlementService accounts for the proceeds split. The engine writes one
// SaleTransaction per confirmed sale; this service derives reseller balances
// from unreversed margins and handles payout requests against them.
type SettlementService struct {
	db  *gorm.DB
	cfg *config.Config
}

type ResellerBalance struct {
	ResellerID    uuid.UUID `json:"reseller_id"`
	EarnedMargin  float64   `json:"earned_margin"`
	PaidOut       float64   `json:"paid_out"`
	PendingPayout float64   `json:"pending_payout"`
	Available     float64   `json:"available"`
}

type RequestPayoutRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type RejectPayoutRequest struct {
	Reason string `json:"reason" validate:"required,min=5"`
}

func NewSettlementService(db *gorm.DB, cfg *config.Config) *SettlementService {
	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
	}
	return &SettlementService{db: db, cfg: cfg}
}

// Balance computes what a reseller has earned and what remains withdrawable.
func (s *SettlementService) Balance(resellerID uuid.UUID) (*ResellerBalance, error) {
	return s.balanceOn(s.db, resellerID)
}

func (s *SettlementService) balanceOn(db *gorm.DB, resellerID uuid.UUID) (*ResellerBalance, error) {
	balance := &ResellerBalance{ResellerID: resellerID}

	if err := db.Model(&models.SaleTransaction{}).
		Where("reseller_id = ? AND reversed = ?", resellerID, false).
		Select("COALESCE(SUM(reseller_margin), 0)").
		Scan(&balance.EarnedMargin).Error; err != nil {
		return nil, fmt.Errorf("failed to sum margins: %w", err)
	}

	if err := db.Model(&models.Payout{}).
		Where("reseller_id = ? AND status = ?", resellerID, models.PayoutStatusPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance.PaidOut).Error; err != nil {
		return nil, fmt.Errorf("failed to sum payouts: %w", err)
	}

	if err := db.Model(&models.Payout{}).
		Where("reseller_id = ? AND status = ?", resellerID, models.PayoutStatusPending).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance.PendingPayout).Error; err != nil {
		return nil, fmt.Errorf("failed to sum pending payouts: %w", err)
	}

	balance.Available = balance.EarnedMargin - balance.PaidOut - balance.PendingPayout
	return balance, nil
}

// RequestPayout files a payout request against the reseller's available
// balance.
func (s *SettlementService) RequestPayout(resellerID uuid.UUID, req *RequestPayoutRequest) (*models.Payout, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	if req.Amount < s.cfg.Settlement.MinimumPayout {
		return nil, &ValidationError{Message: fmt.Sprintf("payout amount must be at least %.2f", s.cfg.Settlement.MinimumPayout)}
	}

	var payout *models.Payout
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		balance, err := s.balanceOn(tx, resellerID)
		if err != nil {
			return err
		}

		if req.Amount > balance.Available {
			return &ValidationError{Message: fmt.Sprintf("requested amount exceeds available balance %.2f", balance.Available)}
		}

		payout = &models.Payout{
			ResellerID: resellerID,
			Amount:     req.Amount,
			Status:     models.PayoutStatusPending,
		}
		return tx.Create(payout).Error
	})
	if err != nil {
		return nil, err
	}

	return payout, nil
}

// ProcessPayout marks a pending payout as paid. When the reseller has a
// connected Stripe account and Stripe is configured, the margin is moved via
// a transfer; otherwise the payout is settled manually and just recorded.
func (s *SettlementService) ProcessPayout(payoutID, operatorID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := s.db.First(&payout, "id = ?", payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "payout", ID: payoutID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if payout.Status != models.PayoutStatusPending {
		return nil, &ValidationError{Message: fmt.Sprintf("payout is already %s", payout.Status)}
	}

	var transferID string
	if s.cfg.Stripe.SecretKey != "" {
		var reseller models.Reseller
		if err := s.db.First(&reseller, "id = ?", payout.ResellerID).Error; err == nil && reseller.StripeAccountID != "" {
			params := &stripe.TransferParams{
				Amount:      stripe.Int64(int64(payout.Amount * 100)),
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				Destination: stripe.String(reseller.StripeAccountID),
			}
			params.AddMetadata("payout_id", payout.ID.String())

			t, err := transfer.New(params)
			if err != nil {
				return nil, fmt.Errorf("stripe transfer failed: %w", err)
			}
			transferID = t.ID
		}
	}

	now := time.Now()
	payout.Status = models.PayoutStatusPaid
	payout.StripeTransferID = transferID
	payout.ProcessedBy = &operatorID
	payout.ProcessedAt = &now

	if err := s.db.Save(&payout).Error; err != nil {
		return nil, fmt.Errorf("failed to update payout: %w", err)
	}

	return &payout, nil
}

// RejectPayout declines a pending payout request.
func (s *SettlementService) RejectPayout(payoutID, operatorID uuid.UUID, req *RejectPayoutRequest) (*models.Payout, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("validation failed: %v", err)}
	}

	var payout models.Payout
	if err := s.db.First(&payout, "id = ?", payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "payout", ID: payoutID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if payout.Status != models.PayoutStatusPending {
		return nil, &ValidationError{Message: fmt.Sprintf("payout is already %s", payout.Status)}
	}

	now := time.Now()
	payout.Status = models.PayoutStatusRejected
	payout.RejectionReason = req.Reason
	payout.ProcessedBy = &operatorID
	payout.ProcessedAt = &now

	if err := s.db.Save(&payout).Error; err != nil {
		return nil, fmt.Errorf("failed to update payout: %w", err)
	}

	return &payout, nil
}

// ListPayouts returns payouts, optionally narrowed to one reseller.
func (s *SettlementService) ListPayouts(resellerID *uuid.UUID, params utils.PaginationParams) ([]models.Payout, int64, error) {
	query := s.db.Model(&models.Payout{})
	if resellerID != nil {
		query = query.Where("reseller_id = ?", *resellerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var payouts []models.Payout
	if err := query.Find(&payouts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payouts: %w", err)
	}

	return payouts, total, nil
}

// ListTransactions returns sale split rows, optionally for one reseller.
func (s *SettlementService) ListTransactions(resellerID *uuid.UUID, params utils.PaginationParams) ([]models.SaleTransaction, int64, error) {
	query := s.db.Model(&models.SaleTransaction{})
	if resellerID != nil {
		query = query.Where("reseller_id = ?", *resellerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "sale_price"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.SaleTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}
