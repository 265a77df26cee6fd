package services

import (
	"context"
	"errors"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	"storefront-backend/repository"

	"go.uber.org/zap"
)

// TransactionService is the ledger: it owns status transitions on payment
// transactions and keeps a linked order in sync. For a pre-created-order
// checkout the order already exists before confirmation, so the ledger only
// updates it; for deferred checkout the orchestrator creates the order and
// claims the link itself.
type TransactionService struct {
	transactions repository.TransactionRepository
	orders       repository.OrderRepository
	logger       *zap.Logger
}

// NewTransactionService creates a TransactionService.
func NewTransactionService(transactions repository.TransactionRepository, orders repository.OrderRepository, logger *zap.Logger) *TransactionService {
	return &TransactionService{transactions: transactions, orders: orders, logger: logger}
}

// MarkSuccess transitions a pending transaction to success, stamping paidAt
// and the raw gateway payload, and propagates paid/confirmed to a linked
// order. Returns whether this call performed the transition; false means
// the transaction was already terminal and nothing changed. On a won
// transition the passed struct is updated to match the stored document.
func (s *TransactionService) MarkSuccess(ctx context.Context, tx *models.Transaction, gatewayPayload string) (bool, error) {
	if !tx.Status.CanTransition(models.TransactionSuccess) {
		return false, nil
	}

	now := time.Now().UTC()
	won, err := s.transactions.MarkSuccess(ctx, tx.ID, now, gatewayPayload)
	if err != nil || !won {
		return won, err
	}
	tx.Status = models.TransactionSuccess
	tx.PaidAt = &now
	tx.GatewayResponse = gatewayPayload

	if tx.OrderID != nil {
		if err := s.orders.SetPaymentOutcome(ctx, *tx.OrderID, models.PaymentPaid, models.OrderConfirmed); err != nil {
			// The transaction is already terminal; the order sync is
			// recoverable by re-reading the ledger.
			s.logger.Error("Failed to propagate success to order",
				zap.String("reference", tx.Reference),
				zap.String("order_id", tx.OrderID.Hex()),
				zap.Error(err),
			)
		}
	}
	return true, nil
}

// MarkFailed transitions a pending transaction to failed and propagates the
// failed payment status to a linked order. A no-op on terminal states. On a
// won transition the passed struct is updated to match the stored document.
func (s *TransactionService) MarkFailed(ctx context.Context, tx *models.Transaction, gatewayPayload string) (bool, error) {
	if !tx.Status.CanTransition(models.TransactionFailed) {
		return false, nil
	}

	won, err := s.transactions.MarkFailed(ctx, tx.ID, gatewayPayload)
	if err != nil || !won {
		return won, err
	}
	tx.Status = models.TransactionFailed
	tx.GatewayResponse = gatewayPayload

	if tx.OrderID != nil {
		if err := s.orders.SetPaymentOutcome(ctx, *tx.OrderID, models.PaymentFailed, ""); err != nil {
			s.logger.Error("Failed to propagate failure to order",
				zap.String("reference", tx.Reference),
				zap.String("order_id", tx.OrderID.Hex()),
				zap.Error(err),
			)
		}
	}
	return true, nil
}

// Get loads a transaction by reference.
func (s *TransactionService) Get(ctx context.Context, reference string) (*models.Transaction, error) {
	tx, err := s.transactions.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTransactionMissing
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return tx, nil
}

// List returns transactions filtered by status, newest first.
func (s *TransactionService) List(ctx context.Context, status models.TransactionStatus, page, limit int) ([]models.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.transactions.List(ctx, status, page, limit)
}
