package services

import (
	"context"
	"errors"

	apperrors "storefront-backend/errors"
	"storefront-backend/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// InventoryService is the only writer of product stock.
type InventoryService struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewInventoryService creates an InventoryService.
func NewInventoryService(products repository.ProductRepository, logger *zap.Logger) *InventoryService {
	return &InventoryService{products: products, logger: logger}
}

// Decrement subtracts quantity from a product's stock and flips the
// availability flag when the count reaches zero. The subtraction itself is
// a single conditional update, so stock can never go negative under
// concurrent calls.
func (s *InventoryService) Decrement(ctx context.Context, productID primitive.ObjectID, quantity int) error {
	remaining, err := s.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return apperrors.Wrap(apperrors.ErrInsufficientStock, err)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Wrap(apperrors.ErrNotFound, err)
		}
		return err
	}

	if remaining == 0 {
		if err := s.products.SetInStock(ctx, productID, false); err != nil {
			// The count is already correct; the flag lags until the next
			// decrement or an admin touch.
			s.logger.Warn("Failed to flip availability flag",
				zap.String("product_id", productID.Hex()),
				zap.Error(err),
			)
		}
	}
	return nil
}
