package services

import (
	"context"
	"sync"
	"testing"

	apperrors "storefront-backend/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInventoryDecrement(t *testing.T) {
	ctx := context.Background()

	t.Run("subtracts stock", func(t *testing.T) {
		products := newMemProductRepo()
		id := products.seed(10)
		svc := NewInventoryService(products, zap.NewNop())

		require.NoError(t, svc.Decrement(ctx, id, 4))
		assert.Equal(t, 6, products.stockOf(id))
	})

	t.Run("flips availability at zero", func(t *testing.T) {
		products := newMemProductRepo()
		id := products.seed(3)
		svc := NewInventoryService(products, zap.NewNop())

		require.NoError(t, svc.Decrement(ctx, id, 3))

		product, err := products.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, product.StockCount)
		assert.False(t, product.InStock)
	})

	t.Run("rejects decrement past zero", func(t *testing.T) {
		products := newMemProductRepo()
		id := products.seed(2)
		svc := NewInventoryService(products, zap.NewNop())

		err := svc.Decrement(ctx, id, 3)
		require.Error(t, err)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrInsufficientStock.Code, appErr.Code)
		assert.Equal(t, 2, products.stockOf(id))
	})

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		products := newMemProductRepo()
		id := products.seed(10)
		svc := NewInventoryService(products, zap.NewNop())

		const n = 20
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = svc.Decrement(ctx, id, 1)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.ErrInsufficientStock.Code, appErr.Code)
		}
		assert.Equal(t, 10, succeeded)
		assert.Equal(t, 0, products.stockOf(id))
	})
}
