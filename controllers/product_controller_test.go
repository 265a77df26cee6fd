package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildProductUpdates(t *testing.T) {
	t.Run("maps editable fields to stored names", func(t *testing.T) {
		updates := buildProductUpdates(map[string]interface{}{
			"name":      "Linen Shirt v2",
			"price":     18000.0,
			"salePrice": 16000.0,
		})
		assert.Equal(t, "Linen Shirt v2", updates["name"])
		assert.Equal(t, 18000.0, updates["price"])
		assert.Equal(t, 16000.0, updates["sale_price"])
		assert.Len(t, updates, 3)
	})

	t.Run("drops stock fields and unknown keys", func(t *testing.T) {
		updates := buildProductUpdates(map[string]interface{}{
			"name":        "Linen Shirt",
			"stock_count": 999,
			"stockCount":  999,
			"in_stock":    true,
			"inStock":     true,
			"slug":        "hijacked-slug",
			"created_at":  "2020-01-01",
			"$set":        map[string]interface{}{"role": "admin"},
		})
		assert.Len(t, updates, 1)
		assert.Contains(t, updates, "name")
	})

	t.Run("empty when nothing is editable", func(t *testing.T) {
		updates := buildProductUpdates(map[string]interface{}{
			"stockCount": 5,
			"_id":        "abc",
		})
		assert.Empty(t, updates)
	})
}
