package controllers

import (
	"net/http"
	"strconv"

	apperrors "storefront-backend/errors"
	"storefront-backend/middleware"
	"storefront-backend/models"
	"storefront-backend/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderController exposes order tracking and fulfilment endpoints.
type OrderController struct {
	orders *services.OrderService
}

// NewOrderController creates an OrderController.
func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// TrackOrder handles GET /api/orders/track/:orderNumber. Works for guests
// (email query parameter as ownership proof) and authenticated users alike.
func (oc *OrderController) TrackOrder(c *gin.Context) {
	viewer := services.TrackingViewer{
		UserID:     c.GetString(middleware.CtxUserID),
		Email:      c.GetString(middleware.CtxEmail),
		IsAdmin:    c.GetString(middleware.CtxRole) == string(models.RoleAdmin),
		EmailParam: c.Query("email"),
	}

	order, err := oc.orders.Track(c.Request.Context(), c.Param("orderNumber"), viewer)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// MyOrders handles GET /api/orders/my-orders. Returns account orders plus
// guest orders that share the account's email.
func (oc *OrderController) MyOrders(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.GetString(middleware.CtxUserID))
	if err != nil {
		apperrors.HandleError(c, apperrors.ErrUnauthorized)
		return
	}

	orders, err := oc.orders.ListForUser(c.Request.Context(), userID, c.GetString(middleware.CtxEmail))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders, "count": len(orders)})
}

// ListOrders handles GET /api/admin/orders.
func (oc *OrderController) ListOrders(c *gin.Context) {
	page, limit := pagination(c)
	status := models.OrderStatus(c.Query("status"))

	orders, total, err := oc.orders.List(c.Request.Context(), status, page, limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// UpdateOrder handles PATCH /api/admin/orders/:id. Accepts any subset of
// status, delivery status, tracking number, and estimated delivery.
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		apperrors.HandleError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid order id"))
		return
	}

	var update services.FulfilmentUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondValidationError(c, err)
		return
	}

	order, err := oc.orders.UpdateFulfilment(c.Request.Context(), id, update)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// pagination reads page/limit query parameters with sane defaults.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
