package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	"storefront-backend/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// TrackingViewer identifies who is asking to see an order.
type TrackingViewer struct {
	UserID  string
	Email   string
	IsAdmin bool
	// EmailParam is the guest ownership proof supplied as a query
	// parameter when no session exists.
	EmailParam string
}

// FulfilmentUpdate is an admin's change to an order's fulfilment fields.
// Nil fields are left untouched.
type FulfilmentUpdate struct {
	Status            *models.OrderStatus    `json:"status,omitempty"`
	DeliveryStatus    *models.DeliveryStatus `json:"deliveryStatus,omitempty"`
	TrackingNumber    *string                `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time             `json:"estimatedDelivery,omitempty"`
}

// OrderService is the read and fulfilment surface over committed orders.
// Order creation itself belongs to the checkout orchestrator.
type OrderService struct {
	orders      repository.OrderRepository
	notifier    Notifier
	orderEvents OrderEventPublisher
	logger      *zap.Logger
}

// NewOrderService creates an OrderService. orderEvents may be nil.
func NewOrderService(orders repository.OrderRepository, notifier Notifier, orderEvents OrderEventPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{orders: orders, notifier: notifier, orderEvents: orderEvents, logger: logger}
}

// Track returns an order by its order number, but only to a viewer who can
// prove a claim to it: an admin, the owning account, an authenticated user
// whose email matches a guest order, or a guest presenting the order's
// email. Ownership failures read as not-found so the endpoint does not
// confirm which order numbers exist.
func (s *OrderService) Track(ctx context.Context, orderNumber string, viewer TrackingViewer) (*models.Order, error) {
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrOrderMissing
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !s.canView(order, viewer) {
		return nil, apperrors.ErrOrderMissing
	}
	return order, nil
}

func (s *OrderService) canView(order *models.Order, viewer TrackingViewer) bool {
	if viewer.IsAdmin {
		return true
	}
	if order.Customer != nil && viewer.UserID == order.Customer.Hex() {
		return true
	}
	orderEmail := strings.ToLower(order.CustomerInfo.Email)
	if viewer.Email != "" && strings.ToLower(viewer.Email) == orderEmail {
		return true
	}
	if order.IsGuestOrder && viewer.EmailParam != "" && strings.ToLower(viewer.EmailParam) == orderEmail {
		return true
	}
	return false
}

// ListForUser returns the orders belonging to an account, including guest
// orders placed with the account's email before it existed.
func (s *OrderService) ListForUser(ctx context.Context, userID primitive.ObjectID, email string) ([]models.Order, error) {
	orders, err := s.orders.FindForUser(ctx, userID, email)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return orders, nil
}

// List returns orders filtered by status, newest first.
func (s *OrderService) List(ctx context.Context, status models.OrderStatus, page, limit int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	orders, total, err := s.orders.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return orders, total, nil
}

// UpdateFulfilment applies an admin's fulfilment change. Status moves are
// checked against the transition allow-list; a change to a customer-visible
// state triggers a best-effort notification email.
func (s *OrderService) UpdateFulfilment(ctx context.Context, id primitive.ObjectID, update FulfilmentUpdate) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrOrderMissing
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	updates := bson.M{}
	if update.Status != nil {
		if !order.Status.CanTransition(*update.Status) {
			return nil, apperrors.WithMessage(apperrors.ErrBadRequest,
				"Cannot move order from "+string(order.Status)+" to "+string(*update.Status))
		}
		updates["status"] = *update.Status
	}
	if update.DeliveryStatus != nil {
		updates["delivery_status"] = *update.DeliveryStatus
	}
	if update.TrackingNumber != nil {
		updates["tracking_number"] = *update.TrackingNumber
	}
	if update.EstimatedDelivery != nil {
		updates["estimated_delivery"] = *update.EstimatedDelivery
	}
	if len(updates) == 0 {
		return order, nil
	}

	if err := s.orders.UpdateFulfilment(ctx, id, updates); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	updated, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	s.notifyStatusChange(ctx, order, updated)
	return updated, nil
}

// notifyStatusChange emails the customer and publishes an order event when
// a fulfilment update changed something they would want to know about.
func (s *OrderService) notifyStatusChange(ctx context.Context, before, after *models.Order) {
	statusChanged := before.Status != after.Status
	deliveryChanged := before.DeliveryStatus != after.DeliveryStatus
	trackingAdded := before.TrackingNumber == "" && after.TrackingNumber != ""
	if !statusChanged && !deliveryChanged && !trackingAdded {
		return
	}

	status := string(after.DeliveryStatus)
	if statusChanged {
		status = string(after.Status)
	}
	if err := s.notifier.SendOrderStatusUpdate(OrderStatusUpdateData{
		FirstName:      after.CustomerInfo.FirstName,
		Email:          after.CustomerInfo.Email,
		OrderNumber:    after.OrderNumber,
		Status:         status,
		TrackingNumber: after.TrackingNumber,
	}); err != nil {
		s.logger.Warn("Status update mail failed",
			zap.String("order_number", after.OrderNumber),
			zap.Error(err),
		)
	}

	if s.orderEvents != nil {
		event := models.OrderEvent{
			OrderID:     after.ID.Hex(),
			OrderNumber: after.OrderNumber,
			Email:       after.CustomerInfo.Email,
			Total:       after.Total,
			Status:      string(after.Status),
			IsGuest:     after.IsGuestOrder,
		}
		if err := s.orderEvents.PublishOrderEvent(ctx, "order_status_changed", event); err != nil {
			s.logger.Warn("Order event publish failed",
				zap.String("order_number", after.OrderNumber),
				zap.Error(err),
			)
		}
	}
}
