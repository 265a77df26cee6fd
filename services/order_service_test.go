package services

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func seedOrder(t *testing.T, orders *memOrderRepo, customer *primitive.ObjectID, email string, guest bool) *models.Order {
	t.Helper()
	txID := primitive.NewObjectID()
	order := &models.Order{
		OrderNumber:    models.GenerateOrderNumber(time.Now().UTC()),
		Customer:       customer,
		CustomerInfo:   models.CustomerInfo{FirstName: "Ada", Email: email},
		TransactionID:  &txID,
		Status:         models.OrderConfirmed,
		PaymentStatus:  models.PaymentPaid,
		DeliveryStatus: models.DeliveryPending,
		IsGuestOrder:   guest,
		Total:          32000,
	}
	require.NoError(t, orders.Create(context.Background(), order))
	return order
}

func TestTrackOrder(t *testing.T) {
	ctx := context.Background()

	orders := newMemOrderRepo()
	notifier := &fakeNotifier{}
	svc := NewOrderService(orders, notifier, nil, zap.NewNop())

	owner := primitive.NewObjectID()
	owned := seedOrder(t, orders, &owner, "owner@example.com", false)
	guestOrder := seedOrder(t, orders, nil, "guest@example.com", true)

	t.Run("admin sees any order", func(t *testing.T) {
		got, err := svc.Track(ctx, owned.OrderNumber, TrackingViewer{IsAdmin: true})
		require.NoError(t, err)
		assert.Equal(t, owned.OrderNumber, got.OrderNumber)
	})

	t.Run("owner sees their order", func(t *testing.T) {
		got, err := svc.Track(ctx, owned.OrderNumber, TrackingViewer{UserID: owner.Hex()})
		require.NoError(t, err)
		assert.Equal(t, owned.ID, got.ID)
	})

	t.Run("authenticated email matches guest order", func(t *testing.T) {
		got, err := svc.Track(ctx, guestOrder.OrderNumber, TrackingViewer{UserID: primitive.NewObjectID().Hex(), Email: "Guest@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, guestOrder.ID, got.ID)
	})

	t.Run("guest proves ownership with email parameter", func(t *testing.T) {
		got, err := svc.Track(ctx, guestOrder.OrderNumber, TrackingViewer{EmailParam: "guest@example.com"})
		require.NoError(t, err)
		assert.Equal(t, guestOrder.ID, got.ID)
	})

	t.Run("lowercased order number still resolves", func(t *testing.T) {
		_, err := svc.Track(ctx, strings.ToLower(guestOrder.OrderNumber), TrackingViewer{EmailParam: "guest@example.com"})
		require.NoError(t, err)
	})

	t.Run("stranger is told not found, not forbidden", func(t *testing.T) {
		_, err := svc.Track(ctx, owned.OrderNumber, TrackingViewer{UserID: primitive.NewObjectID().Hex(), Email: "other@example.com"})
		require.Error(t, err)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrOrderMissing.Code, appErr.Code)
	})

	t.Run("email parameter does not unlock account orders", func(t *testing.T) {
		_, err := svc.Track(ctx, owned.OrderNumber, TrackingViewer{EmailParam: "owner@example.com"})
		assert.Error(t, err)
	})

	t.Run("unknown order number", func(t *testing.T) {
		_, err := svc.Track(ctx, "ORD000000-XXXXXXXX", TrackingViewer{IsAdmin: true})
		assert.Error(t, err)
	})
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	orders := newMemOrderRepo()
	svc := NewOrderService(orders, &fakeNotifier{}, nil, zap.NewNop())

	userID := primitive.NewObjectID()
	seedOrder(t, orders, &userID, "ada@example.com", false)
	seedOrder(t, orders, nil, "ada@example.com", true)
	seedOrder(t, orders, nil, "other@example.com", true)

	mine, err := svc.ListForUser(ctx, userID, "ada@example.com")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestUpdateFulfilment(t *testing.T) {
	ctx := context.Background()

	t.Run("legal transition with tracking number notifies customer", func(t *testing.T) {
		orders := newMemOrderRepo()
		notifier := &fakeNotifier{}
		events := &fakeEventSink{}
		svc := NewOrderService(orders, notifier, events, zap.NewNop())
		order := seedOrder(t, orders, nil, "ada@example.com", true)

		status := models.OrderProcessing
		delivery := models.DeliveryShipped
		tracking := "NG123456789"
		updated, err := svc.UpdateFulfilment(ctx, order.ID, FulfilmentUpdate{
			Status:         &status,
			DeliveryStatus: &delivery,
			TrackingNumber: &tracking,
		})
		require.NoError(t, err)

		assert.Equal(t, models.OrderProcessing, updated.Status)
		assert.Equal(t, models.DeliveryShipped, updated.DeliveryStatus)
		assert.Equal(t, "NG123456789", updated.TrackingNumber)

		require.Len(t, notifier.statusUpdates, 1)
		assert.Equal(t, order.OrderNumber, notifier.statusUpdates[0].OrderNumber)
		assert.Equal(t, "NG123456789", notifier.statusUpdates[0].TrackingNumber)
		assert.Len(t, events.orderEvents, 1)
	})

	t.Run("illegal transition is rejected", func(t *testing.T) {
		orders := newMemOrderRepo()
		svc := NewOrderService(orders, &fakeNotifier{}, nil, zap.NewNop())
		order := seedOrder(t, orders, nil, "ada@example.com", true)

		status := models.OrderCompleted
		_, err := svc.UpdateFulfilment(ctx, order.ID, FulfilmentUpdate{Status: &status})
		require.NoError(t, err) // confirmed -> completed is allowed

		back := models.OrderPending
		_, err = svc.UpdateFulfilment(ctx, order.ID, FulfilmentUpdate{Status: &back})
		require.Error(t, err)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		orders := newMemOrderRepo()
		notifier := &fakeNotifier{}
		svc := NewOrderService(orders, notifier, nil, zap.NewNop())
		order := seedOrder(t, orders, nil, "ada@example.com", true)

		updated, err := svc.UpdateFulfilment(ctx, order.ID, FulfilmentUpdate{})
		require.NoError(t, err)
		assert.Equal(t, order.Status, updated.Status)
		assert.Empty(t, notifier.statusUpdates)
	})
}
