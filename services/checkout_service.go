package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	"storefront-backend/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ConfirmSource identifies which path triggered a confirmation.
type ConfirmSource string

const (
	SourceWebhook ConfirmSource = "webhook"
	SourcePoll    ConfirmSource = "poll"
)

// PaymentEventPublisher pushes payment events to the event stream.
type PaymentEventPublisher interface {
	SendPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// CheckoutRequest is the checkout-initiation payload. OrderIntent totals
// come from the storefront's pricing step and are snapshotted as-is.
type CheckoutRequest struct {
	CustomerInfo   models.CustomerInfo    `json:"customerInfo" binding:"required"`
	OrderIntent    models.OrderIntent     `json:"orderDetails" binding:"required"`
	AccountOptions *models.AccountOptions `json:"accountOptions,omitempty"`
	// UserID is an advisory hint for guests with a remembered session; an
	// authenticated caller's id always wins over it.
	UserID string `json:"userId,omitempty"`
}

// CheckoutSession is what the client needs to hand off to the gateway.
type CheckoutSession struct {
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Reference        string `json:"reference"`
}

// ConfirmResult is the outcome of one confirmation attempt.
type ConfirmResult struct {
	Transaction      *models.Transaction
	Order            *models.Order
	AlreadyProcessed bool
	PaymentFailed    bool
	GatewayStatus    string
}

// CheckoutDeps wires the orchestrator's collaborators. Events and
// OrderEvents are optional; when nil the corresponding side effect is
// skipped.
type CheckoutDeps struct {
	Transactions repository.TransactionRepository
	Orders       repository.OrderRepository
	Gateway      GatewayAPI
	Identity     *IdentityService
	Inventory    *InventoryService
	Ledger       *TransactionService
	Notifier     Notifier
	Events       PaymentEventPublisher
	OrderEvents  OrderEventPublisher
	FrontendURL  string
	Logger       *zap.Logger
}

// CheckoutService is the checkout-to-order state machine. Initiate creates
// a pending transaction carrying the full order intent; Confirm performs
// the at-most-once order materialization when the gateway reports success,
// regardless of which path (webhook or poll) delivers the news first, or
// how many times.
type CheckoutService struct {
	deps CheckoutDeps
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	return &CheckoutService{deps: deps}
}

// InitializeCheckout validates the request, persists a pending transaction
// with the order intent snapshotted in metadata, and opens a payment
// session at the gateway. authUserID is the authenticated caller's id, or
// empty for guests.
func (s *CheckoutService) InitializeCheckout(ctx context.Context, req *CheckoutRequest, authUserID string) (*CheckoutSession, error) {
	if len(req.OrderIntent.Items) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Order must contain at least one item")
	}
	if req.OrderIntent.Total <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Order total must be greater than zero")
	}

	candidateUserID := authUserID
	if candidateUserID == "" {
		candidateUserID = req.UserID
	}

	email := strings.ToLower(req.CustomerInfo.Email)
	customerName := req.CustomerInfo.FirstName + " " + req.CustomerInfo.LastName
	reference := GenerateReference()

	tx := &models.Transaction{
		Reference:     reference,
		Amount:        req.OrderIntent.Total,
		Currency:      "NGN",
		CustomerEmail: email,
		CustomerName:  customerName,
		Gateway:       "paystack",
		Status:        models.TransactionPending,
		Mode:          models.ModeDeferredIntent,
		Metadata: models.CheckoutMetadata{
			CustomerInfo:   req.CustomerInfo,
			OrderIntent:    req.OrderIntent,
			UserID:         candidateUserID,
			AccountOptions: req.AccountOptions,
		},
	}

	if err := s.deps.Transactions.Create(ctx, tx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	init, err := s.deps.Gateway.InitializePayment(ctx, InitializePaymentRequest{
		Email:       email,
		AmountKobo:  toKobo(req.OrderIntent.Total),
		Reference:   reference,
		CallbackURL: s.deps.FrontendURL + "/payment/callback",
		Metadata: map[string]string{
			"transaction_id": tx.ID.Hex(),
			"customer_name":  customerName,
		},
	})
	if err != nil {
		// The pending transaction stays behind; the client can retry with
		// a fresh checkout.
		s.deps.Logger.Error("Gateway initialization failed",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, apperrors.Wrap(apperrors.ErrPaymentNotStarted, err)
	}

	if err := s.deps.Transactions.SetGatewayReference(ctx, tx.ID, init.GatewayReference); err != nil {
		s.deps.Logger.Warn("Failed to store gateway reference",
			zap.String("reference", reference),
			zap.Error(err),
		)
	}

	s.deps.Logger.Info("Checkout initialized",
		zap.String("reference", reference),
		zap.Float64("total", req.OrderIntent.Total),
		zap.String("email", email),
	)

	return &CheckoutSession{
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
		Reference:        reference,
	}, nil
}

// Confirm processes a payment confirmation for a reference, from either
// trigger source. For the webhook path the caller passes the
// signature-verified charge; for the poll path charge is nil and the
// gateway is asked directly. Safe under concurrent and duplicate
// invocation: at most one order is ever created per reference, and the
// post-commit side effects run only in the invocation that wins the
// conditional claim on the transaction.
func (s *CheckoutService) Confirm(ctx context.Context, reference string, source ConfirmSource, charge *ChargeResult) (*ConfirmResult, error) {
	tx, err := s.deps.Transactions.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrTransactionMissing
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// Idempotency guard: a terminal success short-circuits before any
	// gateway call or state change.
	if tx.Status == models.TransactionSuccess {
		return s.alreadyProcessed(ctx, tx)
	}
	// Failed and abandoned are terminal too; a late success report for a
	// dead reference must not materialize an order.
	if tx.Status.IsTerminal() {
		return &ConfirmResult{Transaction: tx, PaymentFailed: true, GatewayStatus: string(tx.Status)}, nil
	}

	if charge == nil {
		charge, err = s.deps.Gateway.VerifyPayment(ctx, reference)
		if err != nil {
			return nil, err
		}
	}

	if !charge.Success() {
		won, err := s.deps.Ledger.MarkFailed(ctx, tx, string(charge.Raw))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if won {
			s.publishPaymentEvent(ctx, tx, nil, "payment_failed")
		} else {
			// A concurrent confirmation already settled the transaction;
			// report its committed state instead of the pending snapshot.
			tx = s.refresh(ctx, tx)
		}
		s.deps.Logger.Info("Payment not successful",
			zap.String("reference", reference),
			zap.String("source", string(source)),
			zap.String("gateway_status", charge.Status),
		)
		return &ConfirmResult{Transaction: tx, PaymentFailed: true, GatewayStatus: charge.Status}, nil
	}

	switch tx.Mode {
	case models.ModePreCreated:
		return s.confirmPreCreated(ctx, tx, charge)
	default:
		return s.confirmDeferred(ctx, tx, charge, source)
	}
}

// confirmPreCreated handles the flow where the order existed before
// payment: the ledger flips the transaction and syncs the linked order.
func (s *CheckoutService) confirmPreCreated(ctx context.Context, tx *models.Transaction, charge *ChargeResult) (*ConfirmResult, error) {
	won, err := s.deps.Ledger.MarkSuccess(ctx, tx, string(charge.Raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !won {
		return s.alreadyProcessed(ctx, s.refresh(ctx, tx))
	}

	var order *models.Order
	if tx.OrderID != nil {
		if o, err := s.deps.Orders.FindByID(ctx, *tx.OrderID); err == nil {
			order = o
		}
	}
	s.publishPaymentEvent(ctx, tx, order, "payment_succeeded")
	return &ConfirmResult{Transaction: tx, Order: order}, nil
}

// confirmDeferred materializes the order from the transaction's metadata.
// Winner selection is two storage-level guards working together: the unique
// index on orders.transaction collapses concurrent inserts to one, and
// ClaimSuccess links the order to the transaction only while the link is
// unset. A crash between the two leaves the transaction pending and the
// whole step retryable.
func (s *CheckoutService) confirmDeferred(ctx context.Context, tx *models.Transaction, charge *ChargeResult, source ConfirmSource) (*ConfirmResult, error) {
	meta := tx.Metadata

	user, created, err := s.deps.Identity.Resolve(ctx, meta.UserID, meta.CustomerInfo, meta.AccountOptions)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := time.Now().UTC()
	info := meta.CustomerInfo
	info.Email = strings.ToLower(info.Email)
	if info.ShippingAddress.Country == "" {
		info.ShippingAddress.Country = "Nigeria"
	}

	deliveryMethod := meta.OrderIntent.DeliveryMethod
	if deliveryMethod == "" {
		deliveryMethod = "standard"
	}

	order := &models.Order{
		ID:                       primitive.NewObjectID(),
		OrderNumber:              models.GenerateOrderNumber(now),
		CustomerInfo:             info,
		Items:                    meta.OrderIntent.Items,
		Subtotal:                 meta.OrderIntent.Subtotal,
		ShippingCost:             meta.OrderIntent.ShippingCost,
		Tax:                      meta.OrderIntent.Tax,
		Total:                    meta.OrderIntent.Total,
		DeliveryMethod:           deliveryMethod,
		DeliveryStatus:           models.DeliveryPending,
		PaymentStatus:            models.PaymentPaid,
		Status:                   models.OrderConfirmed,
		TransactionID:            &tx.ID,
		IsGuestOrder:             user == nil,
		AccountCreated:           created,
		Notes:                    meta.OrderIntent.Notes,
		QualifiesForFreeShipping: meta.OrderIntent.QualifiesForFreeShipping,
		CreatedAt:                now,
	}
	if user != nil {
		order.Customer = &user.ID
	}

	if err := s.deps.Orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// A concurrent confirmation won the insert; its order is the
			// order.
			existing, findErr := s.deps.Orders.FindByTransactionID(ctx, tx.ID)
			if findErr != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, findErr)
			}
			order = existing
		} else {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	won, err := s.deps.Transactions.ClaimSuccess(ctx, tx.ID, order.ID, now, string(charge.Raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !won {
		// The commit was completed by a concurrent confirmation; report
		// idempotent success with its order.
		s.deps.Logger.Info("Confirmation lost claim race",
			zap.String("reference", tx.Reference),
			zap.String("source", string(source)),
		)
		return &ConfirmResult{Transaction: s.refresh(ctx, tx), Order: order, AlreadyProcessed: true}, nil
	}

	// The returned snapshot must reflect the claim just committed.
	tx.Status = models.TransactionSuccess
	tx.OrderID = &order.ID
	tx.PaidAt = &now
	tx.GatewayResponse = string(charge.Raw)

	s.deps.Logger.Info("Order created",
		zap.String("reference", tx.Reference),
		zap.String("order_number", order.OrderNumber),
		zap.String("source", string(source)),
		zap.Bool("guest", order.IsGuestOrder),
		zap.Bool("account_created", order.AccountCreated),
	)

	s.runPostCommit(ctx, tx, order)
	return &ConfirmResult{Transaction: tx, Order: order}, nil
}

// runPostCommit performs the best-effort side effects: stock decrement,
// confirmation email, event publishing. The order is already committed, so
// failures here are logged and reconciled manually, never propagated.
func (s *CheckoutService) runPostCommit(ctx context.Context, tx *models.Transaction, order *models.Order) {
	for _, item := range order.Items {
		if err := s.deps.Inventory.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			s.deps.Logger.Error("Stock decrement failed after order commit",
				zap.String("order_number", order.OrderNumber),
				zap.String("product_id", item.ProductID.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}

	if err := s.deps.Notifier.SendOrderConfirmation(OrderConfirmationData{
		FirstName:       order.CustomerInfo.FirstName,
		LastName:        order.CustomerInfo.LastName,
		Email:           order.CustomerInfo.Email,
		OrderNumber:     order.OrderNumber,
		OrderDate:       order.CreatedAt,
		Items:           order.Items,
		Subtotal:        order.Subtotal,
		Shipping:        order.ShippingCost,
		Total:           order.Total,
		ShippingAddress: order.CustomerInfo.ShippingAddress,
		TrackingURL:     fmt.Sprintf("%s/orders/track/%s", s.deps.FrontendURL, order.OrderNumber),
	}); err != nil {
		s.deps.Logger.Error("Order confirmation email failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
	}

	s.publishPaymentEvent(ctx, tx, order, "payment_succeeded")

	if s.deps.OrderEvents != nil {
		event := models.OrderEvent{
			OrderID:     order.ID.Hex(),
			OrderNumber: order.OrderNumber,
			Email:       order.CustomerInfo.Email,
			Total:       order.Total,
			Status:      string(order.Status),
			IsGuest:     order.IsGuestOrder,
		}
		if err := s.deps.OrderEvents.PublishOrderEvent(ctx, "order_confirmed", event); err != nil {
			s.deps.Logger.Warn("Order event publish failed",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
		}
	}
}

func (s *CheckoutService) publishPaymentEvent(ctx context.Context, tx *models.Transaction, order *models.Order, eventType string) {
	if s.deps.Events == nil {
		return
	}
	event := models.PaymentEvent{
		Type:          eventType,
		Reference:     tx.Reference,
		CustomerEmail: tx.CustomerEmail,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Timestamp:     time.Now().UTC(),
	}
	if order != nil {
		event.OrderID = order.ID.Hex()
		event.OrderNumber = order.OrderNumber
	}
	if err := s.deps.Events.SendPaymentEvent(ctx, event); err != nil {
		s.deps.Logger.Warn("Payment event publish failed",
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
	}
}

// refresh re-reads a transaction after losing a conditional write, so the
// caller reports the state the winner committed. Falls back to the stale
// snapshot if the read fails.
func (s *CheckoutService) refresh(ctx context.Context, tx *models.Transaction) *models.Transaction {
	fresh, err := s.deps.Transactions.FindByID(ctx, tx.ID)
	if err != nil {
		return tx
	}
	return fresh
}

func (s *CheckoutService) alreadyProcessed(ctx context.Context, tx *models.Transaction) (*ConfirmResult, error) {
	result := &ConfirmResult{Transaction: tx, AlreadyProcessed: true}
	if tx.OrderID != nil {
		if order, err := s.deps.Orders.FindByID(ctx, *tx.OrderID); err == nil {
			result.Order = order
		}
	} else if order, err := s.deps.Orders.FindByTransactionID(ctx, tx.ID); err == nil {
		// Covers a transaction read between the order insert and the
		// claim write of a concurrent confirmation.
		result.Order = order
	}
	return result, nil
}

// GenerateReference builds a fresh globally unique transaction reference,
// assigned exactly once before any gateway call.
func GenerateReference() string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
	return fmt.Sprintf("TXN-%d-%s", time.Now().UnixMilli(), frag)
}

// toKobo converts a naira amount to the gateway's minor units.
func toKobo(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
