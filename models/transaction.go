package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionStatus is the closed set of payment attempt states.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionSuccess   TransactionStatus = "success"
	TransactionFailed    TransactionStatus = "failed"
	TransactionAbandoned TransactionStatus = "abandoned"
)

// transactionTransitions is the allow-list of legal status moves.
// success is terminal; re-applying it is handled as an idempotent no-op
// upstream, never as a transition.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:   {TransactionSuccess, TransactionFailed, TransactionAbandoned},
	TransactionSuccess:   {},
	TransactionFailed:    {},
	TransactionAbandoned: {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[s]) == 0
}

// CheckoutMode tags who owns order creation for a transaction.
type CheckoutMode string

const (
	// ModeDeferredIntent: no order exists yet; the full order definition is
	// carried in Metadata and the order is created on confirmed payment.
	ModeDeferredIntent CheckoutMode = "deferred_intent"
	// ModePreCreated: the order was created before payment; confirmation
	// only propagates status to it.
	ModePreCreated CheckoutMode = "pre_created"
)

// ShippingAddress is the delivery address snapshot.
type ShippingAddress struct {
	Street  string `bson:"street" json:"street" binding:"required"`
	City    string `bson:"city" json:"city" binding:"required"`
	State   string `bson:"state" json:"state" binding:"required"`
	ZipCode string `bson:"zip_code" json:"zipCode" binding:"required"`
	Country string `bson:"country" json:"country"`
}

// CustomerInfo is the contact snapshot captured at checkout time.
type CustomerInfo struct {
	FirstName       string          `bson:"first_name" json:"firstName" binding:"required"`
	LastName        string          `bson:"last_name" json:"lastName" binding:"required"`
	Email           string          `bson:"email" json:"email" binding:"required,email"`
	Phone           string          `bson:"phone" json:"phone" binding:"required"`
	ShippingAddress ShippingAddress `bson:"shipping_address" json:"shippingAddress" binding:"required"`
}

// OrderIntent is the cart/pricing description captured before payment.
// Totals are trusted from the client-facing pricing step, not recomputed
// at confirmation time.
type OrderIntent struct {
	Items                    []OrderItem `bson:"items" json:"items" binding:"required,min=1,dive"`
	Subtotal                 float64     `bson:"subtotal" json:"subtotal" binding:"required"`
	ShippingCost             float64     `bson:"shipping_cost" json:"shippingCost"`
	Tax                      float64     `bson:"tax" json:"tax"`
	Total                    float64     `bson:"total" json:"total" binding:"required,gt=0"`
	DeliveryMethod           string      `bson:"delivery_method" json:"deliveryMethod" binding:"required,oneof=standard express"`
	QualifiesForFreeShipping bool        `bson:"qualifies_for_free_shipping" json:"qualifiesForFreeShipping"`
	Notes                    string      `bson:"notes,omitempty" json:"notes"`
}

// AccountOptions carries a guest's request to open an account during checkout.
type AccountOptions struct {
	CreateAccount bool   `bson:"create_account" json:"createAccount"`
	Password      string `bson:"password,omitempty" json:"password"`
}

// CheckoutMetadata is the order-intent blob snapshotted on a pending
// transaction. The order does not exist until payment succeeds; everything
// needed to build it lives here.
type CheckoutMetadata struct {
	CustomerInfo   CustomerInfo    `bson:"customer_info" json:"customerInfo"`
	OrderIntent    OrderIntent     `bson:"order_intent" json:"orderIntent"`
	UserID         string          `bson:"user_id,omitempty" json:"userId,omitempty"`
	AccountOptions *AccountOptions `bson:"account_options,omitempty" json:"accountOptions,omitempty"`
}

// Transaction is one payment attempt, independent of whether an order exists.
type Transaction struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Reference        string              `bson:"reference" json:"reference"`
	GatewayReference string              `bson:"gateway_reference,omitempty" json:"gatewayReference,omitempty"`
	Amount           float64             `bson:"amount" json:"amount"`
	Currency         string              `bson:"currency" json:"currency"`
	CustomerEmail    string              `bson:"customer_email" json:"customerEmail"`
	CustomerName     string              `bson:"customer_name,omitempty" json:"customerName,omitempty"`
	Gateway          string              `bson:"gateway" json:"gateway"`
	Status           TransactionStatus   `bson:"status" json:"status"`
	Mode             CheckoutMode        `bson:"mode" json:"mode"`
	OrderID          *primitive.ObjectID `bson:"order,omitempty" json:"orderId,omitempty"`
	Metadata         CheckoutMetadata    `bson:"metadata" json:"-"`
	GatewayResponse  string              `bson:"gateway_response,omitempty" json:"-"`
	PaidAt           *time.Time          `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	CreatedAt        time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updated_at" json:"updatedAt"`
}

// PaymentDetails is the client-facing view of a transaction.
type PaymentDetails struct {
	Reference string            `json:"reference"`
	Amount    float64           `json:"amount"`
	Currency  string            `json:"currency"`
	Status    TransactionStatus `json:"status"`
	Gateway   string            `json:"gateway"`
	CreatedAt time.Time         `json:"createdAt"`
	PaidAt    *time.Time        `json:"paidAt,omitempty"`
}

// GetPaymentDetails builds the client-facing summary.
func (t *Transaction) GetPaymentDetails() PaymentDetails {
	return PaymentDetails{
		Reference: t.Reference,
		Amount:    t.Amount,
		Currency:  t.Currency,
		Status:    t.Status,
		Gateway:   t.Gateway,
		CreatedAt: t.CreatedAt,
		PaidAt:    t.PaidAt,
	}
}
