package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCompleted, OrderCancelled},
	OrderProcessing: {OrderCompleted, OrderCancelled},
	OrderCompleted:  {},
	OrderCancelled:  {},
}

// CanTransition reports whether moving from s to next is allowed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment dimension of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// DeliveryStatus is the fulfilment dimension of an order.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryShipped    DeliveryStatus = "shipped"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// OrderItem is a line item snapshot. Product fields are copied at order
// time, not live-joined, so later catalog edits cannot change past orders.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"productId" binding:"required"`
	Name      string             `bson:"name" json:"name" binding:"required"`
	Quantity  int                `bson:"quantity" json:"quantity" binding:"required,min=1"`
	Price     float64            `bson:"price" json:"price" binding:"required"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
}

// Order is a confirmed purchase. It exists only after payment confirmation
// (deferred checkout) or is pre-created and synced at confirmation.
type Order struct {
	ID                       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber              string              `bson:"order_number" json:"orderNumber"`
	Customer                 *primitive.ObjectID `bson:"customer,omitempty" json:"customer,omitempty"`
	CustomerInfo             CustomerInfo        `bson:"customer_info" json:"customerInfo"`
	Items                    []OrderItem         `bson:"items" json:"items"`
	Subtotal                 float64             `bson:"subtotal" json:"subtotal"`
	ShippingCost             float64             `bson:"shipping_cost" json:"shippingCost"`
	Tax                      float64             `bson:"tax" json:"tax"`
	Total                    float64             `bson:"total" json:"total"`
	DeliveryMethod           string              `bson:"delivery_method" json:"deliveryMethod"`
	DeliveryStatus           DeliveryStatus      `bson:"delivery_status" json:"deliveryStatus"`
	EstimatedDelivery        *time.Time          `bson:"estimated_delivery,omitempty" json:"estimatedDelivery,omitempty"`
	TrackingNumber           string              `bson:"tracking_number,omitempty" json:"trackingNumber,omitempty"`
	PaymentStatus            PaymentStatus       `bson:"payment_status" json:"paymentStatus"`
	TransactionID            *primitive.ObjectID `bson:"transaction,omitempty" json:"transactionId,omitempty"`
	Status                   OrderStatus         `bson:"status" json:"status"`
	IsGuestOrder             bool                `bson:"is_guest_order" json:"isGuestOrder"`
	AccountCreated           bool                `bson:"account_created" json:"accountCreated"`
	Notes                    string              `bson:"notes,omitempty" json:"notes,omitempty"`
	QualifiesForFreeShipping bool                `bson:"qualifies_for_free_shipping" json:"qualifiesForFreeShipping"`
	CreatedAt                time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt                time.Time           `bson:"updated_at" json:"updatedAt"`
}

// OrderSummary is the compact view used in transaction responses.
type OrderSummary struct {
	ID             primitive.ObjectID `json:"id"`
	OrderNumber    string             `json:"orderNumber"`
	Status         OrderStatus        `json:"status"`
	PaymentStatus  PaymentStatus      `json:"paymentStatus"`
	DeliveryStatus DeliveryStatus     `json:"deliveryStatus"`
	Total          float64            `json:"total"`
	ItemsCount     int                `json:"itemsCount"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// GetOrderSummary builds the compact view.
func (o *Order) GetOrderSummary() OrderSummary {
	return OrderSummary{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		DeliveryStatus: o.DeliveryStatus,
		Total:          o.Total,
		ItemsCount:     len(o.Items),
		CreatedAt:      o.CreatedAt,
	}
}

// GenerateOrderNumber builds a human-readable, collision-free order number,
// e.g. ORD260830-1A2B3C4D. The date prefix keeps it sortable for support
// staff; the uuid fragment keeps it unique without a counter document.
func GenerateOrderNumber(now time.Time) string {
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD%s-%s", now.Format("060102"), frag)
}
