package models

import "time"

// PaymentEvent is the message published to the payment events topic after a
// transaction reaches a terminal state.
type PaymentEvent struct {
	Type          string    `json:"type"` // "payment_succeeded" or "payment_failed"
	Reference     string    `json:"reference"`
	OrderID       string    `json:"order_id,omitempty"`
	OrderNumber   string    `json:"order_number,omitempty"`
	CustomerEmail string    `json:"customer_email"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}

// OrderEvent is the envelope published to SNS when an order is confirmed or
// its status changes.
type OrderEvent struct {
	OrderID     string  `json:"order_id"`
	OrderNumber string  `json:"order_number"`
	Email       string  `json:"email"`
	Total       float64 `json:"total"`
	Status      string  `json:"status"`
	IsGuest     bool    `json:"is_guest"`
}
