package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	"storefront-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TransactionController exposes payment verification and webhook intake.
// Both feed the same confirmation workflow; whichever lands first wins and
// the other becomes a no-op.
type TransactionController struct {
	checkout *services.CheckoutService
	ledger   *services.TransactionService
	gateway  services.GatewayAPI
	logger   *zap.Logger
}

// NewTransactionController creates a TransactionController.
func NewTransactionController(checkout *services.CheckoutService, ledger *services.TransactionService, gateway services.GatewayAPI, logger *zap.Logger) *TransactionController {
	return &TransactionController{checkout: checkout, ledger: ledger, gateway: gateway, logger: logger}
}

// paystackWebhookEvent is the envelope Paystack posts to the webhook URL.
type paystackWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// VerifyPayment handles GET /api/transactions/verify/:reference. This is
// the poll path: the client lands back from the gateway and asks us to
// settle the reference. Safe to call repeatedly.
func (tc *TransactionController) VerifyPayment(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		apperrors.HandleError(c, apperrors.WithMessage(apperrors.ErrValidation, "Reference is required"))
		return
	}

	result, err := tc.checkout.Confirm(c.Request.Context(), reference, services.SourcePoll, nil)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, confirmResponse(result))
}

// Webhook handles POST /api/transactions/webhook. The signature is checked
// over the exact raw body before any parsing; an invalid signature is
// rejected outright. Valid events we do not act on are still acknowledged
// with 200 so the gateway stops retrying them.
func (tc *TransactionController) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unreadable body"})
		return
	}

	if !tc.gateway.VerifyWebhookSignature(rawBody, c.GetHeader("x-paystack-signature")) {
		tc.logger.Warn("Webhook signature rejected", zap.String("client_ip", c.ClientIP()))
		apperrors.HandleError(c, apperrors.ErrInvalidSignature)
		return
	}

	var event paystackWebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Malformed event"})
		return
	}

	switch event.Event {
	case "charge.success", "charge.failed":
		charge := &services.ChargeResult{
			Status:    event.Data.Status,
			Reference: event.Data.Reference,
			Amount:    event.Data.Amount,
			PaidAt:    event.Data.PaidAt,
			Raw:       json.RawMessage(rawBody),
		}
		if _, err := tc.checkout.Confirm(c.Request.Context(), event.Data.Reference, services.SourceWebhook, charge); err != nil {
			// The gateway retries on non-2xx, which is exactly what we
			// want for transient failures.
			tc.logger.Error("Webhook confirmation failed",
				zap.String("event", event.Event),
				zap.String("reference", event.Data.Reference),
				zap.Error(err),
			)
			apperrors.HandleError(c, err)
			return
		}
	default:
		tc.logger.Info("Webhook event ignored", zap.String("event", event.Event))
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetTransactionStatus handles GET /api/transactions/:reference/status. A
// read-only status peek that never triggers gateway verification.
func (tc *TransactionController) GetTransactionStatus(c *gin.Context) {
	tx, err := tc.ledger.Get(c.Request.Context(), c.Param("reference"))
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": tx.GetPaymentDetails()})
}

// ListTransactions handles GET /api/admin/transactions.
func (tc *TransactionController) ListTransactions(c *gin.Context) {
	page, limit := pagination(c)
	status := models.TransactionStatus(c.Query("status"))

	txs, total, err := tc.ledger.List(c.Request.Context(), status, page, limit)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txs,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// confirmResponse shapes a confirmation outcome into the client payload.
func confirmResponse(result *services.ConfirmResult) gin.H {
	resp := gin.H{
		"success":          !result.PaymentFailed,
		"alreadyProcessed": result.AlreadyProcessed,
		"payment":          result.Transaction.GetPaymentDetails(),
	}
	if result.PaymentFailed {
		resp["message"] = "Payment was not successful"
		resp["gatewayStatus"] = result.GatewayStatus
	}
	if result.Order != nil {
		resp["order"] = result.Order.GetOrderSummary()
	}
	return resp
}
