package services

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"storefront-backend/models"

	"go.uber.org/zap"
)

// OrderConfirmationData carries everything the confirmation mail renders.
type OrderConfirmationData struct {
	FirstName       string
	LastName        string
	Email           string
	OrderNumber     string
	OrderDate       time.Time
	Items           []models.OrderItem
	Subtotal        float64
	Shipping        float64
	Total           float64
	ShippingAddress models.ShippingAddress
	TrackingURL     string
}

// OrderStatusUpdateData carries the status-change mail contents.
type OrderStatusUpdateData struct {
	FirstName      string
	Email          string
	OrderNumber    string
	Status         string
	TrackingNumber string
}

// Notifier sends customer-facing mail. Failures never roll back the order
// that triggered them; callers log and continue.
type Notifier interface {
	SendOrderConfirmation(data OrderConfirmationData) error
	SendOrderStatusUpdate(data OrderStatusUpdateData) error
	SendPasswordResetOTP(email, firstName, otp string) error
}

// EmailConfig holds SMTP configuration.
type EmailConfig struct {
	SmtpServer  string
	SmtpPort    string
	SenderEmail string
	SenderPass  string
	SenderName  string
}

type smtpNotifier struct {
	cfg    EmailConfig
	logger *zap.Logger
}

// NewSMTPNotifier creates an SMTP-backed Notifier.
func NewSMTPNotifier(cfg EmailConfig, logger *zap.Logger) Notifier {
	return &smtpNotifier{cfg: cfg, logger: logger}
}

func (n *smtpNotifier) SendOrderConfirmation(data OrderConfirmationData) error {
	subject := fmt.Sprintf("Order Confirmed - %s", data.OrderNumber)
	return n.send(data.Email, subject, buildOrderConfirmationHTML(data))
}

func (n *smtpNotifier) SendOrderStatusUpdate(data OrderStatusUpdateData) error {
	subject := fmt.Sprintf("Order Update - %s", data.OrderNumber)
	return n.send(data.Email, subject, buildStatusUpdateHTML(data))
}

func (n *smtpNotifier) SendPasswordResetOTP(email, firstName, otp string) error {
	return n.send(email, "Password Reset Code", buildPasswordResetHTML(firstName, otp))
}

func (n *smtpNotifier) send(to, subject, htmlBody string) error {
	from := fmt.Sprintf("%s <%s>", n.cfg.SenderName, n.cfg.SenderEmail)

	headers := map[string]string{
		"From":         from,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var message strings.Builder
	for key, value := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	message.WriteString("\r\n" + htmlBody)

	auth := smtp.PlainAuth("", n.cfg.SenderEmail, n.cfg.SenderPass, n.cfg.SmtpServer)
	if err := smtp.SendMail(
		n.cfg.SmtpServer+":"+n.cfg.SmtpPort,
		auth,
		n.cfg.SenderEmail,
		[]string{to},
		[]byte(message.String()),
	); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	n.logger.Info("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func buildOrderConfirmationHTML(data OrderConfirmationData) string {
	var rows strings.Builder
	for _, item := range data.Items {
		rows.WriteString(fmt.Sprintf(
			`<tr><td>%s</td><td>%s/%s</td><td>%d</td><td>&#8358;%.2f</td></tr>`,
			item.Name, item.Size, item.Color, item.Quantity, item.Price,
		))
	}

	addr := data.ShippingAddress
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; background-color: #f4f4f4; margin: 0; padding: 0;">
  <div style="max-width: 600px; margin: 40px auto; background: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background: #1a1a2e; padding: 30px; text-align: center; color: white;">
      <h1 style="margin: 0;">Thank you for your order!</h1>
    </div>
    <div style="padding: 30px; color: #333;">
      <p>Hi %s %s,</p>
      <p>Your order <strong>%s</strong> placed on %s has been confirmed and is being prepared.</p>
      <table width="100%%" cellpadding="8" style="border-collapse: collapse; margin: 20px 0;">
        <tr style="background: #f8f9fa;"><th align="left">Item</th><th align="left">Variant</th><th align="left">Qty</th><th align="left">Price</th></tr>
        %s
      </table>
      <p>Subtotal: &#8358;%.2f<br>Shipping: &#8358;%.2f<br><strong>Total: &#8358;%.2f</strong></p>
      <p>Shipping to:<br>%s, %s, %s %s</p>
      <p><a href="%s" style="color: #1a1a2e;">Track your order</a></p>
    </div>
  </div>
</body>
</html>`,
		data.FirstName, data.LastName,
		data.OrderNumber, data.OrderDate.Format("2 January 2006"),
		rows.String(),
		data.Subtotal, data.Shipping, data.Total,
		addr.Street, addr.City, addr.State, addr.ZipCode,
		data.TrackingURL,
	)
}

func buildStatusUpdateHTML(data OrderStatusUpdateData) string {
	tracking := ""
	if data.TrackingNumber != "" {
		tracking = fmt.Sprintf("<p>Tracking number: <strong>%s</strong></p>", data.TrackingNumber)
	}
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 40px auto;">
    <p>Hi %s,</p>
    <p>Your order <strong>%s</strong> is now: <strong>%s</strong>.</p>
    %s
  </div>
</body>
</html>`, data.FirstName, data.OrderNumber, data.Status, tracking)
}

func buildPasswordResetHTML(firstName, otp string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: 'Segoe UI', Tahoma, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 40px auto;">
    <p>Hi %s,</p>
    <p>Your password reset code is:</p>
    <div style="background: #f8f9fa; border-left: 4px solid #1a1a2e; padding: 20px; font-size: 24px; letter-spacing: 4px;"><strong>%s</strong></div>
    <p>This code expires in 10 minutes. If you did not request it, you can ignore this email.</p>
  </div>
</body>
</html>`, firstName, otp)
}
