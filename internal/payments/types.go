package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// Payment is one charge attempt. Failed attempts are kept for audit.
type Payment struct {
	ID                  string    `json:"id" dynamodbav:"id"`             // PK
	OrderID             string    `json:"orderId" dynamodbav:"order_id"` // GSI order_id-index
	Amount              float64   `json:"amount" dynamodbav:"amount"`
	PaymentMethod       string    `json:"paymentMethod" dynamodbav:"payment_method"`
	TransactionID       string    `json:"transactionId" dynamodbav:"transaction_id"`
	Status              string    `json:"status" dynamodbav:"status"`
	FailureReason       string    `json:"failureReason,omitempty" dynamodbav:"failure_reason,omitempty"`
	RefundAmount        float64   `json:"refundAmount,omitempty" dynamodbav:"refund_amount,omitempty"`
	RefundTransactionID string    `json:"refundTransactionId,omitempty" dynamodbav:"refund_transaction_id,omitempty"`
	CardLast4           string    `json:"cardLast4,omitempty" dynamodbav:"card_last4,omitempty"`
	PayerEmail          string    `json:"payerEmail,omitempty" dynamodbav:"payer_email,omitempty"`
	GatewayReference    string    `json:"gatewayReference,omitempty" dynamodbav:"gateway_reference,omitempty"`
	IdempotencyKey      string    `json:"idempotencyKey,omitempty" dynamodbav:"idempotency_key,omitempty"`
	CreatedAt           time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

// ChargeResult is the data of a process_payment reply, for approvals and
// declines alike.
type ChargeResult struct {
	Success       bool    `json:"success"`
	PaymentID     string  `json:"paymentId"`
	OrderID       string  `json:"orderId"`
	TransactionID string  `json:"transactionId"`
	Status        string  `json:"status"`
	FailureReason string  `json:"failureReason,omitempty"`
	Amount        float64 `json:"amount"`
	// Replayed is set when the result was served from the idempotency store.
	Replayed bool `json:"replayed,omitempty"`
}

// RefundResult is the data of a refund_payment reply.
type RefundResult struct {
	Success             bool    `json:"success"`
	PaymentID           string  `json:"paymentId"`
	Status              string  `json:"status"`
	RefundAmount        float64 `json:"refundAmount,omitempty"`
	RefundTransactionID string  `json:"refundTransactionId,omitempty"`
	FailureReason       string  `json:"failureReason,omitempty"`
}

// StatusView is the data of a get_payment_status reply.
type StatusView struct {
	PaymentID           string  `json:"paymentId"`
	OrderID             string  `json:"orderId"`
	Status              string  `json:"status"`
	Amount              float64 `json:"amount"`
	TransactionID       string  `json:"transactionId"`
	CardLast4           string  `json:"cardLast4,omitempty"`
	RefundAmount        float64 `json:"refundAmount,omitempty"`
	RefundTransactionID string  `json:"refundTransactionId,omitempty"`
}

func viewOf(p *Payment) StatusView {
	return StatusView{
		PaymentID:           p.ID,
		OrderID:             p.OrderID,
		Status:              p.Status,
		Amount:              p.Amount,
		TransactionID:       p.TransactionID,
		CardLast4:           p.CardLast4,
		RefundAmount:        p.RefundAmount,
		RefundTransactionID: p.RefundTransactionID,
	}
}

// Cents converts a currency amount to integer minor units, rounding half
// away from zero. Amount comparisons go through it so float noise never
// decides a refund.
func Cents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(2).Shift(2).IntPart()
}
