// Package checkout orchestrates the order and payment services: the checkout
// saga, refunds by order, and the reconciler that links charged orders whose
// link step was lost.
package checkout

import (
	"context"
	"time"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/orders"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/payments"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/validation"
)

// OrderService is the part of the orders service the saga calls.
// *orders.Client implements it.
type OrderService interface {
	Create(ctx context.Context, req validation.CreateOrderRequest) (*orders.Order, error)
	Get(ctx context.Context, id string) (*orders.Order, error)
	UpdatePayment(ctx context.Context, id, paymentID, paymentStatus string) (*orders.Order, error)
	ListUnlinked(ctx context.Context, olderThan time.Duration) ([]orders.Order, error)
}

// PaymentService is implemented by *payments.Client.
type PaymentService interface {
	ProcessPayment(ctx context.Context, req validation.ProcessPaymentRequest) (*payments.ChargeResult, error)
	GetPaymentStatus(ctx context.Context, orderID string) (*payments.StatusView, error)
	RefundPayment(ctx context.Context, paymentID string, amount float64) (*payments.RefundResult, error)
}

// Metrics counts saga outcomes. *aws.MetricsPublisher implements it.
type Metrics interface {
	Count(ctx context.Context, name string, value float64) error
}

// Metric names.
const (
	MetricCheckoutPaid      = "CheckoutPaid"
	MetricCheckoutDeclined  = "CheckoutDeclined"
	MetricCheckoutFailed    = "CheckoutFailed"
	MetricChargeRetry       = "ChargeRetry"
	MetricPaymentLinkFailed = "PaymentLinkFailed"
	MetricRefundSucceeded   = "RefundSucceeded"
	MetricRefundFailed      = "RefundFailed"
	MetricReconcileLinked   = "ReconcileLinked"
)
